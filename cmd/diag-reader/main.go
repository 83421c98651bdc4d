// diag-reader displays the contents of DTT diagnostics XML files: channels,
// stored records and derived quantities such as transfer functions and
// swept-sine responses.
package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"diagxml/internal/access"
	"diagxml/internal/config"
	"diagxml/internal/logging"
	"diagxml/internal/records"
	"diagxml/internal/sink"
	"diagxml/internal/tree"
	"diagxml/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	showVersion  bool
	showRecords  bool
	outputFormat string
	asdChannel   string
	transferPair string
	viaChannel   string
	sineWrt      string
	sineRow      int
	harmonicWrt  string
	verbose      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "diag-reader [file.xml]",
	Short: "Display contents of DTT diagnostics XML files",
	Long: `diag-reader lists the channels, references and results stored in a DTT
diagnostics XML file and evaluates derived quantities on request.

Display modes:
  --records             Show every stored record
  --asd CH              Welch ASD of the time series stored for CH
  --transfer NUM,DEN    Transfer function NUM/DEN with its SNR estimate
  --via CH              Compute --transfer through the common channel CH
  --sine WRT            Swept-sine coefficients of row --row normalized by WRT
  --harmonics WRT       Harmonic coefficients normalized by the fundamental of WRT`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("diag-reader"))
			return
		}
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: filename required\n")
			cmd.Usage()
			os.Exit(1)
		}
		if err := displayFile(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	defaults := config.DefaultConfig().Welch

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml if present)")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log decoder details")
	rootCmd.Flags().BoolVarP(&showRecords, "records", "r", false, "list every stored record")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.Flags().StringVar(&asdChannel, "asd", "", "estimate the ASD of a stored time series")
	rootCmd.Flags().StringVar(&transferPair, "transfer", "", "transfer function NUM,DEN")
	rootCmd.Flags().StringVar(&viaChannel, "via", "", "common channel for --transfer")
	rootCmd.Flags().StringVar(&sineWrt, "sine", "", "swept-sine response normalized by this channel")
	rootCmd.Flags().IntVar(&sineRow, "row", 0, "frequency row for --sine")
	rootCmd.Flags().StringVar(&harmonicWrt, "harmonics", "", "harmonic response normalized by this channel")
	rootCmd.Flags().Int("nfft", defaults.NFFT, "segment length for --asd")
	rootCmd.Flags().Int("overlap", defaults.Overlap, "overlapping samples for --asd, negative for half a segment")
	rootCmd.Flags().String("window", defaults.Window, "window for --asd")
	rootCmd.Flags().Bool("detrend", defaults.Detrend, "remove the mean before --asd")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("welch.nfft", rootCmd.Flags().Lookup("nfft"))
	viper.BindPFlag("welch.overlap", rootCmd.Flags().Lookup("overlap"))
	viper.BindPFlag("welch.window", rootCmd.Flags().Lookup("window"))
	viper.BindPFlag("welch.detrend", rootCmd.Flags().Lookup("detrend"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("DIAGXML")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error: failed to read config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

// displayFile reads the file and runs the requested display modes
func displayFile(filename string) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	opts, err := welchOptions(cfg.Welch)
	if err != nil {
		return err
	}

	// skipped entries are part of the display, so stay quiet unless configured
	logCfg := cfg.Logging
	if !viper.IsSet("logging.level") {
		logCfg.Level = "error"
	}
	logger, err := logging.New(logCfg, false, verbose)
	if err != nil {
		return err
	}
	defer logging.Flush(logger)
	opts.Logger = logger

	a, err := access.Open(filename, access.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to read container: %w", err)
	}

	out := tree.New()
	out.Set("file", filepath.Base(filename))
	summarize(out, a)

	switch {
	case asdChannel != "":
		err = addASD(out, a, opts)
	case transferPair != "":
		err = addTransfer(out, a)
	case sineWrt != "":
		err = addSine(out, a)
	case harmonicWrt != "":
		err = addHarmonics(out, a)
	}
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return sink.WriteJSON(os.Stdout, out)
	case "table":
		return printTree(out)
	default:
		return fmt.Errorf("unknown output format %q (table or json)", outputFormat)
	}
}

// summarize stores the channel listing and, with --records, one subtree per record
func summarize(out *tree.Tree, a *access.Access) {
	c := a.Container()
	chnA, chnB := a.Channels()
	channels := out.Child("channels")
	channels.Set("A", chnA)
	if len(chnB) > 0 {
		channels.Set("B", chnB)
	}
	out.Set("references", len(c.References))
	out.Set("results", len(c.Results))
	if len(c.Errors) > 0 {
		msgs := make([]string, len(c.Errors))
		for i, err := range c.Errors {
			msgs[i] = err.Error()
		}
		out.Set("skipped", msgs)
	}
	if !showRecords {
		return
	}

	list := out.Child("records")
	for _, id := range c.ReferenceIDs() {
		describe(list.Child(fmt.Sprintf("Reference[%d]", id)), c.References[id])
	}
	for _, id := range c.ResultIDs() {
		describe(list.Child(fmt.Sprintf("Result[%d]", id)), c.Results[id])
	}
	for _, kind := range []records.Kind{
		records.KindTransferCoefficients, records.KindHarmonicCoefficients,
		records.KindIntermodulationCoefficients, records.KindCoherenceCoefficients,
	} {
		if tc, ok := a.Coefficients(kind); ok {
			describe(list.Child(kind.String()), tc)
		}
	}
}

func describe(t *tree.Tree, rec records.Record) {
	h := rec.Head()
	t.Set("kind", h.Kind.String())
	t.Set("subtype", h.SubtypeName)
	t.Set("channel", rec.Primary())
	t.Set("gps_second", h.GPSSecond)
	if h.Averages > 0 {
		t.Set("averages", h.Averages)
	}
	if h.Window != records.WindowUnset {
		t.Set("window", h.Window.String())
	}
	if h.HasBandwidth {
		t.Set("BW", h.Bandwidth)
	}
	if n := len(h.Freq); n > 0 {
		t.Set("bins", n)
		t.Set("f_min", h.Freq[0])
		t.Set("f_max", h.Freq[n-1])
	}
	switch r := rec.(type) {
	case *records.TimeSeries:
		t.Set("N", r.N)
		t.Set("dt", r.DT)
	case *records.Coefficients:
		t.Set("rows", len(r.Coeffs))
	}
	if b := access.SecondaryChannels(rec); len(b) > 0 {
		t.Set("channelB", b)
	}
}

// welchOptions converts the welch section into estimator options
func welchOptions(cfg config.WelchConfig) (access.WelchOptions, error) {
	win, ok := records.ParseWindow(cfg.Window)
	if !ok {
		return access.WelchOptions{}, fmt.Errorf("unknown window %q", cfg.Window)
	}
	return access.WelchOptions{
		NFFT:    cfg.NFFT,
		Overlap: cfg.Overlap,
		Window:  win,
		Detrend: cfg.Detrend,
	}, nil
}

func addASD(out *tree.Tree, a *access.Access, opts access.WelchOptions) error {
	s, err := a.TimeSeriesSpectrum(asdChannel, opts)
	if err != nil {
		return err
	}
	t := out.Child("asd")
	t.Set("channel", asdChannel)
	t.Set("window", s.Window.String())
	t.Set("averages", s.Averages)
	t.Set("BW", s.Bandwidth)
	t.Set("FHz", s.Freq)
	t.Set("ASD", s.Values)
	return nil
}

func addTransfer(out *tree.Tree, a *access.Access) error {
	num, den, ok := strings.Cut(transferPair, ",")
	if !ok {
		return fmt.Errorf("--transfer wants NUM,DEN, got %q", transferPair)
	}
	t := out.Child("transfer")
	t.Set("num", num)
	t.Set("den", den)

	if viaChannel != "" {
		v, err := a.TransferVia(num, den, viaChannel)
		if err != nil {
			return err
		}
		t.Set("via", viaChannel)
		if v.Freq != nil {
			t.Set("FHz", v.Freq)
		}
		t.Set("xfer", v.Values)
		if snr, err := a.TransferViaSNR(v); err == nil {
			t.Set("snr", snr)
		}
		return nil
	}

	tf, err := a.Transfer(num, den)
	if err != nil {
		return err
	}
	t.Set("strategy", tf.Strategy.String())
	if tf.Freq != nil {
		t.Set("FHz", tf.Freq)
	}
	t.Set("xfer", tf.Values)
	if snr, err := a.TransferSNR(tf); err == nil {
		t.Set("snr", snr)
		t.Set("snr_estimate", access.SNREstimate(snr))
	}
	return nil
}

func coefficientChannels(a *access.Access, kind records.Kind) ([]string, error) {
	tc, ok := a.Coefficients(kind)
	if !ok {
		return nil, fmt.Errorf("%w: no %s table", records.ErrChannelNotFound, kind)
	}
	names := make([]string, 0, len(tc.Channels))
	for _, id := range sortedIDs(tc.Channels) {
		names = append(names, tc.Channels[id])
	}
	return names, nil
}

func sortedIDs(m map[int]string) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func addSine(out *tree.Tree, a *access.Access) error {
	channels, err := coefficientChannels(a, records.KindTransferCoefficients)
	if err != nil {
		return err
	}
	s, err := a.SineResponse(channels, sineWrt, sineRow)
	if err != nil {
		return err
	}
	t := out.Child("sine")
	t.Set("wrt", s.Wrt)
	t.Set("FHz", s.FHz)
	t.Set("channels", s.Channels)
	t.Set("coeff", s.Coeffs)
	t.Set("coh", s.Cohs)
	return nil
}

func addHarmonics(out *tree.Tree, a *access.Access) error {
	channels, err := coefficientChannels(a, records.KindHarmonicCoefficients)
	if err != nil {
		return err
	}
	h, err := a.HarmonicResponse(channels, harmonicWrt)
	if err != nil {
		return err
	}
	t := out.Child("harmonics")
	t.Set("wrt", h.Wrt)
	for i, ch := range h.Channels {
		c := t.Child(ch)
		c.Set("coeffs", h.Coeffs[i])
		c.Set("second_harmonic", h.SecondHarmonic[i])
		if h.Cohs != nil {
			c.Set("coh", h.Cohs[i])
		}
	}
	return nil
}

// printTree writes one line per leaf; slices longer than a few elements are
// shown with their length and range.
func printTree(t *tree.Tree) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	err := t.Walk(func(path []string, v any) error {
		_, err := fmt.Fprintf(w, "%s\t%s\n", strings.Join(path, "/"), formatValue(v))
		return err
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

const maxInline = 6

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case complex128:
		return formatComplex(x)
	case []string:
		return strings.Join(x, ", ")
	case []float64:
		if len(x) <= maxInline {
			parts := make([]string, len(x))
			for i, f := range x {
				parts[i] = strconv.FormatFloat(f, 'g', 6, 64)
			}
			return strings.Join(parts, " ")
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, f := range x {
			lo, hi = math.Min(lo, f), math.Max(hi, f)
		}
		return fmt.Sprintf("%d values in [%.4g, %.4g]", len(x), lo, hi)
	case []complex128:
		if len(x) <= maxInline {
			parts := make([]string, len(x))
			for i, c := range x {
				parts[i] = formatComplex(c)
			}
			return strings.Join(parts, " ")
		}
		var peak float64
		for _, c := range x {
			peak = math.Max(peak, cmplx.Abs(c))
		}
		return fmt.Sprintf("%d complex values, peak magnitude %.4g", len(x), peak)
	}
	return fmt.Sprint(v)
}

func formatComplex(c complex128) string {
	return fmt.Sprintf("%.4g∠%.1f°", cmplx.Abs(c), cmplx.Phase(c)*180/math.Pi)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
