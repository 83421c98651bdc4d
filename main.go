// diagxml converts DTT diagnostics XML files into one nested result document
// holding every spectral quantity of every channel pair.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"diagxml/internal/access"
	"diagxml/internal/aggregate"
	"diagxml/internal/config"
	"diagxml/internal/logging"
	"diagxml/internal/sink"
	"diagxml/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Command line flag variables
var (
	cfgFile     string // Configuration file path
	quiet       bool   // Only report errors and do not print the output path
	verbose     bool   // Debug logging
	showVersion bool   // Print version information and exit
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "diagxml <input.xml> [output]",
	Short: "Convert DTT diagnostics XML files",
	Long: `diagxml reads a DTT diagnostics XML file and writes every spectral quantity
of every channel pair (ASD, CSD, transfer function, coherence and SNR estimate)
into one result document. Files holding only time series are exported as such.

The output defaults to the input path with the extension of the chosen format.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("diagxml"))
			return
		}
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: input file required\n")
			cmd.Usage()
			os.Exit(1)
		}
		if err := runConvert(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")

	rootCmd.Flags().StringP("format", "f", "json", "output format (json, parquet, csv)")
	rootCmd.Flags().StringSlice("channel", nil, "logical channels to keep (repeatable)")
	rootCmd.Flags().StringSlice("exclude", nil, "raw or logical channels to skip (repeatable)")
	rootCmd.Flags().StringSlice("map", nil, "rename a raw channel, raw=logical (repeatable)")
	rootCmd.Flags().Bool("remap-only", false, "drop channels without a --map entry")
	rootCmd.Flags().String("log-file", "", "append JSON logs to this file")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("output.format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("conversion.channels", rootCmd.Flags().Lookup("channel"))
	viper.BindPFlag("conversion.exclude", rootCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("conversion.channel_map", rootCmd.Flags().Lookup("map"))
	viper.BindPFlag("conversion.remap_only", rootCmd.Flags().Lookup("remap-only"))
	viper.BindPFlag("logging.file", rootCmd.Flags().Lookup("log-file"))
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

// outputPath picks the explicit output, the configured one or the input
// path with the format's extension.
func outputPath(input string, args []string, cfg *config.Config, format sink.Format) string {
	if len(args) > 1 {
		return args[1]
	}
	if cfg.Output.Path != "" {
		return cfg.Output.Path
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + format.Extension()
}

// runConvert is the main application logic
func runConvert(args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	format, err := sink.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	renames, err := cfg.Conversion.Renames()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, quiet, verbose)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logging.Flush(logger)

	input := args[0]
	a, err := access.Open(input, access.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	if skipped := len(a.Container().Errors); skipped > 0 {
		logger.Warn("some entries could not be decoded", zap.String("file", input), zap.Int("skipped", skipped))
	}

	res, err := aggregate.Build(a, aggregate.Options{
		Channels:   cfg.Conversion.Channels,
		ChannelMap: renames,
		RemapOnly:  cfg.Conversion.RemapOnly,
		Exclude:    cfg.Conversion.Exclude,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", input, err)
	}
	logger.Debug("aggregated",
		zap.String("type", res.Type),
		zap.Int("pairs", len(res.Pairs)),
		zap.Int("warnings", len(res.Warnings)))

	out := outputPath(input, args, cfg, format)
	if err := sink.Write(out, format, res.Tree); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if !quiet {
		fmt.Println(out)
	}
	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
