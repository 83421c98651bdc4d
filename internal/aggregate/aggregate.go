// Package aggregate sweeps every channel pair of a container into one result tree
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"diagxml/internal/access"
	"diagxml/internal/records"
	"diagxml/internal/tree"
)

// Result types stored under the "type" key
const (
	TypeSpectra    = "spectra"
	TypeTimeSeries = "timeseries"
)

// Options selects and renames the channels of a sweep
type Options struct {
	// Channels limits the sweep to these logical channels; empty keeps all
	Channels []string
	// ChannelMap renames raw channels to logical channels
	ChannelMap map[string]string
	// RemapOnly drops raw channels that have no ChannelMap entry
	RemapOnly bool
	// Exclude lists raw or logical channels to skip
	Exclude []string
	Logger  *zap.Logger
}

// Pair is an ordered pair of logical channels
type Pair struct {
	A, B string
}

// Warning reports a quantity whose raw channels mapped onto the same logical
// channel with different values. The first value is kept.
type Warning struct {
	Quantity string
	ChannelA string
	ChannelB string
}

func (w Warning) String() string {
	if w.ChannelB == "" {
		return fmt.Sprintf("inconsistent %s for channel %s", w.Quantity, w.ChannelA)
	}
	return fmt.Sprintf("inconsistent %s between channels %s and %s", w.Quantity, w.ChannelA, w.ChannelB)
}

// Result is the outcome of Build
type Result struct {
	Type     string
	Tree     *tree.Tree
	Pairs    []Pair
	Warnings []Warning
}

type channel struct {
	raw, logical string
}

type builder struct {
	a        *access.Access
	opts     Options
	log      *zap.Logger
	out      *tree.Tree
	warnings []Warning
}

// Build collects every spectral quantity of every selected channel pair. When
// no spectral quantity exists it falls back to the stored time series.
func Build(a *access.Access, opts Options) (*Result, error) {
	b := &builder{a: a, opts: opts, log: opts.Logger, out: tree.New()}
	if b.log == nil {
		b.log = zap.NewNop()
	}

	chnA, chnB := a.Channels()
	raw := append(append([]string(nil), chnA...), chnB...)
	sort.Strings(raw)
	selected := b.selectChannels(raw)

	res, err := b.spectra(selected)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	b.out = tree.New()
	b.warnings = nil
	return b.timeSeries(selected)
}

// selectChannels applies exclusion, renaming and filtering to the sorted raw names
func (b *builder) selectChannels(raw []string) []channel {
	exclude := make(map[string]bool, len(b.opts.Exclude))
	for _, c := range b.opts.Exclude {
		exclude[c] = true
	}
	var filter map[string]bool
	if len(b.opts.Channels) > 0 {
		filter = make(map[string]bool, len(b.opts.Channels))
		for _, c := range b.opts.Channels {
			filter[c] = true
		}
	}

	var out []channel
	for _, r := range raw {
		if exclude[r] {
			continue
		}
		logical, ok := b.opts.ChannelMap[r]
		if !ok {
			if b.opts.RemapOnly {
				continue
			}
			logical = r
		}
		if filter != nil && !filter[logical] {
			continue
		}
		if exclude[logical] {
			continue
		}
		out = append(out, channel{raw: r, logical: logical})
	}
	return out
}

func (b *builder) insert(quantity string, t *tree.Tree, chA, chB string, key string, v any) {
	err := t.InsertOrCheck(key, v)
	var conflict *tree.ConflictError
	if errors.As(err, &conflict) {
		w := Warning{Quantity: quantity, ChannelA: chA, ChannelB: chB}
		b.warnings = append(b.warnings, w)
		b.log.Warn("multiple raw channels map to one channel with different values",
			zap.String("quantity", quantity), zap.String("channel_a", chA), zap.String("channel_b", chB))
	}
}

// skippable reports whether err only means the quantity is absent for a pair
func skippable(err error) bool {
	return errors.Is(err, records.ErrChannelNotFound) || errors.Is(err, records.ErrTransferNotAvailable)
}

// chain metadata-checks consecutive results of one family
type chain struct {
	name string
	prev *records.Meta
}

func (c *chain) next(m records.Meta) error {
	if c.prev != nil {
		if err := c.prev.Check(m); err != nil {
			return fmt.Errorf("%s results disagree: %w", c.name, err)
		}
	}
	c.prev = &m
	return nil
}

func (b *builder) spectra(chans []channel) (*Result, error) {
	xsd := &chain{name: "spectral"}
	xfer := &chain{name: "transfer"}
	var pairs []Pair
	b.out.Set("type", TypeSpectra)

	for _, ca := range chans {
		for _, cb := range chans {
			pairs = append(pairs, Pair{A: ca.logical, B: cb.logical})
			if err := b.pair(ca, cb, xsd, xfer); err != nil {
				return nil, err
			}
		}
	}

	var meta *records.Meta
	switch {
	case xsd.prev != nil:
		meta = xsd.prev
		b.out.Set("window", meta.Window.String())
		if meta.HasBandwidth {
			b.out.Set("BW", meta.Bandwidth)
		}
	case xfer.prev != nil:
		meta = xfer.prev
	default:
		return nil, nil
	}
	b.out.Set("gps_second", meta.GPSSecond)
	b.out.Set("averages", meta.Averages)
	if meta.Freq != nil {
		b.out.Set("FHz", meta.Freq)
	}
	b.references()
	return &Result{Type: TypeSpectra, Tree: b.out, Pairs: pairs, Warnings: b.warnings}, nil
}

func (b *builder) pair(ca, cb channel, xsd, xfer *chain) error {
	if ca.logical == cb.logical {
		s, err := b.a.Spectrum(ca.raw)
		if err != nil {
			if skippable(err) {
				return nil
			}
			return err
		}
		b.insert("ASD", b.out.Child("ASD"), ca.logical, "", ca.logical, s.Values)
		return xsd.next(s.Meta)
	}

	csd, err := b.a.CrossSpectrum(ca.raw, cb.raw)
	switch {
	case err == nil:
		b.insert("CSD", b.out.Child("CSD").Child(ca.logical), ca.logical, cb.logical, cb.logical, csd.Values)
		if err := xsd.next(csd.Meta); err != nil {
			return err
		}
	case !skippable(err):
		return err
	}

	tf, err := b.a.Transfer(ca.raw, cb.raw)
	if err != nil {
		if skippable(err) {
			b.log.Debug("no transfer function", zap.String("num", ca.logical), zap.String("den", cb.logical))
			return nil
		}
		return err
	}
	b.insert("XFER", b.out.Child("XFER").Child(ca.logical), ca.logical, cb.logical, cb.logical, tf.Values)
	if err := xfer.next(tf.Meta); err != nil {
		return err
	}

	coh, err := b.a.Coherence(ca.raw, cb.raw)
	if err != nil {
		if skippable(err) {
			return nil
		}
		return err
	}
	b.insert("COH", b.out.Child("COH").Child(ca.logical), ca.logical, cb.logical, cb.logical, coh.Values)

	snr, err := b.a.TransferSNR(tf)
	if err != nil {
		if skippable(err) {
			return nil
		}
		return err
	}
	b.insert("XFER_SNR_EST", b.out.Child("XFER_SNR_EST").Child(ca.logical), ca.logical, cb.logical, cb.logical,
		access.SNREstimate(snr))
	return nil
}

func (b *builder) timeSeries(chans []channel) (*Result, error) {
	var last *records.TimeSeries
	b.out.Set("type", TypeTimeSeries)
	for _, c := range chans {
		rec, ok := b.a.Record(records.KindTS, c.raw)
		if !ok {
			continue
		}
		ts := rec.(*records.TimeSeries)
		if ts.Samples == nil {
			b.log.Debug("time series has no plain samples", zap.String("channel", c.raw), zap.String("subtype", ts.SubtypeName))
			continue
		}
		b.insert("TS", b.out.Child("TS"), c.logical, "", c.logical, ts.Samples.Value())
		last = ts
	}
	if last == nil {
		return nil, records.ErrNoChannelsFound
	}

	b.out.Set("gps_second", last.GPSSecond)
	b.out.Set("time_delay_s", last.TimeDelay)
	b.out.Set("avgtype", last.AverageType.String())
	b.out.Set("dt", last.DT)
	b.references()
	return &Result{Type: TypeTimeSeries, Tree: b.out, Warnings: b.warnings}, nil
}

func (b *builder) references() {
	c := b.a.Container()
	ids := c.ReferenceIDs()
	if len(ids) == 0 {
		return
	}
	refs := b.out.Child("REFS")
	for _, id := range ids {
		refs.Set(strconv.Itoa(id), c.References[id].Tree())
	}
}
