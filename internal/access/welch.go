package access

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
	"go.uber.org/zap"

	"diagxml/internal/records"
)

// DefaultNFFT is the segment length used when WelchOptions.NFFT is zero
const DefaultNFFT = 256

// FrameSource provides raw channel samples from frame files
type FrameSource interface {
	SampleRate(channel string) (float64, error)
	Samples(channel string) ([]float64, error)
	Len(channel string) (int, error)
}

// WelchOptions configures a Welch ASD estimate
type WelchOptions struct {
	NFFT    int            // segment length, DefaultNFFT when zero
	Overlap int            // samples shared by consecutive segments, NFFT/2 when negative
	Window  records.Window // taper; windows go-dsp lacks fall back to Hanning
	Detrend bool           // remove the mean before segmenting
	Logger  *zap.Logger    // reports window substitutions, nil discards
}

var windowFuncs = map[records.Window]func(int) []float64{
	records.WindowUniform:  window.Rectangular,
	records.WindowHanning:  window.Hann,
	records.WindowFlatTop:  window.FlatTop,
	records.WindowBartlett: window.Bartlett,
	records.WindowHamming:  window.Hamming,
	records.WindowBMH:      window.Blackman,
}

// WelchASD estimates the one-sided amplitude spectral density of samples
// taken at sampleRate. The result's Averages is the number of segments.
func WelchASD(samples []float64, sampleRate float64, opts WelchOptions) (*Spectrum, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %g", sampleRate)
	}
	nfft := opts.NFFT
	if nfft <= 0 {
		nfft = DefaultNFFT
	}
	if nfft > len(samples) {
		nfft = len(samples)
	}
	nfft &^= 1
	if nfft < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}
	overlap := opts.Overlap
	if overlap < 0 || overlap >= nfft {
		overlap = nfft / 2
	}
	win := opts.Window
	fn, ok := windowFuncs[win]
	if !ok {
		win, fn = records.WindowHanning, window.Hann
		if opts.Logger != nil {
			opts.Logger.Debug("window not available, using Hanning", zap.Stringer("requested", opts.Window))
		}
	}

	x := samples
	if opts.Detrend {
		var mean float64
		for _, v := range samples {
			mean += v
		}
		mean /= float64(len(samples))
		x = make([]float64, len(samples))
		for i, v := range samples {
			x[i] = v - mean
		}
	}

	pxx, freqs := spectral.Pwelch(x, sampleRate, &spectral.PwelchOptions{
		NFFT:     nfft,
		Noverlap: overlap,
		Window:   fn,
	})
	asd := make([]float64, len(pxx))
	for i, p := range pxx {
		asd[i] = math.Sqrt(p)
	}

	return &Spectrum{
		Meta: records.Meta{
			Window:       win,
			Averages:     (len(samples) - overlap) / (nfft - overlap),
			Bandwidth:    sampleRate / float64(nfft),
			HasBandwidth: true,
			Freq:         freqs,
		},
		Values: asd,
	}, nil
}

// TimeSeriesSpectrum estimates the ASD of a stored time series
func (a *Access) TimeSeriesSpectrum(channel string, opts WelchOptions) (*Spectrum, error) {
	rec, ok := a.index[records.KindTS][channel]
	if !ok {
		return nil, notFound(records.KindTS, channel)
	}
	ts := rec.(*records.TimeSeries)
	if ts.Samples == nil {
		return nil, fmt.Errorf("%w: time series %s has no plain samples (%s)", records.ErrUnsupportedKind, channel, ts.SubtypeName)
	}
	if ts.DT <= 0 {
		return nil, &records.MissingFieldError{Node: channel, Field: "dt"}
	}
	samples := ts.Samples.Real
	if ts.Samples.Complex {
		samples = make([]float64, len(ts.Samples.Values))
		for i, v := range ts.Samples.Values {
			samples[i] = real(v)
		}
	}
	if opts.Logger == nil {
		opts.Logger = a.logger
	}
	s, err := WelchASD(samples, 1/ts.DT, opts)
	if err != nil {
		return nil, fmt.Errorf("time series %s: %w", channel, err)
	}
	s.GPSSecond = ts.GPSSecond
	s.Channel = channel
	return s, nil
}

// FrameSpectrum estimates the ASD of a channel read from src
func FrameSpectrum(src FrameSource, channel string, opts WelchOptions) (*Spectrum, error) {
	rate, err := src.SampleRate(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample rate of %s: %w", channel, err)
	}
	samples, err := src.Samples(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples of %s: %w", channel, err)
	}
	n, err := src.Len(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to read length of %s: %w", channel, err)
	}
	if n < len(samples) {
		samples = samples[:n]
	}
	s, err := WelchASD(samples, rate, opts)
	if err != nil {
		return nil, fmt.Errorf("frame channel %s: %w", channel, err)
	}
	s.Channel = channel
	return s, nil
}
