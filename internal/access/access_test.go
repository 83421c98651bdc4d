package access

import (
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"

	"diagxml/internal/container"
	"diagxml/internal/records"
	rt "diagxml/internal/records/recordstest"
)

func load(t *testing.T, entries []string, nodes ...rt.Measurement) *Access {
	t.Helper()
	if entries == nil {
		entries = []string{"Spectrum[0]"}
	}
	c, err := container.Decode(strings.NewReader(rt.Document(entries, nodes...)))
	require.NoError(t, err)
	require.Empty(t, c.Errors)
	return New(c)
}

// spectraFixture holds ASDs of A and B, CSD and COH of A against B and C,
// and a reference ASD of A. No transfer functions are stored.
func spectraFixture(t *testing.T) *Access {
	psdA := rt.Spectrum("Result[0]", 1, "A", nil, 0, 1, 4)
	psdA.Real = []float32{1, 2, 3, 4}
	psdB := rt.Spectrum("Result[1]", 1, "B", nil, 0, 1, 4)
	psdB.Real = []float32{2, 2, 2, 2}
	csd := rt.Spectrum("Result[2]", 2, "A", []string{"B", "C"}, 0, 1, 4)
	csd.Complex = []complex64{
		4, 8i, -4, 2 + 2i,
		1, 1, 1, 1,
	}
	coh := rt.Spectrum("Result[3]", 3, "A", []string{"B", "C"}, 0, 1, 4)
	coh.Real = []float32{0.5, 0.5, 0.5, 0.5, 0.25, 0.25, 0.25, 0.25}
	ref := rt.Spectrum("Reference[0]", 1, "A", nil, 0, 1, 4)
	ref.Real = []float32{9, 9, 9, 9}
	return load(t, nil, psdA, psdB, csd, coh, ref)
}

func TestSpectrum(t *testing.T) {
	a := spectraFixture(t)

	s, err := a.Spectrum("A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values)
	assert.Equal(t, []float64{0, 1, 2, 3}, s.Freq)

	ref, err := a.Spectrum("A(REF0)")
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9, 9, 9}, ref.Values)

	_, err = a.Spectrum("nope")
	assert.ErrorIs(t, err, records.ErrChannelNotFound)
}

func TestCrossSpectrumBothOrientations(t *testing.T) {
	a := spectraFixture(t)

	ab, err := a.CrossSpectrum("A", "B")
	require.NoError(t, err)
	assert.False(t, ab.Swapped)

	ba, err := a.CrossSpectrum("B", "A")
	require.NoError(t, err)
	assert.True(t, ba.Swapped)
	assert.Equal(t, ab.Values, ba.Values)

	coh, err := a.Coherence("C", "A")
	require.NoError(t, err)
	assert.True(t, coh.Swapped)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, coh.Values)
	assert.InDelta(t, 1/math.Sqrt(10), coh.StatisticalMinimum(), 1e-12)

	_, err = a.CrossSpectrum("B", "C")
	assert.ErrorIs(t, err, records.ErrChannelNotFound)
}

func TestCoherencePhased(t *testing.T) {
	a := spectraFixture(t)

	phased, err := a.CoherencePhased("A", "B")
	require.NoError(t, err)
	require.Len(t, phased, 4)
	assert.InDelta(t, 0.5, real(phased[0]), 1e-12)
	assert.InDelta(t, 0.5, imag(phased[1]), 1e-12)
	assert.InDelta(t, -0.5, real(phased[2]), 1e-12)
	assert.InDelta(t, 0.5, cmplx.Abs(phased[3]), 1e-12)
}

func TestTransferFromSpectra(t *testing.T) {
	a := spectraFixture(t)

	tf, err := a.Transfer("A", "B")
	require.NoError(t, err)
	assert.Equal(t, StrategySpectra, tf.Strategy)
	assert.Equal(t, []complex128{1, 2i, -1, 0.5 + 0.5i}, tf.Values)
	assert.Equal(t, []float64{0, 1, 2, 3}, tf.Freq)

	// CSD(A,C) exists but there is no ASD of C
	_, err = a.Transfer("A", "C")
	assert.ErrorIs(t, err, records.ErrTransferNotAvailable)

	_, err = a.Transfer("X", "Y")
	assert.ErrorIs(t, err, records.ErrTransferNotAvailable)
}

func TestTransferFromSpectraMetadataMismatch(t *testing.T) {
	csd := rt.Spectrum("Result[0]", 6, "A", []string{"B"}, 0, 0, 4)
	csd.Complex = []complex64{0, 1, 2, 3, 1, 1, 1, 1}
	psd := rt.Spectrum("Result[1]", 5, "B", nil, 0, 0, 4)
	psd.Real = []float32{0, 1, 2, 4, 1, 1, 1, 1} // last bin differs
	a := load(t, nil, csd, psd)

	_, err := a.Transfer("A", "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, records.ErrMetadataMismatch)
	assert.False(t, errors.Is(err, records.ErrTransferNotAvailable))

	var mismatch *records.MetadataMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "FHz", mismatch.Field)
}

// transferFixture stores TF and COH under the via channel V against A and B
func transferFixture(t *testing.T) *Access {
	tf := rt.Transfer("Result[0]", 0, "V", []string{"A", "B"}, nil)
	tf.Complex = []complex64{
		2, 4i, 1 + 1i,
		1, 2i, 2,
	}
	coh := rt.Transfer("Result[1]", 2, "V", []string{"A", "B"}, nil)
	coh.Real = []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	return load(t, nil, tf, coh)
}

func TestTransferDirectAndReciprocal(t *testing.T) {
	a := transferFixture(t)

	direct, err := a.Transfer("A", "V")
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, direct.Strategy)
	assert.Equal(t, []complex128{2, 4i, 1 + 1i}, direct.Values)
	assert.Nil(t, direct.Freq, "value-only transfer records carry no axis")

	recip, err := a.Transfer("V", "A")
	require.NoError(t, err)
	assert.Equal(t, StrategyReciprocal, recip.Strategy)

	for i := range direct.Values {
		p := direct.Values[i] * recip.Values[i]
		assert.InDelta(t, 1, real(p), 1e-12)
		assert.InDelta(t, 0, imag(p), 1e-12)
	}
}

func TestTransferSNR(t *testing.T) {
	a := transferFixture(t)

	tf, err := a.Transfer("A", "V")
	require.NoError(t, err)
	snr, err := a.TransferSNR(tf)
	require.NoError(t, err)
	for _, v := range snr {
		assert.InDelta(t, 10.0/3, v, 1e-6)
	}
}

func TestTransferVia(t *testing.T) {
	a := transferFixture(t)

	via, err := a.TransferVia("A", "B", "V")
	require.NoError(t, err)
	require.Len(t, via.Values, 3)
	assert.InDelta(t, 2, real(via.Values[0]), 1e-12)
	assert.InDelta(t, 2, real(via.Values[1]), 1e-12)
	assert.InDelta(t, 0.5, real(via.Values[2]), 1e-12)
	assert.InDelta(t, 0.5, imag(via.Values[2]), 1e-12)

	snr, err := a.TransferViaSNR(via)
	require.NoError(t, err)
	for _, v := range snr {
		assert.InDelta(t, 10.0/6, v, 1e-6)
	}

	_, _, _, err = a.ViaSpectra(via)
	assert.ErrorIs(t, err, records.ErrChannelNotFound)
}

func TestMetadataCheckReflexive(t *testing.T) {
	for _, a := range []*Access{spectraFixture(t), transferFixture(t)} {
		for _, kind := range []records.Kind{records.KindPSD, records.KindCSD, records.KindCOH, records.KindTF} {
			for _, key := range a.Keys(kind) {
				rec, ok := a.Record(kind, key)
				require.True(t, ok)
				assert.NoError(t, MetadataCheck(rec, rec), "%s %s", kind, key)
			}
		}
	}
}

func TestChannels(t *testing.T) {
	chnA, chnB := spectraFixture(t).Channels()
	assert.Equal(t, []string{"A", "A(REF0)", "B"}, chnA)
	assert.Equal(t, []string{"C"}, chnB)
}

func coefficientTable(name, kind string, values []complex64) rt.Measurement {
	return rt.Measurement{
		Name: name,
		Type: kind,
		Params: []rt.Param{
			rt.Int("Subtype", 0),
			rt.Int("Averages", 3),
			rt.String("ChannelA[0]", "EXC"),
			rt.String("ChannelB[1]", "RESP"),
		},
		Dims:    []int{3, 3},
		Complex: values,
	}
}

func coefficientFixture(t *testing.T) *Access {
	tc := coefficientTable("Result[10]", "TransferCoefficients", []complex64{
		10, 1, 1,
		20, 2, 4 + 2i,
		30, 3, 9,
	})
	cc := coefficientTable("Result[11]", "CoherenceCoefficients", []complex64{
		10, 1, 0.5,
		20, 1, 0.75 + 1i,
		30, 1, 0.25,
	})
	hc := coefficientTable("Result[12]", "HarmonicCoefficients", []complex64{
		0, 1, 1,
		1, 2, 4,
		2, 4, 2,
	})
	entries := []string{
		rt.Entry("TransferCoefficients", 0, "Result[10]"),
		rt.Entry("CoherenceCoefficients", 1, "Result[11]"),
		rt.Entry("HarmonicCoefficients", 2, "Result[12]"),
	}
	return load(t, entries, tc, cc, hc)
}

func TestSineResponseSelfNormalized(t *testing.T) {
	a := coefficientFixture(t)

	s, err := a.SineResponse([]string{"EXC", "RESP"}, "EXC", 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.FHz)

	exc, ok := s.Coeff("EXC")
	require.True(t, ok)
	assert.Equal(t, complex128(1), exc)

	resp, _ := s.Coeff("RESP")
	assert.Equal(t, complex128(2+1i), resp)

	coh, _ := s.Coh("RESP")
	assert.Equal(t, 0.75, coh, "coherence coefficients are real")

	raw, err := a.SineResponse([]string{"RESP"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, complex128(1), raw.Coeffs[0])

	_, err = a.SineResponse([]string{"MISSING"}, "EXC", 0)
	assert.ErrorIs(t, err, records.ErrChannelNotFound)
}

func TestHarmonicResponse(t *testing.T) {
	a := coefficientFixture(t)

	h, err := a.HarmonicResponse([]string{"EXC", "RESP"}, "EXC")
	require.NoError(t, err)
	assert.Equal(t, complex128(2), h.CoeffWrt)
	assert.Equal(t, []complex128{0.5, 1, 2}, h.Coeffs[0])
	assert.Equal(t, []complex128{0.5, 2, 1}, h.Coeffs[1])
	assert.Equal(t, complex128(2), h.SecondHarmonic[0])
	assert.Equal(t, complex128(0.5), h.SecondHarmonic[1])
	require.Len(t, h.Cohs, 2)
	assert.Equal(t, []float64{0.5, 0.75, 0.25}, h.Cohs[1])
}

func TestSNRHelpers(t *testing.T) {
	assert.Equal(t, []float64{0, 3}, SNREstimate([]float64{0.5, 2}))
	assert.InDeltaSlice(t, []float64{5}, CombineSNR([]float64{10}, []float64{10}), 1e-12)

	snr := CoherenceSNR([]float64{1, 0.1}, 100)
	assert.True(t, snr[0] > 1e4, "coherence is capped, not infinite")
	assert.Zero(t, snr[1], "below 1.5/sqrt(N) is rejected")
}

type sliceSource struct {
	rate    float64
	samples []float64
}

func (s sliceSource) SampleRate(string) (float64, error) { return s.rate, nil }
func (s sliceSource) Samples(string) ([]float64, error)  { return s.samples, nil }
func (s sliceSource) Len(string) (int, error)            { return len(s.samples), nil }

func TestFrameSpectrumFindsTone(t *testing.T) {
	const rate = 128.0
	samples := make([]float64, 1024)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 16 * float64(i) / rate)
	}

	s, err := FrameSpectrum(sliceSource{rate: rate, samples: samples}, "H1:SINE", WelchOptions{NFFT: 128, Overlap: -1, Window: records.WindowHanning})
	require.NoError(t, err)
	assert.Equal(t, "H1:SINE", s.Channel)
	assert.Equal(t, 1.0, s.Bandwidth)
	assert.Equal(t, 15, s.Averages)
	require.Equal(t, len(s.Freq), len(s.Values))
	assert.InDelta(t, 16, s.Freq[floats.MaxIdx(s.Values)], 1e-9)
}

func TestTimeSeriesSpectrum(t *testing.T) {
	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = float32(math.Cos(2 * math.Pi * 8 * float64(i) / 64))
	}
	ts := rt.Measurement{
		Name: "Result[0]",
		Type: "TimeSeries",
		GPS:  1000,
		Params: []rt.Param{
			rt.Int("Subtype", 0),
			rt.Float("dt", 1.0/64),
			rt.String("Channel", "H1:TS"),
		},
		Dims: []int{256},
		Real: samples,
	}
	a := load(t, nil, ts)

	s, err := a.TimeSeriesSpectrum("H1:TS", WelchOptions{NFFT: 64, Overlap: -1})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, s.GPSSecond)
	assert.InDelta(t, 8, s.Freq[floats.MaxIdx(s.Values)], 1e-9)

	_, err = a.TimeSeriesSpectrum("H1:NONE", WelchOptions{})
	assert.ErrorIs(t, err, records.ErrChannelNotFound)
}

func TestWelchWindowSubstitution(t *testing.T) {
	samples := make([]float64, 256)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 4 * float64(i) / 64)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	s, err := WelchASD(samples, 64, WelchOptions{NFFT: 64, Overlap: -1, Window: records.WindowBMH, Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, records.WindowBMH, s.Window)
	assert.Zero(t, logs.Len())

	for _, w := range []records.Window{records.WindowWelch, records.WindowKaiser} {
		s, err = WelchASD(samples, 64, WelchOptions{NFFT: 64, Overlap: -1, Window: w, Logger: logger})
		require.NoError(t, err)
		assert.Equal(t, records.WindowHanning, s.Window, "%s falls back", w)
		assert.InDelta(t, 4, s.Freq[floats.MaxIdx(s.Values)], 1e-9)
	}
	entries := logs.FilterMessage("window not available, using Hanning").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Welch", entries[0].ContextMap()["requested"])
	assert.Equal(t, "Kaiser", entries[1].ContextMap()["requested"])
}
