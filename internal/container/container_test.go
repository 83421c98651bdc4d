package container

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"diagxml/internal/records"
	rt "diagxml/internal/records/recordstest"
)

func decodeString(t *testing.T, doc string, opts ...Option) (*Container, error) {
	t.Helper()
	return Decode(strings.NewReader(doc), opts...)
}

func TestDecodeSinglePSD(t *testing.T) {
	psd := rt.Spectrum("Result[0]", 1, "X", nil, 0.0, 1.0, 4)
	psd.Real = []float32{1, 4, 9, 16}

	c, err := decodeString(t, rt.Document([]string{"Spectrum[0]\nName = Result[0];"}, psd))
	require.NoError(t, err)
	assert.Empty(t, c.Errors)

	rec, ok := c.Lookup(records.KindPSD, "X")
	require.True(t, ok)
	got := rec.(*records.PowerSpectrum)
	assert.Equal(t, []float64{0, 1, 2, 3}, got.Freq)
	require.Len(t, got.Values, 1)
	assert.Len(t, got.Values[0], 4)
	assert.Equal(t, []int{0}, c.ResultIDs())
}

func TestDecodeMissingIndex(t *testing.T) {
	doc := `<LIGO_LW Name="Diagnostics"><LIGO_LW Name="Result[0]" Type="Spectrum"/></LIGO_LW>`
	_, err := decodeString(t, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, records.ErrMalformedContainer)
}

func TestDecodeBadXML(t *testing.T) {
	_, err := decodeString(t, `<LIGO_LW Name="Diagnostics"><LIGO_LW`)
	assert.ErrorIs(t, err, records.ErrMalformedContainer)
}

func TestDecodeAllEntriesMalformed(t *testing.T) {
	_, err := decodeString(t, rt.Document([]string{"---", "  ;;"}))
	assert.ErrorIs(t, err, records.ErrMalformedIndexEntry)
}

func TestDecodeSkipsBadEntries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	tc := rt.Measurement{
		Name:   "Result[4]",
		Type:   "TransferCoefficients",
		Params: []rt.Param{rt.Int("Subtype", 0), rt.String("ChannelA[0]", "EXC")},
		Dims:   []int{1, 2},
		Complex: []complex64{
			5, 2 + 1i,
		},
	}
	broken := rt.Spectrum("Result[1]", 1, "Y", nil, 0, 1, 4)
	broken.Real = []float32{1, 2, 3} // too short for N=4

	entries := []string{
		"---",
		rt.Entry("TransferCoefficients", 0, "Result[4]"),
		rt.Entry("CoherenceCoefficients", 1, "Result[9]"),
	}
	c, err := decodeString(t, rt.Document(entries, tc, broken), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.Len(t, c.Errors, 3)
	assert.ErrorIs(t, c.Errors[0], records.ErrMalformedIndexEntry)
	assert.ErrorIs(t, c.Errors[1], records.ErrMalformedContainer, "missing coefficient node")
	assert.ErrorIs(t, c.Errors[2], records.ErrMalformedContainer, "short PSD payload")
	assert.Equal(t, 3, logs.FilterMessage("skipping entry").Len())
	assert.Error(t, c.Err())

	coeffs, ok := c.Coefficients[records.KindTransferCoefficients]
	require.True(t, ok)
	assert.Equal(t, []float64{5}, coeffs.Freq)
	_, ok = c.Lookup(records.KindPSD, "Y")
	assert.False(t, ok)
}

func TestDecodeReferencesAndTimeSeries(t *testing.T) {
	ref := rt.Spectrum("Reference[2]", 1, "X", nil, 0, 1, 2)
	ref.Real = []float32{1, 1}
	ts := rt.Measurement{
		Name: "Result[3]",
		Type: "TimeSeries",
		Params: []rt.Param{
			rt.Int("Subtype", 0),
			rt.Float("dt", 0.5),
			rt.String("Channel", "H1:TS"),
		},
		Dims: []int{2},
		Real: []float32{3, 4},
	}

	c, err := decodeString(t, rt.Document([]string{"TimeSeries[0]"}, ref, ts))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, c.ReferenceIDs())
	_, ok := c.Lookup(records.KindPSD, "X")
	assert.False(t, ok, "references are not indexed as results")

	rec, ok := c.Lookup(records.KindTS, "H1:TS")
	require.True(t, ok)
	assert.Equal(t, 0.5, rec.(*records.TimeSeries).DT)
}

func TestDecodeUnknownResultKind(t *testing.T) {
	m := rt.Spectrum("Result[0]", 11, "X", nil, 0, 1, 1)
	m.Real = []float32{1}
	_, err := decodeString(t, rt.Document([]string{"Spectrum[0]"}, m))
	assert.True(t, errors.Is(err, records.ErrUnsupportedKind))
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		text     string
		typeName string
		index    int
		indexed  bool
		wantErr  bool
	}{
		{"TransferCoefficients[3]\nName = Result[3];", "TransferCoefficients", 3, true, false},
		{"Spectrum\nsomething else", "Spectrum", 0, false, false},
		{"  Index entry[12] trailing", "entry", 12, true, false},
		{"---", "", 0, false, true},
		{"", "", 0, false, true},
	}
	for _, tt := range tests {
		typeName, index, indexed, err := ParseEntry(tt.text)
		if tt.wantErr {
			assert.ErrorIs(t, err, records.ErrMalformedIndexEntry, "text %q", tt.text)
			continue
		}
		require.NoError(t, err, "text %q", tt.text)
		assert.Equal(t, tt.typeName, typeName)
		assert.Equal(t, tt.index, index)
		assert.Equal(t, tt.indexed, indexed)
	}
}

func TestDecodeRejectsOversizedHeaders(t *testing.T) {
	psd := rt.Spectrum("Result[0]", 1, "X", nil, 0, 1, 1<<50)
	psd.Real = []float32{1, 2, 3, 4}
	ts := rt.Measurement{
		Name:   "Result[1]",
		Type:   "TimeSeries",
		Params: []rt.Param{rt.Int("Subtype", 0), rt.Float("dt", 0.5), rt.String("Channel", "H1:TS")},
		Dims:   []int{1 << 32, 1 << 32},
		Real:   []float32{},
	}
	good := rt.Spectrum("Result[2]", 1, "Y", nil, 0, 1, 2)
	good.Real = []float32{1, 1}

	c, err := decodeString(t, rt.Document([]string{"Spectrum[0]"}, psd, ts, good))
	require.NoError(t, err)
	require.Len(t, c.Errors, 2)
	for _, e := range c.Errors {
		assert.ErrorIs(t, e, records.ErrMalformedContainer)
	}
	assert.Equal(t, []int{2}, c.ResultIDs())
	for _, id := range c.ResultIDs() {
		assert.NotNil(t, c.Results[id].Tree())
	}
}

func TestDecodeSineCoefficientTables(t *testing.T) {
	table := func(name, kind string) rt.Measurement {
		return rt.Measurement{
			Name: name,
			Type: kind,
			Params: []rt.Param{
				rt.Int("Subtype", 6),
				rt.String("ChannelA[0]", "EXC"),
				rt.String("ChannelB[1]", "RESP"),
				rt.String("ChannelB[2]", "AUX"),
			},
			Dims: []int{2, 4},
			Complex: []complex64{
				10, 1, 2i, 3,
				20, 4, 5i, 6,
			},
		}
	}

	tests := []struct {
		typeName string
		kind     records.Kind
	}{
		{"HarmonicCoefficients", records.KindHarmonicCoefficients},
		{"IntermodulationCoefficients", records.KindIntermodulationCoefficients},
	}
	for _, tt := range tests {
		doc := rt.Document([]string{rt.Entry(tt.typeName, 0, "Table")}, table("Table", tt.typeName))
		c, err := decodeString(t, doc)
		require.NoError(t, err, tt.typeName)
		assert.Empty(t, c.Errors, tt.typeName)

		coeffs, ok := c.Coefficients[tt.kind]
		require.True(t, ok, "no %s table", tt.typeName)
		assert.Equal(t, tt.kind, coeffs.Kind)
		assert.Equal(t, []float64{10, 20}, coeffs.Freq)
		assert.Equal(t, [][]complex128{{1, 2i, 3}, {4, 5i, 6}}, coeffs.Coeffs)
		col, ok := coeffs.Column("AUX")
		require.True(t, ok)
		assert.Equal(t, 2, col)
		assert.Equal(t, "EXC", coeffs.Primary())
		assert.Len(t, c.Coefficients, 1, tt.typeName)
	}
}
