package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagxml/internal/access"
	"diagxml/internal/config"
	"diagxml/internal/records"
	rt "diagxml/internal/records/recordstest"
	"diagxml/internal/tree"
)

func TestWelchOptionsDefaults(t *testing.T) {
	opts, err := welchOptions(config.DefaultConfig().Welch)
	require.NoError(t, err)
	assert.Equal(t, records.WindowHanning, opts.Window)
	assert.Equal(t, 256, opts.NFFT)
	assert.Equal(t, -1, opts.Overlap)
	assert.True(t, opts.Detrend)

	_, err = welchOptions(config.WelchConfig{Window: "Gaussian"})
	assert.Error(t, err)
}

func TestWelchOptionsFromConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
welch:
  nfft: 128
  window: bmh
  detrend: false
`)))
	cfg, err := config.Load(v)
	require.NoError(t, err)

	opts, err := welchOptions(cfg.Welch)
	require.NoError(t, err)
	assert.Equal(t, 128, opts.NFFT)
	assert.Equal(t, -1, opts.Overlap, "unset keys keep their defaults")
	assert.Equal(t, records.WindowBMH, opts.Window)
	assert.False(t, opts.Detrend)
}

func TestAddASDHonoursDetrend(t *testing.T) {
	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = float32(10 + math.Cos(2*math.Pi*8*float64(i)/64))
	}
	ts := rt.Measurement{
		Name: "Result[0]",
		Type: "TimeSeries",
		Params: []rt.Param{
			rt.Int("Subtype", 0),
			rt.Float("dt", 1.0/64),
			rt.String("Channel", "H1:TS"),
		},
		Dims: []int{256},
		Real: samples,
	}
	path := filepath.Join(t.TempDir(), "ts.xml")
	require.NoError(t, os.WriteFile(path, []byte(rt.Document([]string{"TimeSeries[0]"}, ts)), 0o644))
	a, err := access.Open(path)
	require.NoError(t, err)

	asdChannel = "H1:TS"
	t.Cleanup(func() { asdChannel = "" })

	asd := func(detrend bool) []float64 {
		out := tree.New()
		require.NoError(t, addASD(out, a, access.WelchOptions{NFFT: 64, Overlap: -1, Window: records.WindowHanning, Detrend: detrend}))
		v, ok := out.Lookup("asd/ASD")
		require.True(t, ok)
		return v.([]float64)
	}

	detrended, raw := asd(true), asd(false)
	require.Len(t, raw, len(detrended))
	assert.Less(t, detrended[0], 1e-3)
	assert.Greater(t, raw[0], 1.0)
	assert.InDelta(t, detrended[8], raw[8], 1e-6*raw[8])
}
