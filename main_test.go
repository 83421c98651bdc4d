package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagxml/internal/config"
	rt "diagxml/internal/records/recordstest"
	"diagxml/internal/sink"
)

func TestOutputPath(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "data/sweep.json", outputPath("data/sweep.xml", []string{"data/sweep.xml"}, cfg, sink.FormatJSON))
	assert.Equal(t, "out.parquet", outputPath("in.xml", []string{"in.xml", "out.parquet"}, cfg, sink.FormatJSON))

	cfg.Output.Path = "fixed.csv"
	assert.Equal(t, "fixed.csv", outputPath("in.xml", []string{"in.xml"}, cfg, sink.FormatCSV))
}

func TestRunConvert(t *testing.T) {
	psdA := rt.Spectrum("Result[0]", 1, "A", nil, 0, 1, 4)
	psdA.Real = []float32{1, 1, 1, 1}
	psdB := rt.Spectrum("Result[1]", 1, "B", nil, 0, 1, 4)
	psdB.Real = []float32{2, 2, 2, 2}
	csd := rt.Spectrum("Result[2]", 2, "A", []string{"B"}, 0, 1, 4)
	csd.Complex = []complex64{4, 4, 4, 4}

	dir := t.TempDir()
	input := filepath.Join(dir, "sweep.xml")
	require.NoError(t, os.WriteFile(input, []byte(rt.Document([]string{"Spectrum[0]"}, psdA, psdB, csd)), 0o644))

	quiet = true
	t.Cleanup(func() { quiet = false })
	viper.Set("output.format", "json")
	require.NoError(t, runConvert([]string{input}))

	data, err := os.ReadFile(filepath.Join(dir, "sweep.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "spectra", doc["type"])
	assert.Equal(t, map[string]any{"A": []any{1.0, 1.0, 1.0, 1.0}, "B": []any{2.0, 2.0, 2.0, 2.0}}, doc["ASD"])
	assert.Contains(t, doc, "XFER")
}

func TestRunConvertMalformedInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(input, []byte("<LIGO_LW>"), 0o644))

	quiet = true
	t.Cleanup(func() { quiet = false })
	assert.Error(t, runConvert([]string{input}))
}
