package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Conversion.RemapOnly)
}

func TestLoadYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
conversion:
  channels: [sensor, drive]
  remap_only: true
  channel_map:
    - H1:SUS-ETMX_L3_ERR=sensor
    - H1:SUS-ETMX_L2_ERR = drive
  exclude:
    - H1:LSC-DARM_OUT
output:
  format: parquet
welch:
  nfft: 1024
logging:
  level: debug
`)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"sensor", "drive"}, cfg.Conversion.Channels)
	assert.True(t, cfg.Conversion.RemapOnly)
	assert.Equal(t, []string{"H1:LSC-DARM_OUT"}, cfg.Conversion.Exclude)
	assert.Equal(t, "parquet", cfg.Output.Format)
	assert.Equal(t, 1024, cfg.Welch.NFFT)
	assert.Equal(t, "Hanning", cfg.Welch.Window)
	assert.Equal(t, "debug", cfg.Logging.Level)

	renames, err := cfg.Conversion.Renames()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"H1:SUS-ETMX_L3_ERR": "sensor",
		"H1:SUS-ETMX_L2_ERR": "drive",
	}, renames)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "hdf5"
	assert.ErrorContains(t, cfg.Validate(), "invalid output format")

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")

	cfg = DefaultConfig()
	cfg.Conversion.ChannelMap = []string{"H1:X"}
	assert.ErrorContains(t, cfg.Validate(), "invalid channel_map entry")
}
