package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/export"
	"github.com/oneconcern/pacbox/pkg/model"
)

const testConfig = `
store:
  dir: /var/lib/pacbox/store
box:
  dir: /srv/box
pool:
  dir: /srv/pool
  default: /srv/pool/automated
  overrides:
    stable/core/x86_64: /srv/pool/core
sections:
  branches: [stable, testing]
  repositories: [core]
  architectures: [x86_64, aarch64]
export:
  interval: 30s
  compression: xz
  on_error: skip
  on_change: false
log:
  level: debug
metrics:
  listen: ":9090"
`

func loadYAML(t testing.TB, content string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(content)))
	return Load(v)
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	sections, err := c.SectionList()
	require.NoError(t, err)
	assert.Len(t, sections, 9)
	assert.Equal(t, export.CompressionZstd, c.CompressionFilter())
	assert.Equal(t, export.StopOnError, c.ErrorPolicy())
	assert.Equal(t, filepath.Join("box", "pool", "overlay"), c.PoolPath(sections[0]))
}

func TestLoad(t *testing.T) {
	c, err := loadYAML(t, testConfig)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pacbox/store", c.Store.Dir)
	assert.Equal(t, "/srv/box", c.Box.Dir)
	assert.Equal(t, 30*time.Second, c.Export.Interval)
	assert.Equal(t, export.CompressionXZ, c.CompressionFilter())
	assert.Equal(t, export.SkipOnError, c.ErrorPolicy())
	assert.False(t, c.Export.OnChange)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, ":9090", c.Metrics.Listen)

	sections, err := c.SectionList()
	require.NoError(t, err)
	assert.Equal(t, []model.Section{
		{Branch: "stable", Repository: "core", Architecture: "aarch64"},
		{Branch: "stable", Repository: "core", Architecture: "x86_64"},
		{Branch: "testing", Repository: "core", Architecture: "aarch64"},
		{Branch: "testing", Repository: "core", Architecture: "x86_64"},
	}, sections)

	assert.Equal(t, "/srv/pool/core", c.PoolPath(model.Section{Branch: "stable", Repository: "core", Architecture: "x86_64"}))
	assert.Equal(t, "/srv/pool/automated", c.PoolPath(model.Section{Branch: "testing", Repository: "core", Architecture: "x86_64"}))
}

func TestLoadDefaults(t *testing.T) {
	c, err := loadYAML(t, "box:\n  dir: /srv/box\n")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, "/srv/box", c.Box.Dir)
	assert.Equal(t, d.Store, c.Store)
	assert.Equal(t, d.Sections, c.Sections)
	assert.Equal(t, d.Export, c.Export)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PACBOX_EXPORT_INTERVAL", "1h")
	t.Setenv("PACBOX_LOG_LEVEL", "warn")

	v := NewViper()
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, c.Export.Interval)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestValidate(t *testing.T) {
	for _, toPin := range []struct {
		Name   string
		Mutate func(*Config)
	}{
		{Name: "no box dir", Mutate: func(c *Config) { c.Box.Dir = "" }},
		{Name: "no pool dir", Mutate: func(c *Config) { c.Pool.Dir = "" }},
		{Name: "negative interval", Mutate: func(c *Config) { c.Export.Interval = -time.Second }},
		{Name: "unknown compression", Mutate: func(c *Config) { c.Export.Compression = "lz4" }},
		{Name: "unknown error policy", Mutate: func(c *Config) { c.Export.OnError = "retry" }},
		{Name: "no sections", Mutate: func(c *Config) { c.Sections.Architectures = nil }},
		{Name: "invalid section", Mutate: func(c *Config) { c.Sections.Branches = []string{"sta/ble"} }},
		{Name: "invalid override", Mutate: func(c *Config) { c.Pool.Overrides = map[string]string{"stable": "/srv"} }},
	} {
		testCase := toPin
		t.Run(testCase.Name, func(t *testing.T) {
			c := Default()
			testCase.Mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestGenerate(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "interval: 5m0s")
	assert.Contains(t, string(out), "on_error: stop")

	c, err := loadYAML(t, string(out))
	require.NoError(t, err)
	assert.Equal(t, Default().Export, c.Export)
	assert.Equal(t, Default().Sections, c.Sections)
}
