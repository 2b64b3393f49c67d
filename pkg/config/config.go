// Package config holds the configuration of the pacbox daemon.
//
// The configuration is read with viper, from a pacboxd.yaml file and PACBOX_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/export"
	"github.com/oneconcern/pacbox/pkg/model"
)

const (
	// EnvPrefix for environment variables overriding the configuration
	EnvPrefix = "PACBOX"

	// EnvConfig names an explicit configuration file
	EnvConfig = EnvPrefix + "_CONFIG"

	// Name of the configuration file, without extension
	Name = "pacboxd"
)

// ErrInvalidConfig is returned when the configuration cannot be used
var ErrInvalidConfig = errors.New("invalid configuration")

// Config of the daemon
type Config struct {
	Store    Store    `json:"store" yaml:"store" mapstructure:"store"`
	Box      Box      `json:"box" yaml:"box" mapstructure:"box"`
	Pool     Pool     `json:"pool" yaml:"pool" mapstructure:"pool"`
	Sections Sections `json:"sections" yaml:"sections" mapstructure:"sections"`
	Export   Export   `json:"export" yaml:"export" mapstructure:"export"`
	Log      Log      `json:"log" yaml:"log" mapstructure:"log"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// Store is where metadata is persisted. An empty dir keeps everything in memory.
type Store struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Box is the root of the exported repository tree
type Box struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Pool of package files.
//
// Dir holds one directory per pool location. Deployed packages go to the
// Default directory, unless their section has an override.
type Pool struct {
	Dir       string            `json:"dir" yaml:"dir" mapstructure:"dir"`
	Default   string            `json:"default" yaml:"default" mapstructure:"default"`
	Overrides map[string]string `json:"overrides,omitempty" yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// Sections served: every combination of branch, repository and architecture
type Sections struct {
	Branches      []string `json:"branches" yaml:"branches" mapstructure:"branches"`
	Repositories  []string `json:"repositories" yaml:"repositories" mapstructure:"repositories"`
	Architectures []string `json:"architectures" yaml:"architectures" mapstructure:"architectures"`
}

// Export of repository databases
type Export struct {
	Interval    time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Compression string        `json:"compression" yaml:"compression" mapstructure:"compression"`
	OnError     string        `json:"on_error" yaml:"on_error" mapstructure:"on_error"`
	OnChange    bool          `json:"on_change" yaml:"on_change" mapstructure:"on_change"`
}

// Log settings
type Log struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// Metrics settings. Metrics are served on Listen, when set.
type Metrics struct {
	Listen  string `json:"listen,omitempty" yaml:"listen,omitempty" mapstructure:"listen"`
	Runtime bool   `json:"runtime,omitempty" yaml:"runtime,omitempty" mapstructure:"runtime"`
}

// Default configuration
func Default() *Config {
	return &Config{
		Store: Store{Dir: filepath.Join("box", "store")},
		Box:   Box{Dir: "box"},
		Pool: Pool{
			Dir:     filepath.Join("box", "pool"),
			Default: filepath.Join("box", "pool", string(model.LocationOverlay)),
		},
		Sections: Sections{
			Branches:      []string{"stable", "testing", "unstable"},
			Repositories:  []string{"core", "extra", "multilib"},
			Architectures: []string{"x86_64"},
		},
		Export: Export{
			Interval:    5 * time.Minute,
			Compression: string(export.DefaultCompression),
			OnError:     string(export.StopOnError),
			OnChange:    true,
		},
		Log: Log{Level: "info"},
	}
}

// NewViper builds a viper instance looking for the configuration file in the usual places,
// with defaults and environment overrides set.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file := os.Getenv(EnvConfig); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pacbox")
		v.AddConfigPath("/etc/pacbox")
		v.SetConfigName(Name)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default configuration with viper
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("box.dir", d.Box.Dir)
	v.SetDefault("pool.dir", d.Pool.Dir)
	v.SetDefault("pool.default", d.Pool.Default)
	v.SetDefault("pool.overrides", map[string]string{})
	v.SetDefault("sections.branches", d.Sections.Branches)
	v.SetDefault("sections.repositories", d.Sections.Repositories)
	v.SetDefault("sections.architectures", d.Sections.Architectures)
	v.SetDefault("export.interval", d.Export.Interval)
	v.SetDefault("export.compression", d.Export.Compression)
	v.SetDefault("export.on_error", d.Export.OnError)
	v.SetDefault("export.on_change", d.Export.OnChange)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("metrics.runtime", d.Metrics.Runtime)
}

// Load the configuration from viper, and validate it
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate the configuration
func (c *Config) Validate() error {
	if c.Box.Dir == "" {
		return ErrInvalidConfig.Describe("box.dir is required")
	}
	if c.Pool.Dir == "" {
		return ErrInvalidConfig.Describe("pool.dir is required")
	}
	if c.Export.Interval < 0 {
		return ErrInvalidConfig.Describe("export.interval must not be negative")
	}
	if _, err := export.ParseCompression(c.Export.Compression); err != nil {
		return ErrInvalidConfig.Describe("export.compression").Wrap(err)
	}
	if _, err := export.ParseErrorPolicy(c.Export.OnError); err != nil {
		return ErrInvalidConfig.Describe("export.on_error").Wrap(err)
	}
	sections, err := c.SectionList()
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		return ErrInvalidConfig.Describe("no section configured")
	}
	for key := range c.Pool.Overrides {
		if _, err := model.ParseSection(key); err != nil {
			return ErrInvalidConfig.Describe("pool.overrides").Wrap(err)
		}
	}
	return nil
}

// SectionList expands the configured sections, sorted
func (c *Config) SectionList() ([]model.Section, error) {
	seen := make(map[model.Section]struct{})
	sections := make([]model.Section, 0, len(c.Sections.Branches)*len(c.Sections.Repositories)*len(c.Sections.Architectures))
	for _, branch := range c.Sections.Branches {
		for _, repository := range c.Sections.Repositories {
			for _, arch := range c.Sections.Architectures {
				s := model.Section{Branch: branch, Repository: repository, Architecture: arch}
				if err := s.Validate(); err != nil {
					return nil, ErrInvalidConfig.Describe("sections").Wrap(err)
				}
				if _, ok := seen[s]; ok {
					continue
				}
				seen[s] = struct{}{}
				sections = append(sections, s)
			}
		}
	}
	model.SortSections(sections)
	return sections, nil
}

// PoolPath is the directory packages deployed to a section are stored in
func (c *Config) PoolPath(section model.Section) string {
	if dir, ok := c.Pool.Overrides[section.String()]; ok && dir != "" {
		return dir
	}
	if c.Pool.Default != "" {
		return c.Pool.Default
	}
	return filepath.Join(c.Pool.Dir, string(model.LocationOverlay))
}

// CompressionFilter of database archives
func (c *Config) CompressionFilter() export.Compression {
	compression, err := export.ParseCompression(c.Export.Compression)
	if err != nil {
		return export.DefaultCompression
	}
	return compression
}

// ErrorPolicy of the exporter
func (c *Config) ErrorPolicy() export.ErrorPolicy {
	policy, err := export.ParseErrorPolicy(c.Export.OnError)
	if err != nil {
		return export.StopOnError
	}
	return policy
}

// YAML renders the configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
