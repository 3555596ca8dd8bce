// Package config holds the lookup tables and limits every analysis reads.
//
// A Config is built once per run (embedded defaults, optionally overlaid by a
// YAML file) and passed explicitly into each component. Nothing here is a
// process-wide registry.
package config

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/misfinder/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ProviderRules are the per-provider tables.
type ProviderRules struct {
	// Name is the provider tag returned by the classifier.
	Name model.Provider `yaml:"name" validate:"required,oneof=azure google aws"`

	// ImportKeywords are substrings matched against imported module paths.
	ImportKeywords []string `yaml:"import_keywords" validate:"required,min=1,dive,required"`

	// SingularServices are method names that accept one item per call.
	SingularServices []string `yaml:"singular_services" validate:"dive,required"`
}

// Config is the analysis configuration.
type Config struct {
	Providers      []ProviderRules `yaml:"providers" validate:"required,min=1,unique=Name,dive"`
	NetworkMethods []string        `yaml:"network_methods" validate:"required,min=1,dive,required"`
	RiskyKeywords  []string        `yaml:"risky_keywords" validate:"dive,required"`
	PluralSuffixes []string        `yaml:"plural_suffixes" validate:"dive,required"`
	SkipDirs       []string        `yaml:"skip_dirs" validate:"dive,required"`
	MaxFileSize    int64           `yaml:"max_file_size" validate:"gte=0"`
	MaxDepth       int             `yaml:"max_depth" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Parse(defaultsYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// DefaultYAML returns the embedded defaults document.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}

// Load reads a YAML file and overlays it onto the defaults. Keys absent from
// the file keep their default values; lists present in the file replace the
// default list.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, Default())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data onto base (or an empty Config when base is nil) and
// validates the result.
func Parse(data []byte, base *Config) (*Config, error) {
	cfg := &Config{}
	if base != nil {
		*cfg = *base
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Rules returns the tables for p, or nil when p is not configured.
func (c *Config) Rules(p model.Provider) *ProviderRules {
	for i := range c.Providers {
		if c.Providers[i].Name == p {
			return &c.Providers[i]
		}
	}
	return nil
}

// SingularServices returns the singular-capable method set for p. It is
// empty for an unknown provider.
func (c *Config) SingularServices(p model.Provider) map[string]struct{} {
	if r := c.Rules(p); r != nil {
		return toSet(r.SingularServices)
	}
	return map[string]struct{}{}
}

// NetworkMethodSet returns the generic network call method names.
func (c *Config) NetworkMethodSet() map[string]struct{} { return toSet(c.NetworkMethods) }

// RiskyKeywordSet returns the risky keyword argument names.
func (c *Config) RiskyKeywordSet() map[string]struct{} { return toSet(c.RiskyKeywords) }

// Digest returns a stable hash of the effective configuration.
func (c *Config) Digest() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
