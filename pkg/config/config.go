// Package config holds the run configuration for the tracer: where the
// trace log goes, how it is compressed, and platform overrides for
// ABI-dependent constants.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/ptracekit/pkg/regs"
)

// Config is the tracer's run configuration, loadable from YAML.
type Config struct {
	// Output is the trace log path. Empty means no file recording.
	Output string `yaml:"output"`

	// Compress enables zstd compression of the trace log.
	Compress bool `yaml:"compress"`

	// Annotate enables /proc-based executable-name annotation of
	// recorded events.
	Annotate bool `yaml:"annotate"`

	// RedZones overrides the built-in ABI red-zone table, keyed by
	// "os/arch" (e.g. "linux/amd64"). Mainly for experimentation and
	// for tracing platforms the table does not know yet.
	RedZones map[string]int64 `yaml:"red_zones"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Output:   "",
		Compress: true,
		Annotate: true,
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %v", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	for key, size := range c.RedZones {
		if size < 0 {
			return fmt.Errorf("red zone for %q must not be negative, got %d", key, size)
		}
		if !strings.Contains(key, "/") {
			return fmt.Errorf("red zone key %q must have the form os/arch", key)
		}
	}
	return nil
}

// RedZoneFor resolves the red-zone size for a platform, preferring a
// configured override over the built-in table.
func (c Config) RedZoneFor(p regs.Platform) int64 {
	if size, ok := c.RedZones[p.OS+"/"+p.Arch]; ok {
		return size
	}
	return p.RedZoneSize()
}
