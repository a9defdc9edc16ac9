// Package config loads the audit configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
	"github.com/locktivity/epack-collector-akamai/internal/archive"
	"github.com/locktivity/epack-collector-akamai/internal/checks"
	"github.com/locktivity/epack-collector-akamai/internal/collector"
	"github.com/locktivity/epack-collector-akamai/internal/logging"
	"github.com/locktivity/epack-collector-akamai/internal/otel"
)

// Config is the audit configuration.
type Config struct {
	EdgeRC            string         `yaml:"edgerc"`
	Section           string         `yaml:"section"`
	AccountSwitchKey  string         `yaml:"account_switch_key"`
	Source            string         `yaml:"source"`
	Concurrency       int            `yaml:"concurrency"`
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	Timeout           time.Duration  `yaml:"timeout"`
	Log               logging.Config `yaml:"log"`
	Checks            []checks.Check `yaml:"checks"`
	Archive           archive.Config `yaml:"archive"`
	OTel              otel.Config    `yaml:"otel"`
	MetricsFile       string         `yaml:"metrics_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		EdgeRC:      "~/.edgerc",
		Section:     "default",
		Source:      akamai.SourceEndpoints,
		Concurrency: collector.DefaultConcurrency,
		Timeout:     akamai.DefaultTimeout,
		Log:         logging.DefaultConfig(),
		OTel:        otel.DefaultConfig(),
	}
}

// Load reads path on top of Default. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Source {
	case "", akamai.SourceEndpoints, akamai.SourceExport:
	default:
		return fmt.Errorf("source must be %q or %q, got %q", akamai.SourceEndpoints, akamai.SourceExport, c.Source)
	}
	if c.Concurrency < 0 || c.Concurrency > collector.MaxConcurrency {
		return fmt.Errorf("concurrency must be between 0 and %d (0 or 1 = sequential), got %d", collector.MaxConcurrency, c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.OTel.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Checks))
	for i, check := range c.Checks {
		if check.Name == "" {
			return fmt.Errorf("checks[%d]: name is required", i)
		}
		if check.Expr == "" {
			return fmt.Errorf("check %q: expr is required", check.Name)
		}
		if seen[check.Name] {
			return fmt.Errorf("check %q is defined more than once", check.Name)
		}
		seen[check.Name] = true
	}

	if c.Archive.Bucket == "" && (c.Archive.Prefix != "" || c.Archive.RoleARN != "") {
		return errors.New("archive: bucket is required when prefix or role_arn is set")
	}
	if c.Archive.ExternalID != "" && c.Archive.RoleARN == "" {
		return errors.New("archive: external_id requires role_arn")
	}
	return nil
}

// EdgeRCPath returns the edgerc path with a leading ~ expanded.
func (c Config) EdgeRCPath() (string, error) {
	return ExpandHome(c.EdgeRC)
}

// ExpandHome expands a leading ~ in path to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
