// Package otel provides OpenTelemetry tracing for audit runs.
// Disabled by default; enabled via --otel or the otel.enabled config key.
package otel

import (
	"errors"
)

// Protocol constants for OTLP exporters.
const (
	ProtocolHTTP = "otlphttp"
	ProtocolGRPC = "otlpgrpc"
)

// ServiceName is reported on every span.
const ServiceName = "akamai-waf-audit"

// Config holds OTel initialization options.
type Config struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // e.g. "localhost:4318"
	Protocol    string  `yaml:"protocol"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultConfig returns a disabled Config.
func DefaultConfig() Config {
	return Config{
		Protocol:    ProtocolHTTP,
		SampleRatio: 1.0,
	}
}

// Validate checks the configuration when tracing is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return errors.New("otel: protocol must be 'otlphttp' or 'otlpgrpc'")
	}

	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("otel: sample_ratio must be between 0 and 1")
	}
	return nil
}
