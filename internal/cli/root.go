// Package cli implements the akamai-waf-audit command line.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/locktivity/epack-collector-akamai/internal/config"
	"github.com/locktivity/epack-collector-akamai/internal/otel"
	"github.com/locktivity/epack-collector-akamai/internal/report"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Exit codes.
const (
	exitError    = 1
	exitFindings = 2
)

type options struct {
	configPath       string
	accountSwitchKey string
	edgerc           string
	section          string
	source           string
	concurrency      int
	rateLimit        float64
	timeout          time.Duration
	format           string
	output           string
	baseline         string
	metricsFile      string
	failOnFindings   bool
	noInput          bool
	logLevel         string
	logFormat        string
	otelEnabled      bool
	otelEndpoint     string
	otelProtocol     string
	otelInsecure     bool
}

// NewRootCmd builds the akamai-waf-audit command.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "akamai-waf-audit",
		Short: "Audit the security posture of Akamai WAF configurations",
		Long: `Lists every Akamai Application Security configuration of an account, reads the
production version of each, and reports per security policy which protections
are enforced: ruleset mode, attack group deny ratio, rate control actions,
slow POST protection and client reputation.

Examples:
  # Audit the account selected by an account switch key
  akamai-waf-audit --account-switch-key 1-ABCDE:1-2RBL

  # Use a config file, write JSON and compare with the last run
  akamai-waf-audit --config audit.yaml --format json --output today.json --baseline yesterday.json`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file")
	f.StringVarP(&opts.accountSwitchKey, "account-switch-key", "a", "", "Account switch key of the account to audit")
	f.StringVar(&opts.edgerc, "edgerc", defaults.EdgeRC, "Path to the EdgeGrid credentials file")
	f.StringVar(&opts.section, "section", defaults.Section, "Section of the EdgeGrid credentials file")
	f.StringVar(&opts.source, "source", defaults.Source, "Policy source: endpoints or export")
	f.IntVar(&opts.concurrency, "concurrency", defaults.Concurrency, "Policies audited at once per configuration")
	f.Float64Var(&opts.rateLimit, "rate-limit", defaults.RequestsPerSecond, "Maximum API requests per second (0 = unlimited)")
	f.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Timeout for a single API request")
	f.StringVarP(&opts.format, "format", "f", report.FormatTable, "Output format: table or json")
	f.StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	f.StringVar(&opts.baseline, "baseline", "", "JSON report of an earlier run to compare against")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.BoolVar(&opts.failOnFindings, "fail-on-findings", false, "Exit with code 2 when a check fails")
	f.BoolVar(&opts.noInput, "no-input", false, "Never prompt for the account switch key")
	f.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "Log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", defaults.Log.Format, "Log format: console or json")
	f.BoolVar(&opts.otelEnabled, "otel", false, "Export traces over OTLP")
	f.StringVar(&opts.otelEndpoint, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	f.StringVar(&opts.otelProtocol, "otel-protocol", otel.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	f.BoolVar(&opts.otelInsecure, "otel-insecure", false, "Disable TLS for the OTLP exporter")

	return cmd, opts
}

// resolveConfig loads the config file, if any, and applies explicitly set flags on top.
func resolveConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("account-switch-key") {
		cfg.AccountSwitchKey = opts.accountSwitchKey
	}
	if changed("edgerc") {
		cfg.EdgeRC = opts.edgerc
	}
	if changed("section") {
		cfg.Section = opts.section
	}
	if changed("source") {
		cfg.Source = opts.source
	}
	if changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if changed("rate-limit") {
		cfg.RequestsPerSecond = opts.rateLimit
	}
	if changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if changed("otel") {
		cfg.OTel.Enabled = opts.otelEnabled
	}
	if changed("otel-endpoint") {
		cfg.OTel.Endpoint = opts.otelEndpoint
	}
	if changed("otel-protocol") {
		cfg.OTel.Protocol = opts.otelProtocol
	}
	if changed("otel-insecure") {
		cfg.OTel.Insecure = opts.otelInsecure
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	switch opts.format {
	case report.FormatTable, report.FormatJSON:
	default:
		return cfg, fmt.Errorf("invalid format: %s (use table or json)", opts.format)
	}
	return cfg, nil
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var findings *FindingsError
		if errors.As(err, &findings) {
			os.Exit(exitFindings)
		}
		os.Exit(exitError)
	}
}
