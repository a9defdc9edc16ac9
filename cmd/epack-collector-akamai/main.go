// epack-collector-akamai collects Akamai WAF security posture.
//
// This binary is designed to be executed by the epack collector runner.
// It uses the epack Component SDK for protocol compliance.
package main

import (
	"time"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/edgegrid"
	"github.com/locktivity/epack/componentsdk"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
	"github.com/locktivity/epack-collector-akamai/internal/checks"
	"github.com/locktivity/epack-collector-akamai/internal/collector"
	"github.com/locktivity/epack-collector-akamai/internal/config"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	componentsdk.RunCollector(componentsdk.CollectorSpec{
		Name:        "akamai",
		Version:     Version,
		Description: "Collects Akamai WAF security policy posture",
	}, run)
}

func run(ctx componentsdk.CollectorContext) error {
	// Build config from SDK context
	cfg := ctx.Config()
	config := collector.Config{
		AccountSwitchKey: getString(cfg, "account_switch_key"),
		Source:           getString(cfg, "source"),
		Concurrency:      int(getInt64(cfg, "concurrency")),
		OnStatus:         ctx.Status,
		OnProgress:       ctx.Progress,
	}

	// Credentials come from runner secrets when present, otherwise from an
	// .edgerc file (edgerc / section config keys).
	edgeCfg, err := edgeGridConfig(ctx, cfg)
	if err != nil {
		return componentsdk.NewConfigError("loading credentials: %v", err)
	}

	timeout, err := getDuration(cfg, "timeout")
	if err != nil {
		return componentsdk.NewConfigError("invalid timeout: %v", err)
	}

	api := akamai.NewEdgeGridAPI(edgeCfg, akamai.APIOptions{
		AccountSwitchKey:  config.AccountSwitchKey,
		RequestsPerSecond: getFloat64(cfg, "requests_per_second"),
		Timeout:           timeout,
	})
	client, err := akamai.NewClient(api, config.Source)
	if err != nil {
		return componentsdk.NewConfigError("creating client: %v", err)
	}

	engine, err := checks.NewEngine(getChecks(cfg))
	if err != nil {
		return componentsdk.NewConfigError("compiling checks: %v", err)
	}

	// Create collector and collect posture
	c, err := collector.New(config, client)
	if err != nil {
		return componentsdk.NewConfigError("creating collector: %v", err)
	}

	output, err := c.Collect(ctx.Context())
	if err != nil {
		return componentsdk.NewNetworkError("collecting posture: %v", err)
	}

	if output.Findings, err = engine.Evaluate(output.Rows); err != nil {
		return componentsdk.NewConfigError("evaluating checks: %v", err)
	}

	// Emit the collected data (SDK handles protocol envelope)
	return ctx.Emit(output)
}

func edgeGridConfig(ctx componentsdk.CollectorContext, cfg map[string]any) (*edgegrid.Config, error) {
	if host := ctx.Secret("AKAMAI_HOST"); host != "" {
		return akamai.NewEdgeGridConfig(akamai.EdgeGridCredentials{
			Host:         host,
			ClientToken:  ctx.Secret("AKAMAI_CLIENT_TOKEN"),
			ClientSecret: ctx.Secret("AKAMAI_CLIENT_SECRET"),
			AccessToken:  ctx.Secret("AKAMAI_ACCESS_TOKEN"),
		})
	}

	defaults := config.Default()
	file := config.Config{EdgeRC: getString(cfg, "edgerc"), Section: getString(cfg, "section")}
	if file.EdgeRC == "" {
		file.EdgeRC = defaults.EdgeRC
	}
	if file.Section == "" {
		file.Section = defaults.Section
	}
	path, err := file.EdgeRCPath()
	if err != nil {
		return nil, err
	}
	return akamai.LoadEdgeRC(path, file.Section)
}

// getString safely extracts a string from config map
func getString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// getInt64 safely extracts an int64 from config map
func getInt64(cfg map[string]any, key string) int64 {
	if cfg == nil {
		return 0
	}
	switch v := cfg[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// getFloat64 safely extracts a float64 from config map
func getFloat64(cfg map[string]any, key string) float64 {
	if cfg == nil {
		return 0
	}
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// getDuration parses a duration string ("45s") or a number of seconds.
func getDuration(cfg map[string]any, key string) (time.Duration, error) {
	if s := getString(cfg, key); s != "" {
		return time.ParseDuration(s)
	}
	return time.Duration(getFloat64(cfg, key) * float64(time.Second)), nil
}

// getChecks extracts audit checks from a list of {name, expr, message} maps
func getChecks(cfg map[string]any) []checks.Check {
	items, ok := cfg["checks"].([]any)
	if !ok {
		return nil
	}
	result := make([]checks.Check, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			result = append(result, checks.Check{
				Name:    getString(m, "name"),
				Expr:    getString(m, "expr"),
				Message: getString(m, "message"),
			})
		}
	}
	return result
}
