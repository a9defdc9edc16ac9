// Package collector provides Akamai WAF posture collection functionality.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

var tracer = otel.Tracer("github.com/locktivity/epack-collector-akamai/internal/collector")

// Collector collects the WAF posture of every security policy in an account.
type Collector struct {
	config Config
	client akamai.Client
	log    zerolog.Logger
	now    func() time.Time
}

// status reports an indeterminate status update.
func (c *Collector) status(message string) {
	if c.config.OnStatus != nil {
		c.config.OnStatus(message)
	}
}

// progress reports a determinate progress update.
func (c *Collector) progress(current, total int64, message string) {
	if c.config.OnProgress != nil {
		c.config.OnProgress(current, total, message)
	}
}

// New creates a new Collector reading through the given client.
func New(config Config, client akamai.Client) (*Collector, error) {
	if client == nil {
		return nil, errors.New("akamai client is required")
	}
	if config.Concurrency > MaxConcurrency {
		return nil, fmt.Errorf("concurrency %d exceeds maximum %d", config.Concurrency, MaxConcurrency)
	}
	if config.Concurrency < DefaultConcurrency {
		config.Concurrency = DefaultConcurrency
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = config.Logger.With().Str("component", "collector").Logger()
	}

	return &Collector{config: config, client: client, log: log, now: time.Now}, nil
}

// Collect lists every configuration and audits each policy of its production version.
//
// Configurations without an id, name or production version, or whose policy
// listing is absent, are skipped and recorded in Output.Skipped. Any other
// error aborts the run.
func (c *Collector) Collect(ctx context.Context) (*Output, error) {
	start := c.now()
	output := NewOutput(start)
	output.AccountSwitchKey = c.config.AccountSwitchKey
	output.Source = c.config.Source
	if output.Source == "" {
		output.Source = akamai.SourceEndpoints
	}

	ctx, span := tracer.Start(ctx, "collector.Collect", trace.WithAttributes(
		attribute.String("run.id", output.RunID),
	))
	defer span.End()

	c.status("Listing security configurations")
	configs, err := c.client.ListConfigurations(ctx)
	if err != nil {
		return nil, err
	}

	total := int64(len(configs))
	for i, cfg := range configs {
		c.progress(int64(i+1), total, fmt.Sprintf("Collecting configuration %d of %d", i+1, len(configs)))

		if missing := cfg.MissingFields(); len(missing) > 0 {
			c.skip(output, cfg, "missing "+strings.Join(missing, ", "))
			continue
		}

		rows, err := c.collectConfiguration(ctx, cfg)
		if err != nil {
			if absent(err) {
				c.skip(output, cfg, err.Error())
				continue
			}
			return nil, fmt.Errorf("collecting configuration %d (%s): %w", cfg.ID, cfg.Name, err)
		}

		for _, row := range rows {
			row.Number = len(output.Rows) + 1
			output.Rows = append(output.Rows, row)
		}
	}

	output.ElapsedSeconds = c.now().Sub(start).Seconds()
	span.SetAttributes(
		attribute.Int("rows", len(output.Rows)),
		attribute.Int("skipped", len(output.Skipped)),
	)
	c.status("Collection complete")
	return output, nil
}

func (c *Collector) skip(output *Output, cfg akamai.Configuration, reason string) {
	c.log.Warn().
		Int64("config_id", cfg.ID).
		Str("config", cfg.Name).
		Str("reason", reason).
		Msg("skipping configuration")
	output.Skipped = append(output.Skipped, SkippedConfiguration{
		ConfigID: cfg.ID,
		Name:     cfg.Name,
		Reason:   reason,
	})
}

// policyControls holds the five control results of one policy.
type policyControls struct {
	mode             string
	attackGroups     AttackGroupResult
	rateControls     RateControlResult
	slowPost         string
	clientReputation ReputationResult
}

// collectConfiguration audits every policy of a configuration's production
// version. Rows are returned in policy listing order, unnumbered.
func (c *Collector) collectConfiguration(ctx context.Context, cfg akamai.Configuration) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "collector.collectConfiguration", trace.WithAttributes(
		attribute.Int64("config.id", cfg.ID),
		attribute.String("config.name", cfg.Name),
		attribute.Int("config.version", cfg.ProductionVersion),
	))
	defer span.End()

	c.status(fmt.Sprintf("Collecting %s v%d", cfg.Name, cfg.ProductionVersion))
	policies, err := c.client.ListPolicies(ctx, cfg.ID, cfg.ProductionVersion)
	if err != nil {
		return nil, err
	}

	controls, err := c.collectPolicies(ctx, cfg, policies)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(policies))
	for i, p := range policies {
		pc := controls[i]
		rows = append(rows, Row{
			ConfigID:          cfg.ID,
			ConfigName:        cfg.Name,
			ProductionVersion: cfg.ProductionVersion,
			PolicyID:          p.ID,
			PolicyName:        p.Name,
			Mode:              pc.mode,
			AttackGroups:      pc.attackGroups,
			RateControls:      pc.rateControls,
			SlowPost:          pc.slowPost,
			ClientReputation:  pc.clientReputation,
		})
	}
	return rows, nil
}

// collectPolicies runs the control extractors for every policy, at most
// Concurrency policies at a time. Results are stored at the policy's index.
func (c *Collector) collectPolicies(ctx context.Context, cfg akamai.Configuration, policies []akamai.Policy) ([]policyControls, error) {
	results := make([]policyControls, len(policies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, p := range policies {
		ref := akamai.PolicyRef{ConfigID: cfg.ID, Version: cfg.ProductionVersion, PolicyID: p.ID}
		g.Go(func() error {
			pc, err := c.collectPolicy(gctx, ref)
			if err != nil {
				return fmt.Errorf("policy %s (%s): %w", p.ID, p.Name, err)
			}
			results[i] = pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// collectPolicy queries the five controls of one policy in order.
func (c *Collector) collectPolicy(ctx context.Context, ref akamai.PolicyRef) (policyControls, error) {
	ctx, span := tracer.Start(ctx, "collector.collectPolicy", trace.WithAttributes(
		attribute.String("policy.id", ref.PolicyID),
	))
	defer span.End()

	var pc policyControls
	var err error

	if pc.mode, err = c.collectMode(ctx, ref); err != nil {
		return pc, err
	}
	if pc.attackGroups, err = c.collectAttackGroups(ctx, ref); err != nil {
		return pc, err
	}
	if pc.rateControls, err = c.collectRateControls(ctx, ref); err != nil {
		return pc, err
	}
	if pc.slowPost, err = c.collectSlowPost(ctx, ref); err != nil {
		return pc, err
	}
	if pc.clientReputation, err = c.collectClientReputation(ctx, ref); err != nil {
		return pc, err
	}

	c.log.Debug().
		Str("policy", ref.String()).
		Str("mode", pc.mode).
		Str("attack_groups", pc.attackGroups.String()).
		Msg("collected policy")
	return pc, nil
}
