package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
	"github.com/locktivity/epack-collector-akamai/internal/archive"
	"github.com/locktivity/epack-collector-akamai/internal/checks"
	"github.com/locktivity/epack-collector-akamai/internal/collector"
	"github.com/locktivity/epack-collector-akamai/internal/config"
	"github.com/locktivity/epack-collector-akamai/internal/logging"
	"github.com/locktivity/epack-collector-akamai/internal/metrics"
	"github.com/locktivity/epack-collector-akamai/internal/otel"
	"github.com/locktivity/epack-collector-akamai/internal/report"
)

const shutdownTimeout = 5 * time.Second

// FindingsError is returned when --fail-on-findings is set and a check failed.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d audit check(s) failed", e.Count)
}

// uploader stores a finished JSON report.
type uploader interface {
	Upload(ctx context.Context, collectedAt time.Time, runID string, report []byte) (string, error)
}

// auditRun holds everything one audit needs after the client is built.
type auditRun struct {
	cfg     config.Config
	opts    *options
	log     zerolog.Logger
	metrics *metrics.Metrics
	archive uploader
	stdout  io.Writer
	now     func() time.Time
}

func run(ctx context.Context, cfg config.Config, opts *options, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}

	h, err := otel.Init(ctx, cfg.OTel, Version)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := h.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("flushing traces")
		}
	}()

	ctx, span := h.Tracer.Start(ctx, "akamai-waf-audit", trace.WithAttributes(
		attribute.String("audit.source", cfg.Source),
		attribute.Int("audit.concurrency", cfg.Concurrency),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed")
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}()

	if cfg.AccountSwitchKey == "" && !opts.noInput && isTerminal(stdin) {
		if cfg.AccountSwitchKey, err = promptAccount(stdin, stderr); err != nil {
			return err
		}
	}

	edgercPath, err := cfg.EdgeRCPath()
	if err != nil {
		return err
	}
	edgeCfg, err := akamai.LoadEdgeRC(edgercPath, cfg.Section)
	if err != nil {
		return err
	}

	m := metrics.New()
	api := akamai.NewEdgeGridAPI(edgeCfg, akamai.APIOptions{
		AccountSwitchKey:  cfg.AccountSwitchKey,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
		Logger:            &log,
		Observer:          m,
	})
	client, err := akamai.NewClient(api, cfg.Source)
	if err != nil {
		return err
	}

	r := &auditRun{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		metrics: m,
		stdout:  stdout,
		now:     time.Now,
	}
	if cfg.Archive.Enabled() {
		a, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		r.archive = a
	}

	return r.audit(ctx, client)
}

// audit collects, evaluates and reports one run.
func (r *auditRun) audit(ctx context.Context, client akamai.Client) error {
	engine, err := checks.NewEngine(r.cfg.Checks)
	if err != nil {
		return err
	}

	c, err := collector.New(collector.Config{
		AccountSwitchKey: r.cfg.AccountSwitchKey,
		Source:           r.cfg.Source,
		Concurrency:      r.cfg.Concurrency,
		Logger:           &r.log,
		OnStatus: func(message string) {
			r.log.Info().Msg(message)
		},
		OnProgress: func(current, total int64, message string) {
			r.log.Debug().Int64("current", current).Int64("total", total).Msg(message)
		},
	}, client)
	if err != nil {
		return err
	}

	output, err := c.Collect(ctx)
	if err != nil {
		return err
	}

	if output.Findings, err = engine.Evaluate(output.Rows); err != nil {
		return err
	}

	if r.opts.baseline != "" {
		baseline, err := report.ReadJSONFile(r.opts.baseline)
		if err != nil {
			return err
		}
		if output.Drift, err = report.Diff(baseline, output); err != nil {
			return err
		}
	}

	if err := r.writeReport(output); err != nil {
		return err
	}

	if r.archive != nil {
		if err := r.upload(ctx, output); err != nil {
			return err
		}
	}

	if r.cfg.MetricsFile != "" {
		r.metrics.ObserveOutput(output, r.now())
		if err := r.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			return err
		}
	}

	if r.opts.failOnFindings && len(output.Findings) > 0 {
		return &FindingsError{Count: len(output.Findings)}
	}
	return nil
}

func (r *auditRun) writeReport(output *collector.Output) error {
	if r.opts.output == "" {
		return report.Write(r.stdout, r.opts.format, output)
	}

	f, err := os.Create(r.opts.output)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := report.Write(f, r.opts.format, output); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	r.log.Info().Str("path", r.opts.output).Msg("report written")
	return nil
}

func (r *auditRun) upload(ctx context.Context, output *collector.Output) error {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, output); err != nil {
		return err
	}

	collectedAt, err := time.Parse(time.RFC3339, output.CollectedAt)
	if err != nil {
		collectedAt = r.now()
	}

	key, err := r.archive.Upload(ctx, collectedAt, output.RunID, buf.Bytes())
	if err != nil {
		return err
	}
	r.log.Info().Str("bucket", r.cfg.Archive.Bucket).Str("key", key).Msg("report archived")
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// promptAccount asks for the account switch key. An empty answer selects the
// account the credentials belong to.
func promptAccount(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter account ID... ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading account ID: %w", err)
	}
	return strings.TrimSpace(line), nil
}
