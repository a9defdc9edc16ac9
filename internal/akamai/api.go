package akamai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/edgegrid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 32 << 20

	accountSwitchKeyParam = "accountSwitchKey"
)

var tracer = otel.Tracer("github.com/locktivity/epack-collector-akamai/internal/akamai")

// Getter fetches a relative API path and decodes the JSON response into v.
type Getter interface {
	Get(ctx context.Context, path string, v any) error
}

// Signer authenticates an outgoing request.
type Signer interface {
	SignRequest(r *http.Request)
}

// RequestObserver records the outcome of API requests.
type RequestObserver interface {
	ObserveRequest(resource, outcome string, elapsed time.Duration)
}

// APIOptions configures an API.
type APIOptions struct {
	AccountSwitchKey  string
	RequestsPerSecond float64 // 0 = unlimited
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zerolog.Logger
	Observer          RequestObserver
}

// API performs authenticated GET requests against the Akamai API.
type API struct {
	baseURL          string
	signer           Signer
	accountSwitchKey string
	http             *http.Client
	limiter          *rate.Limiter
	log              zerolog.Logger
	observer         RequestObserver
}

// NewAPI creates an API for the given base URL. A nil signer sends unsigned requests.
func NewAPI(baseURL string, signer Signer, opts APIOptions) *API {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "akamai").Logger()
	}

	a := &API{
		baseURL:          strings.TrimRight(baseURL, "/"),
		signer:           signer,
		accountSwitchKey: opts.AccountSwitchKey,
		http:             httpClient,
		log:              log,
		observer:         opts.Observer,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return a
}

// EdgeGridCredentials holds the EdgeGrid client credentials when they are not read from an .edgerc file.
type EdgeGridCredentials struct {
	Host         string
	ClientToken  string
	ClientSecret string
	AccessToken  string
}

// LoadEdgeRC reads EdgeGrid credentials from an .edgerc file section.
func LoadEdgeRC(path, section string) (*edgegrid.Config, error) {
	cfg, err := edgegrid.New(edgegrid.WithFile(path), edgegrid.WithSection(section))
	if err != nil {
		return nil, fmt.Errorf("loading edgerc %s [%s]: %w", path, section, err)
	}
	return cfg, nil
}

// NewEdgeGridConfig builds an EdgeGrid config from explicit credentials.
func NewEdgeGridConfig(creds EdgeGridCredentials) (*edgegrid.Config, error) {
	if creds.Host == "" || creds.ClientToken == "" || creds.ClientSecret == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("edgegrid credentials require host, client token, client secret and access token")
	}
	return &edgegrid.Config{
		Host:         creds.Host,
		ClientToken:  creds.ClientToken,
		ClientSecret: creds.ClientSecret,
		AccessToken:  creds.AccessToken,
		MaxBody:      edgegrid.MaxBodySize,
	}, nil
}

// NewEdgeGridAPI creates an API that signs requests with the given EdgeGrid config.
// The config's account_key is used when no account switch key is given.
func NewEdgeGridAPI(cfg *edgegrid.Config, opts APIOptions) *API {
	if opts.AccountSwitchKey == "" {
		opts.AccountSwitchKey = cfg.AccountKey
	}
	host := cfg.Host
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}
	return NewAPI(host, cfg, opts)
}

// Get fetches path and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, v any) error {
	resource := resourceLabel(path)
	ctx, span := tracer.Start(ctx, "akamai.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("akamai.path", path),
			attribute.String("akamai.resource", resource),
		))
	defer span.End()

	err := a.get(ctx, path, resource, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (a *API) get(ctx context.Context, path, resource string, v any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	target, err := a.url(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if a.signer != nil {
		a.signer.SignRequest(req)
	}

	start := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		a.observe(resource, "error", start)
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		a.observe(resource, "error", start)
		return fmt.Errorf("reading %s: %w", path, err)
	}

	a.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.observe(resource, statusOutcome(resp.StatusCode), start)
		apiErr := &APIError{}
		_ = json.Unmarshal(body, apiErr) // best effort, body may not be problem+json
		apiErr.StatusCode = resp.StatusCode
		apiErr.Path = path
		return apiErr
	}

	if err := json.Unmarshal(body, v); err != nil {
		a.observe(resource, "decode_error", start)
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	a.observe(resource, "ok", start)
	return nil
}

// url joins path onto the base URL and appends the account switch key.
func (a *API) url(path string) (string, error) {
	u, err := url.Parse(a.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parsing URL for %s: %w", path, err)
	}
	if a.accountSwitchKey != "" {
		q := u.Query()
		q.Set(accountSwitchKeyParam, a.accountSwitchKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (a *API) observe(resource, outcome string, start time.Time) {
	if a.observer != nil {
		a.observer.ObserveRequest(resource, outcome, time.Since(start))
	}
}

func statusOutcome(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth_error"
	default:
		return "http_error"
	}
}

// resourceLabel reduces a request path to a low-cardinality resource name.
func resourceLabel(path string) string {
	path = strings.Trim(path, "/")
	if strings.HasPrefix(path, "appsec/v1/export/") {
		return "export"
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}
