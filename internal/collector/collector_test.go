package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

func newTestCollector(t *testing.T, config Config, client akamai.Client) *Collector {
	t.Helper()
	c, err := New(config, client)
	if err != nil {
		t.Fatalf("failed to create collector: %v", err)
	}
	return c
}

func TestCollectEndToEndScenario(t *testing.T) {
	client := &fakeClient{
		configs: []akamai.Configuration{{ID: 123, Name: "main-security", ProductionVersion: 5}},
		policies: map[int64][]akamai.Policy{
			123: {{ID: "p1_1", Name: "P1"}, {ID: "p2_2", Name: "P2"}},
		},
		modes: map[string]string{"p1_1": "KRS", "p2_2": "ASE_AUTO"},
		attackGroups: map[string][]akamai.AttackGroupAction{
			"p1_1": {{Group: "CMD", Action: "alert"}, {Group: "SQL", Action: "deny"}, {Group: "XSS", Action: "deny"}},
		},
		slowPosts: map[string]string{"p1_1": "abort", "p2_2": "alert"},
	}

	output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(output.Rows))
	}

	want := []string{"1", "main-security", "P1", "KRS", "67%", "off", "off", "abort", "off"}
	if got := output.Rows[0].Cells(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected row 1 = %v, got %v", want, got)
	}

	want = []string{"2", "main-security", "P2", "ASE_AUTO", "off", "off", "off", "alert", "off"}
	if got := output.Rows[1].Cells(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected row 2 = %v, got %v", want, got)
	}

	if output.SchemaVersion != SchemaVersion {
		t.Fatalf("expected schema version %s, got %s", SchemaVersion, output.SchemaVersion)
	}
	if output.RunID == "" {
		t.Fatalf("expected a run ID")
	}
	if output.Source != akamai.SourceEndpoints {
		t.Fatalf("expected default source %q, got %q", akamai.SourceEndpoints, output.Source)
	}
}

func TestCollectOrderingAndNumbering(t *testing.T) {
	client := &fakeClient{
		configs: []akamai.Configuration{
			{ID: 1, Name: "alpha", ProductionVersion: 3},
			{ID: 2, Name: "not-in-prod"},
			{ID: 3, Name: "beta", ProductionVersion: 7},
		},
		policies: map[int64][]akamai.Policy{
			1: {{ID: "a1", Name: "A1"}, {ID: "a2", Name: "A2"}},
			2: {{ID: "x1", Name: "X1"}},
			3: {{ID: "b1", Name: "B1"}, {ID: "b2", Name: "B2"}, {ID: "b3", Name: "B3"}},
		},
	}

	output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPolicies := []string{"A1", "A2", "B1", "B2", "B3"}
	if len(output.Rows) != len(wantPolicies) {
		t.Fatalf("expected %d rows, got %d", len(wantPolicies), len(output.Rows))
	}
	for i, row := range output.Rows {
		if row.Number != i+1 {
			t.Fatalf("rows[%d]: expected number %d, got %d", i, i+1, row.Number)
		}
		if row.PolicyName != wantPolicies[i] {
			t.Fatalf("rows[%d]: expected policy %s, got %s", i, wantPolicies[i], row.PolicyName)
		}
		if row.ConfigName == "not-in-prod" {
			t.Fatalf("rows[%d]: skipped configuration produced a row", i)
		}
	}

	if len(output.Skipped) != 1 {
		t.Fatalf("expected 1 skipped configuration, got %d", len(output.Skipped))
	}
	if output.Skipped[0].ConfigID != 2 || output.Skipped[0].Reason != "missing productionVersion" {
		t.Fatalf("unexpected skipped entry %+v", output.Skipped[0])
	}

	for _, call := range client.calls {
		if call == "policies:2" {
			t.Fatalf("policies of a configuration without production version should not be listed")
		}
	}
}

func TestCollectSkipsAbsentPolicyListing(t *testing.T) {
	client := &fakeClient{
		configs: []akamai.Configuration{
			{ID: 1, Name: "gone", ProductionVersion: 1},
			{ID: 2, Name: "ok", ProductionVersion: 1},
		},
		policies: map[int64][]akamai.Policy{
			2: {{ID: "p", Name: "P"}},
		},
	}

	output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Rows) != 1 || output.Rows[0].Number != 1 || output.Rows[0].ConfigName != "ok" {
		t.Fatalf("expected one row numbered 1 from config ok, got %+v", output.Rows)
	}
	if len(output.Skipped) != 1 || output.Skipped[0].Name != "gone" {
		t.Fatalf("expected config gone to be skipped, got %+v", output.Skipped)
	}
}

func TestCollectSkipsConfigurationsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		config akamai.Configuration
		reason string
	}{
		{"missing id", akamai.Configuration{Name: "no-id", ProductionVersion: 4}, "missing id"},
		{"missing name", akamai.Configuration{ID: 7, ProductionVersion: 4}, "missing name"},
		{"missing everything", akamai.Configuration{}, "missing id, name, productionVersion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				configs: []akamai.Configuration{
					tt.config,
					{ID: 9, Name: "ok", ProductionVersion: 1},
				},
				policies: map[int64][]akamai.Policy{
					0: {{ID: "z", Name: "Z"}},
					7: {{ID: "s", Name: "S"}},
					9: {{ID: "p", Name: "P"}},
				},
			}

			output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(output.Rows) != 1 {
				t.Fatalf("expected 1 row, got %+v", output.Rows)
			}
			if output.Rows[0].Number != 1 || output.Rows[0].ConfigName != "ok" {
				t.Fatalf("expected row 1 from config ok, got %+v", output.Rows[0])
			}
			if len(output.Skipped) != 1 {
				t.Fatalf("expected 1 skipped configuration, got %+v", output.Skipped)
			}
			if output.Skipped[0].Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, output.Skipped[0].Reason)
			}
			for _, call := range client.calls {
				if call != "configs" && call != "policies:9" && !strings.HasSuffix(call, ":p") {
					t.Fatalf("unexpected call %q for a skipped configuration", call)
				}
			}
		})
	}
}

func TestCollectSkipsPolicyListingWithoutIdentity(t *testing.T) {
	bodies := map[string]string{
		"/appsec/v1/configs": `{"configurations":[
			{"id":1,"name":"broken","productionVersion":2},
			{"id":3,"name":"ok","productionVersion":1}
		]}`,
		"/appsec/v1/configs/1/versions/2/security-policies":         `{"policies":[{"policyName":"NoID"},{"policyId":"x"}]}`,
		"/appsec/v1/configs/3/versions/1/security-policies":         `{"policies":[{"policyId":"p3","policyName":"P3"}]}`,
		"/appsec/v1/configs/3/versions/1/security-policies/p3/mode": `{"mode":"KRS"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	client := akamai.NewAppSecClient(akamai.NewAPI(srv.URL, nil, akamai.APIOptions{}))

	output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Rows) != 1 {
		t.Fatalf("expected 1 row, got %+v", output.Rows)
	}
	want := []string{"1", "ok", "P3", "KRS", "off", "off", "off", "off", "off"}
	if got := output.Rows[0].Cells(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected row %v, got %v", want, got)
	}
	if len(output.Skipped) != 1 || output.Skipped[0].ConfigID != 1 {
		t.Fatalf("expected config 1 to be skipped, got %+v", output.Skipped)
	}
	if !strings.Contains(output.Skipped[0].Reason, "policy 1 missing id") {
		t.Fatalf("expected reason to name the missing id, got %q", output.Skipped[0].Reason)
	}
}

func TestCollectFatalErrors(t *testing.T) {
	authErr := &akamai.APIError{StatusCode: 401, Path: "/appsec/v1/configs", Title: "Unauthorized"}

	t.Run("configuration listing", func(t *testing.T) {
		client := &fakeClient{configsErr: authErr}
		_, err := newTestCollector(t, Config{}, client).Collect(context.Background())
		if !errors.Is(err, authErr) {
			t.Fatalf("expected auth error, got %v", err)
		}
	})

	t.Run("policy listing", func(t *testing.T) {
		client := &fakeClient{
			configs:     []akamai.Configuration{{ID: 1, Name: "c", ProductionVersion: 1}},
			policiesErr: map[int64]error{1: authErr},
		}
		_, err := newTestCollector(t, Config{}, client).Collect(context.Background())
		if !akamai.IsAuthError(err) {
			t.Fatalf("expected auth error, got %v", err)
		}
	})

	t.Run("control query", func(t *testing.T) {
		client := &fakeClient{
			configs:    []akamai.Configuration{{ID: 1, Name: "c", ProductionVersion: 1}},
			policies:   map[int64][]akamai.Policy{1: {{ID: "p", Name: "P"}}},
			controlErr: map[string]error{"p": errors.New("connection reset")},
		}
		output, err := newTestCollector(t, Config{}, client).Collect(context.Background())
		if err == nil {
			t.Fatalf("expected transport error to abort the run")
		}
		if output != nil {
			t.Fatalf("expected no partial output")
		}
	})
}

func TestCollectConcurrentPreservesOrder(t *testing.T) {
	policies := make([]akamai.Policy, 0, 8)
	delay := make(map[string]time.Duration)
	modes := make(map[string]string)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("p%d", i)
		policies = append(policies, akamai.Policy{ID: id, Name: fmt.Sprintf("Policy %d", i)})
		// earlier policies finish last
		delay[id] = time.Duration(8-i) * time.Millisecond
		modes[id] = fmt.Sprintf("mode-%d", i)
	}

	client := &fakeClient{
		configs:  []akamai.Configuration{{ID: 9, Name: "parallel", ProductionVersion: 2}},
		policies: map[int64][]akamai.Policy{9: policies},
		modes:    modes,
		delay:    delay,
	}

	output, err := newTestCollector(t, Config{Concurrency: 4}, client).Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range output.Rows {
		if row.PolicyName != policies[i].Name {
			t.Fatalf("rows[%d]: expected %s, got %s", i, policies[i].Name, row.PolicyName)
		}
		if row.Mode != fmt.Sprintf("mode-%d", i) {
			t.Fatalf("rows[%d]: mode %s belongs to another policy", i, row.Mode)
		}
		if row.Number != i+1 {
			t.Fatalf("rows[%d]: expected number %d, got %d", i, i+1, row.Number)
		}
	}
}

func TestCollectReportsProgress(t *testing.T) {
	client := &fakeClient{
		configs: []akamai.Configuration{
			{ID: 1, Name: "a", ProductionVersion: 1},
			{ID: 2, Name: "b", ProductionVersion: 1},
		},
		policies: map[int64][]akamai.Policy{1: {}, 2: {}},
	}

	var progress []int64
	var statuses int
	config := Config{
		OnStatus:   func(string) { statuses++ },
		OnProgress: func(current, total int64, _ string) { progress = append(progress, current, total) },
	}

	if _, err := newTestCollector(t, config, client).Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(progress, []int64{1, 2, 2, 2}) {
		t.Fatalf("unexpected progress %v", progress)
	}
	if statuses == 0 {
		t.Fatalf("expected status updates")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := New(Config{Concurrency: MaxConcurrency + 1}, &fakeClient{}); err == nil {
		t.Fatalf("expected error for excessive concurrency")
	}

	c, err := New(Config{Concurrency: -3}, &fakeClient{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.config.Concurrency != DefaultConcurrency {
		t.Fatalf("expected concurrency %d, got %d", DefaultConcurrency, c.config.Concurrency)
	}
}
