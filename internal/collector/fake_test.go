package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

// fakeClient is an in-memory akamai.Client. Controls missing from its maps
// are reported as not configured.
type fakeClient struct {
	configs    []akamai.Configuration
	configsErr error

	policies    map[int64][]akamai.Policy
	policiesErr map[int64]error

	modes        map[string]string
	attackGroups map[string][]akamai.AttackGroupAction
	ratePolicies map[string][]akamai.RatePolicyAction
	slowPosts    map[string]string
	reputations  map[string][]akamai.ReputationProfileAction

	// controlErr fails every control query of the keyed policy.
	controlErr map[string]error
	// delay slows down every control query of the keyed policy.
	delay map[string]time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) control(ctx context.Context, ref akamai.PolicyRef, name string) error {
	f.record(name + ":" + ref.PolicyID)
	if d := f.delay[ref.PolicyID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.controlErr[ref.PolicyID]
}

func notConfigured(name string, ref akamai.PolicyRef) error {
	return fmt.Errorf("%s for %s: %w", name, ref, akamai.ErrNotFound)
}

func (f *fakeClient) ListConfigurations(_ context.Context) ([]akamai.Configuration, error) {
	f.record("configs")
	return f.configs, f.configsErr
}

func (f *fakeClient) ListPolicies(_ context.Context, configID int64, _ int) ([]akamai.Policy, error) {
	f.record(fmt.Sprintf("policies:%d", configID))
	if err := f.policiesErr[configID]; err != nil {
		return nil, err
	}
	policies, ok := f.policies[configID]
	if !ok {
		return nil, fmt.Errorf("policies for %d: %w", configID, akamai.ErrNotFound)
	}
	return policies, nil
}

func (f *fakeClient) GetMode(ctx context.Context, ref akamai.PolicyRef) (string, error) {
	if err := f.control(ctx, ref, "mode"); err != nil {
		return "", err
	}
	mode, ok := f.modes[ref.PolicyID]
	if !ok {
		return "", notConfigured("mode", ref)
	}
	return mode, nil
}

func (f *fakeClient) GetAttackGroupActions(ctx context.Context, ref akamai.PolicyRef) ([]akamai.AttackGroupAction, error) {
	if err := f.control(ctx, ref, "attack-groups"); err != nil {
		return nil, err
	}
	actions, ok := f.attackGroups[ref.PolicyID]
	if !ok {
		return nil, notConfigured("attack groups", ref)
	}
	return actions, nil
}

func (f *fakeClient) GetRatePolicyActions(ctx context.Context, ref akamai.PolicyRef) ([]akamai.RatePolicyAction, error) {
	if err := f.control(ctx, ref, "rate-policies"); err != nil {
		return nil, err
	}
	actions, ok := f.ratePolicies[ref.PolicyID]
	if !ok {
		return nil, notConfigured("rate policies", ref)
	}
	return actions, nil
}

func (f *fakeClient) GetSlowPost(ctx context.Context, ref akamai.PolicyRef) (*akamai.SlowPost, error) {
	if err := f.control(ctx, ref, "slow-post"); err != nil {
		return nil, err
	}
	action, ok := f.slowPosts[ref.PolicyID]
	if !ok {
		return nil, notConfigured("slow post", ref)
	}
	return &akamai.SlowPost{Action: action}, nil
}

func (f *fakeClient) GetReputationProfileActions(ctx context.Context, ref akamai.PolicyRef) ([]akamai.ReputationProfileAction, error) {
	if err := f.control(ctx, ref, "reputation-profiles"); err != nil {
		return nil, err
	}
	actions, ok := f.reputations[ref.PolicyID]
	if !ok {
		return nil, notConfigured("reputation profiles", ref)
	}
	return actions, nil
}

var _ akamai.Client = (*fakeClient)(nil)
