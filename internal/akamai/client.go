package akamai

import (
	"context"
	"fmt"
	"strings"
)

// Client provides access to the Application Security resources the audit reads.
//
// Every per-policy method returns an error matching ErrNotFound when the
// control is not configured for the policy.
type Client interface {
	// ListConfigurations returns the security configurations of the account.
	ListConfigurations(ctx context.Context) ([]Configuration, error)

	// ListPolicies returns the security policies of a configuration version.
	ListPolicies(ctx context.Context, configID int64, version int) ([]Policy, error)

	// Per-policy controls
	GetMode(ctx context.Context, ref PolicyRef) (string, error)
	GetAttackGroupActions(ctx context.Context, ref PolicyRef) ([]AttackGroupAction, error)
	GetRatePolicyActions(ctx context.Context, ref PolicyRef) ([]RatePolicyAction, error)
	GetSlowPost(ctx context.Context, ref PolicyRef) (*SlowPost, error)
	GetReputationProfileActions(ctx context.Context, ref PolicyRef) ([]ReputationProfileAction, error)
}

const appSecBase = "/appsec/v1"

// AppSecClient implements Client using the dedicated per-policy endpoints.
type AppSecClient struct {
	api Getter
}

// NewAppSecClient creates a client that reads each control from its own endpoint.
func NewAppSecClient(api Getter) *AppSecClient {
	return &AppSecClient{api: api}
}

// configurationsResponse mirrors GET /configs. Pointer fields detect absent keys.
type configurationsResponse struct {
	Configurations *[]struct {
		ID                *int64  `json:"id"`
		Name              *string `json:"name"`
		ProductionVersion *int    `json:"productionVersion"`
	} `json:"configurations"`
}

// ListConfigurations returns the security configurations of the account.
func (c *AppSecClient) ListConfigurations(ctx context.Context) ([]Configuration, error) {
	var resp configurationsResponse
	if err := c.api.Get(ctx, appSecBase+"/configs", &resp); err != nil {
		return nil, fmt.Errorf("listing configurations: %w", err)
	}
	if resp.Configurations == nil {
		return nil, fmt.Errorf("listing configurations: missing configurations field: %w", ErrMalformed)
	}

	configs := make([]Configuration, 0, len(*resp.Configurations))
	for _, raw := range *resp.Configurations {
		var cfg Configuration
		if raw.ID != nil {
			cfg.ID = *raw.ID
		}
		if raw.Name != nil {
			cfg.Name = *raw.Name
		}
		if raw.ProductionVersion != nil {
			cfg.ProductionVersion = *raw.ProductionVersion
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

type policiesResponse struct {
	Policies *[]struct {
		PolicyID   *string `json:"policyId"`
		PolicyName *string `json:"policyName"`
	} `json:"policies"`
}

// ListPolicies returns the security policies of a configuration version.
func (c *AppSecClient) ListPolicies(ctx context.Context, configID int64, version int) ([]Policy, error) {
	path := fmt.Sprintf("%s/configs/%d/versions/%d/security-policies", appSecBase, configID, version)

	var resp policiesResponse
	if err := c.api.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	if resp.Policies == nil {
		return nil, notFound("listing policies for %d/v%d: missing policies field", configID, version)
	}

	policies := make([]Policy, 0, len(*resp.Policies))
	for i, p := range *resp.Policies {
		policy, err := listedPolicy(i, p.PolicyID, p.PolicyName)
		if err != nil {
			return nil, fmt.Errorf("listing policies for %d/v%d: %w", configID, version, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// listedPolicy builds the i-th policy of a listing. A policy without an id or
// name cannot be audited, so the whole listing is treated as absent.
func listedPolicy(i int, id, name *string) (Policy, error) {
	var missing []string
	if id == nil {
		missing = append(missing, "id")
	}
	if name == nil {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return Policy{}, notFound("policy %d missing %s", i+1, strings.Join(missing, ", "))
	}
	return Policy{ID: *id, Name: *name}, nil
}

func policyPath(ref PolicyRef, resource string) string {
	return fmt.Sprintf("%s/configs/%d/versions/%d/security-policies/%s/%s",
		appSecBase, ref.ConfigID, ref.Version, ref.PolicyID, resource)
}

// GetMode returns the ruleset mode of a policy.
func (c *AppSecClient) GetMode(ctx context.Context, ref PolicyRef) (string, error) {
	var resp struct {
		Mode *string `json:"mode"`
	}
	if err := c.api.Get(ctx, policyPath(ref, "mode"), &resp); err != nil {
		return "", fmt.Errorf("getting mode for %s: %w", ref, err)
	}
	if resp.Mode == nil {
		return "", notFound("mode for %s", ref)
	}
	return *resp.Mode, nil
}

// GetAttackGroupActions returns the attack group actions of a policy.
func (c *AppSecClient) GetAttackGroupActions(ctx context.Context, ref PolicyRef) ([]AttackGroupAction, error) {
	var resp struct {
		AttackGroupActions *[]AttackGroupAction `json:"attackGroupActions"`
	}
	if err := c.api.Get(ctx, policyPath(ref, "attack-groups"), &resp); err != nil {
		return nil, fmt.Errorf("getting attack groups for %s: %w", ref, err)
	}
	if resp.AttackGroupActions == nil {
		return nil, notFound("attack group actions for %s", ref)
	}
	return *resp.AttackGroupActions, nil
}

// GetRatePolicyActions returns the rate policy actions of a policy.
func (c *AppSecClient) GetRatePolicyActions(ctx context.Context, ref PolicyRef) ([]RatePolicyAction, error) {
	var resp struct {
		RatePolicyActions *[]RatePolicyAction `json:"ratePolicyActions"`
	}
	if err := c.api.Get(ctx, policyPath(ref, "rate-policies"), &resp); err != nil {
		return nil, fmt.Errorf("getting rate policies for %s: %w", ref, err)
	}
	if resp.RatePolicyActions == nil {
		return nil, notFound("rate policy actions for %s", ref)
	}
	return *resp.RatePolicyActions, nil
}

// GetSlowPost returns the slow POST protection settings of a policy.
func (c *AppSecClient) GetSlowPost(ctx context.Context, ref PolicyRef) (*SlowPost, error) {
	var resp struct {
		Action *string `json:"action"`
	}
	if err := c.api.Get(ctx, policyPath(ref, "slow-post"), &resp); err != nil {
		return nil, fmt.Errorf("getting slow post for %s: %w", ref, err)
	}
	if resp.Action == nil {
		return nil, notFound("slow post action for %s", ref)
	}
	return &SlowPost{Action: *resp.Action}, nil
}

// GetReputationProfileActions returns the client reputation profile actions of a policy.
func (c *AppSecClient) GetReputationProfileActions(ctx context.Context, ref PolicyRef) ([]ReputationProfileAction, error) {
	var resp struct {
		ReputationProfiles *[]ReputationProfileAction `json:"reputationProfiles"`
	}
	if err := c.api.Get(ctx, policyPath(ref, "reputation-profiles"), &resp); err != nil {
		return nil, fmt.Errorf("getting reputation profiles for %s: %w", ref, err)
	}
	if resp.ReputationProfiles == nil {
		return nil, notFound("reputation profile actions for %s", ref)
	}
	return *resp.ReputationProfiles, nil
}
