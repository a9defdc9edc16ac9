package akamai

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// exportDocument mirrors the parts of GET /export/configs/{id}/versions/{v} the audit reads.
type exportDocument struct {
	SecurityPolicies *[]exportPolicy `json:"securityPolicies"`
}

type exportPolicy struct {
	ID                     *string `json:"id"`
	Name                   *string `json:"name"`
	WebApplicationFirewall *struct {
		AttackGroupActions *[]AttackGroupAction `json:"attackGroupActions"`
	} `json:"webApplicationFirewall"`
	RatePolicyActions *[]RatePolicyAction `json:"ratePolicyActions"`
	SlowPost          *struct {
		Action *string `json:"action"`
	} `json:"slowPost"`
	ClientReputation *struct {
		ReputationProfileActions *[]ReputationProfileAction `json:"reputationProfileActions"`
	} `json:"clientReputation"`
}

// ExportClient implements Client on top of the configuration export document.
//
// The export is fetched once per configuration version and every control of
// every policy is read from it. Configuration listing and ruleset mode are
// not part of the export and come from the dedicated endpoints.
type ExportClient struct {
	*AppSecClient

	group singleflight.Group
	mu    sync.Mutex
	docs  map[string]*exportDocument
}

// NewExportClient creates a client that reads policies and controls from the export document.
func NewExportClient(api Getter) *ExportClient {
	return &ExportClient{
		AppSecClient: NewAppSecClient(api),
		docs:         make(map[string]*exportDocument),
	}
}

// NewClient returns the Client for the given policy source generation.
func NewClient(api Getter, source string) (Client, error) {
	switch source {
	case "", SourceEndpoints:
		return NewAppSecClient(api), nil
	case SourceExport:
		return NewExportClient(api), nil
	default:
		return nil, fmt.Errorf("unknown policy source %q (want %q or %q)", source, SourceEndpoints, SourceExport)
	}
}

func (c *ExportClient) export(ctx context.Context, configID int64, version int) (*exportDocument, error) {
	key := fmt.Sprintf("%d/%d", configID, version)

	c.mu.Lock()
	doc, ok := c.docs[key]
	c.mu.Unlock()
	if ok {
		return doc, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		path := fmt.Sprintf("%s/export/configs/%d/versions/%d", appSecBase, configID, version)
		var doc exportDocument
		if err := c.api.Get(ctx, path, &doc); err != nil {
			return nil, fmt.Errorf("exporting configuration %d/v%d: %w", configID, version, err)
		}
		c.mu.Lock()
		c.docs[key] = &doc
		c.mu.Unlock()
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*exportDocument), nil
}

// ListPolicies returns the security policies listed in the export document.
func (c *ExportClient) ListPolicies(ctx context.Context, configID int64, version int) ([]Policy, error) {
	doc, err := c.export(ctx, configID, version)
	if err != nil {
		return nil, err
	}
	if doc.SecurityPolicies == nil {
		return nil, notFound("export %d/v%d: missing securityPolicies field", configID, version)
	}

	policies := make([]Policy, 0, len(*doc.SecurityPolicies))
	for i, p := range *doc.SecurityPolicies {
		policy, err := listedPolicy(i, p.ID, p.Name)
		if err != nil {
			return nil, fmt.Errorf("export %d/v%d: %w", configID, version, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func (c *ExportClient) policy(ctx context.Context, ref PolicyRef) (*exportPolicy, error) {
	doc, err := c.export(ctx, ref.ConfigID, ref.Version)
	if err != nil {
		return nil, err
	}
	if doc.SecurityPolicies == nil {
		return nil, notFound("export for %s: missing securityPolicies field", ref)
	}
	for i := range *doc.SecurityPolicies {
		if id := (*doc.SecurityPolicies)[i].ID; id != nil && *id == ref.PolicyID {
			return &(*doc.SecurityPolicies)[i], nil
		}
	}
	return nil, notFound("policy %s in export", ref)
}

// GetAttackGroupActions returns the attack group actions of a policy from the export.
func (c *ExportClient) GetAttackGroupActions(ctx context.Context, ref PolicyRef) ([]AttackGroupAction, error) {
	p, err := c.policy(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.WebApplicationFirewall == nil || p.WebApplicationFirewall.AttackGroupActions == nil {
		return nil, notFound("attack group actions for %s", ref)
	}
	return *p.WebApplicationFirewall.AttackGroupActions, nil
}

// GetRatePolicyActions returns the rate policy actions of a policy from the export.
func (c *ExportClient) GetRatePolicyActions(ctx context.Context, ref PolicyRef) ([]RatePolicyAction, error) {
	p, err := c.policy(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.RatePolicyActions == nil {
		return nil, notFound("rate policy actions for %s", ref)
	}
	return *p.RatePolicyActions, nil
}

// GetSlowPost returns the slow POST settings of a policy from the export.
func (c *ExportClient) GetSlowPost(ctx context.Context, ref PolicyRef) (*SlowPost, error) {
	p, err := c.policy(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.SlowPost == nil || p.SlowPost.Action == nil {
		return nil, notFound("slow post action for %s", ref)
	}
	return &SlowPost{Action: *p.SlowPost.Action}, nil
}

// GetReputationProfileActions returns the client reputation actions of a policy from the export.
func (c *ExportClient) GetReputationProfileActions(ctx context.Context, ref PolicyRef) ([]ReputationProfileAction, error) {
	p, err := c.policy(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.ClientReputation == nil || p.ClientReputation.ReputationProfileActions == nil {
		return nil, notFound("reputation profile actions for %s", ref)
	}
	return *p.ClientReputation.ReputationProfileActions, nil
}
