package collector

import (
	"context"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

// collectClientReputation counts client reputation profiles in deny mode.
func (c *Collector) collectClientReputation(ctx context.Context, ref akamai.PolicyRef) (ReputationResult, error) {
	actions, err := c.client.GetReputationProfileActions(ctx, ref)
	if err != nil {
		if absent(err) {
			return ReputationResult{}, nil
		}
		return ReputationResult{}, err
	}

	result := ReputationResult{Configured: true}
	for _, a := range actions {
		if a.Action == akamai.ActionDeny {
			result.Deny++
		}
	}
	return result, nil
}
