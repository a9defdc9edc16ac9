package collector

import (
	"context"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

// collectAttackGroups collects the share of attack groups in deny mode.
func (c *Collector) collectAttackGroups(ctx context.Context, ref akamai.PolicyRef) (AttackGroupResult, error) {
	actions, err := c.client.GetAttackGroupActions(ctx, ref)
	if err != nil {
		if absent(err) {
			return AttackGroupResult{}, nil
		}
		return AttackGroupResult{}, err
	}
	return summarizeAttackGroups(actions), nil
}

// summarizeAttackGroups computes deny / (alert + deny). Actions other than
// alert and deny are ignored; with none of either the share is 0%.
func summarizeAttackGroups(actions []akamai.AttackGroupAction) AttackGroupResult {
	result := AttackGroupResult{Configured: true}
	for _, a := range actions {
		switch a.Action {
		case akamai.ActionAlert:
			result.Alert++
		case akamai.ActionDeny:
			result.Deny++
		}
	}
	result.DenyPercent = percent(result.Deny, result.Alert+result.Deny)
	return result
}
