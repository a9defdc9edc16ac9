package collector

import (
	"context"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

// rateClass is how a single rate policy is counted.
type rateClass int

const (
	rateUncounted rateClass = iota
	rateAlert
	rateDeny
)

// collectRateControls collects rate policy counts in deny and alert mode.
func (c *Collector) collectRateControls(ctx context.Context, ref akamai.PolicyRef) (RateControlResult, error) {
	actions, err := c.client.GetRatePolicyActions(ctx, ref)
	if err != nil {
		if absent(err) {
			return RateControlResult{}, nil
		}
		return RateControlResult{}, err
	}
	return summarizeRateControls(actions), nil
}

func summarizeRateControls(actions []akamai.RatePolicyAction) RateControlResult {
	result := RateControlResult{Configured: true}
	for _, a := range actions {
		switch classifyRateAction(a) {
		case rateAlert:
			result.Alert++
		case rateDeny:
			result.Deny++
		}
	}
	return result
}

// classifyRateAction applies the first matching rule: an alert on either
// address family is an alert, deny needs both families to deny, IPv4 deny
// alone is an alert, anything else is not counted.
func classifyRateAction(a akamai.RatePolicyAction) rateClass {
	switch {
	case a.IPv4Action == akamai.ActionAlert:
		return rateAlert
	case a.IPv6Action == akamai.ActionAlert:
		return rateAlert
	case a.IPv4Action == akamai.ActionDeny && a.IPv6Action == akamai.ActionDeny:
		return rateDeny
	case a.IPv4Action == akamai.ActionDeny:
		return rateAlert
	default:
		return rateUncounted
	}
}
