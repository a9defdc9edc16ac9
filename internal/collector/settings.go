package collector

import (
	"context"
	"errors"

	"github.com/locktivity/epack-collector-akamai/internal/akamai"
)

// collectMode returns the ruleset mode verbatim.
func (c *Collector) collectMode(ctx context.Context, ref akamai.PolicyRef) (string, error) {
	mode, err := c.client.GetMode(ctx, ref)
	if err != nil {
		if absent(err) {
			return SentinelOff, nil
		}
		return "", err
	}
	return mode, nil
}

// collectSlowPost returns the slow POST action verbatim.
func (c *Collector) collectSlowPost(ctx context.Context, ref akamai.PolicyRef) (string, error) {
	slowPost, err := c.client.GetSlowPost(ctx, ref)
	if err != nil {
		if absent(err) {
			return SentinelOff, nil
		}
		return "", err
	}
	return slowPost.Action, nil
}

// absent reports whether err means the control is not configured for the policy.
func absent(err error) bool {
	return errors.Is(err, akamai.ErrNotFound)
}
