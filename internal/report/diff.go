package report

import (
	"encoding/json"
	"fmt"

	"github.com/wI2L/jsondiff"

	"github.com/locktivity/epack-collector-akamai/internal/collector"
)

// rowView is the part of a row compared between runs.
type rowView struct {
	ConfigName        string `json:"config_name"`
	PolicyName        string `json:"policy_name"`
	ProductionVersion int    `json:"production_version"`
	Mode              string `json:"mode"`
	AttackGroupsDeny  string `json:"attack_groups_deny"`
	RateControlsDeny  string `json:"rate_controls_deny"`
	RateControlsAlert string `json:"rate_controls_alert"`
	SlowPost          string `json:"slow_post"`
	ClientRepDeny     string `json:"client_reputation_deny"`
}

func rowViews(rows []collector.Row) map[string]rowView {
	views := make(map[string]rowView, len(rows))
	for _, r := range rows {
		views[fmt.Sprintf("%d:%s", r.ConfigID, r.PolicyID)] = rowView{
			ConfigName:        r.ConfigName,
			PolicyName:        r.PolicyName,
			ProductionVersion: r.ProductionVersion,
			Mode:              r.Mode,
			AttackGroupsDeny:  r.AttackGroups.String(),
			RateControlsDeny:  r.RateControls.DenyCell(),
			RateControlsAlert: r.RateControls.AlertCell(),
			SlowPost:          r.SlowPost,
			ClientRepDeny:     r.ClientReputation.String(),
		}
	}
	return views
}

// Diff compares the rows of a baseline report with the current rows. Rows are
// matched by configuration and policy id; paths look like /<configID>:<policyID>/<field>.
func Diff(baseline, current *collector.Output) ([]collector.Drift, error) {
	before, err := json.Marshal(rowViews(baseline.Rows))
	if err != nil {
		return nil, fmt.Errorf("encoding baseline rows: %w", err)
	}
	after, err := json.Marshal(rowViews(current.Rows))
	if err != nil {
		return nil, fmt.Errorf("encoding current rows: %w", err)
	}

	patch, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return nil, fmt.Errorf("comparing reports: %w", err)
	}

	drift := make([]collector.Drift, 0, len(patch))
	for _, op := range patch {
		drift = append(drift, collector.Drift{
			Op:       fmt.Sprint(op.Type),
			Path:     fmt.Sprint(op.Path),
			Value:    op.Value,
			OldValue: op.OldValue,
		})
	}
	return drift, nil
}
