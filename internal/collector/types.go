// Package collector provides Akamai WAF posture collection functionality.
package collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatusFunc is called to report indeterminate status updates.
type StatusFunc func(message string)

// ProgressFunc is called to report determinate progress (current/total).
type ProgressFunc func(current, total int64, message string)

// Config holds the collector configuration.
type Config struct {
	AccountSwitchKey string `json:"account_switch_key"` // Recorded in the output only; applied by the API client
	Source           string `json:"source"`             // Policy source generation, recorded in the output
	Concurrency      int    `json:"concurrency"`        // Policies collected at once (<= 1 = sequential)

	Logger *zerolog.Logger `json:"-"`

	// Progress callbacks (optional, set by main to report status)
	OnStatus   StatusFunc   `json:"-"`
	OnProgress ProgressFunc `json:"-"`
}

// Output represents the complete collector output.
type Output struct {
	SchemaVersion    string                 `json:"schema_version"`
	RunID            string                 `json:"run_id"`
	CollectedAt      string                 `json:"collected_at"`
	AccountSwitchKey string                 `json:"account_switch_key,omitempty"`
	Source           string                 `json:"source"`
	ElapsedSeconds   float64                `json:"elapsed_seconds"`
	Rows             []Row                  `json:"rows"`
	Skipped          []SkippedConfiguration `json:"skipped"`
	Findings         []Finding              `json:"findings,omitempty"`
	Drift            []Drift                `json:"drift,omitempty"`
}

// Row is the audited posture of one security policy.
type Row struct {
	Number            int    `json:"number"`
	ConfigID          int64  `json:"config_id"`
	ConfigName        string `json:"config_name"`
	ProductionVersion int    `json:"production_version"`
	PolicyID          string `json:"policy_id"`
	PolicyName        string `json:"policy_name"`

	Mode             string            `json:"mode"`
	AttackGroups     AttackGroupResult `json:"attack_groups"`
	RateControls     RateControlResult `json:"rate_controls"`
	SlowPost         string            `json:"slow_post"`
	ClientReputation ReputationResult  `json:"client_reputation"`
}

// Cells returns the report columns of the row, in Columns order.
func (r Row) Cells() []string {
	return []string{
		strconv.Itoa(r.Number),
		r.ConfigName,
		r.PolicyName,
		r.Mode,
		r.AttackGroups.String(),
		r.RateControls.DenyCell(),
		r.RateControls.AlertCell(),
		r.SlowPost,
		r.ClientReputation.String(),
	}
}

// AttackGroupResult summarizes the attack group actions of a policy.
type AttackGroupResult struct {
	Configured  bool `json:"configured"`
	Alert       int  `json:"alert"`
	Deny        int  `json:"deny"`
	DenyPercent int  `json:"deny_percent"`
}

func (r AttackGroupResult) String() string {
	if !r.Configured {
		return SentinelOff
	}
	return fmt.Sprintf("%d%%", r.DenyPercent)
}

// RateControlResult counts rate policies in deny and alert mode.
type RateControlResult struct {
	Configured bool `json:"configured"`
	Deny       int  `json:"deny"`
	Alert      int  `json:"alert"`
}

// DenyCell renders the deny count, or the off sentinel.
func (r RateControlResult) DenyCell() string {
	if !r.Configured {
		return SentinelOff
	}
	return strconv.Itoa(r.Deny)
}

// AlertCell renders the alert count, or the off sentinel.
func (r RateControlResult) AlertCell() string {
	if !r.Configured {
		return SentinelOff
	}
	return strconv.Itoa(r.Alert)
}

// ReputationResult counts client reputation profiles in deny mode.
type ReputationResult struct {
	Configured bool `json:"configured"`
	Deny       int  `json:"deny"`
}

func (r ReputationResult) String() string {
	if !r.Configured {
		return SentinelOff
	}
	return strconv.Itoa(r.Deny)
}

// SkippedConfiguration records a configuration that produced no rows.
type SkippedConfiguration struct {
	ConfigID int64  `json:"config_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

// Finding is a failed audit check for one row.
type Finding struct {
	Check      string `json:"check"`
	Message    string `json:"message"`
	RowNumber  int    `json:"row_number"`
	ConfigName string `json:"config_name"`
	PolicyName string `json:"policy_name"`
}

// Drift is one change between a baseline report and the current run.
type Drift struct {
	Op       string `json:"op"`
	Path     string `json:"path"`
	Value    any    `json:"value,omitempty"`
	OldValue any    `json:"old_value,omitempty"`
}

// NewOutput creates a new Output with the current timestamp and a fresh run ID.
func NewOutput(now time.Time) *Output {
	return &Output{
		SchemaVersion: SchemaVersion,
		RunID:         uuid.NewString(),
		CollectedAt:   now.UTC().Format(time.RFC3339),
		Rows:          []Row{},
		Skipped:       []SkippedConfiguration{},
	}
}
