// Package akamai provides Akamai Application Security API client functionality.
package akamai

import "fmt"

// Configuration represents a security configuration and the version active on production.
type Configuration struct {
	ID                int64
	Name              string
	ProductionVersion int // 0 when no version is active on production
}

// MissingFields returns the names of the fields the audit needs that the API left empty.
func (c Configuration) MissingFields() []string {
	var missing []string
	if c.ID == 0 {
		missing = append(missing, "id")
	}
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.ProductionVersion == 0 {
		missing = append(missing, "productionVersion")
	}
	return missing
}

// Policy represents a security policy defined in one configuration version.
type Policy struct {
	ID   string
	Name string
}

// PolicyRef addresses a policy within a specific configuration version.
type PolicyRef struct {
	ConfigID int64
	Version  int
	PolicyID string
}

func (r PolicyRef) String() string {
	return fmt.Sprintf("%d/v%d/%s", r.ConfigID, r.Version, r.PolicyID)
}

// AttackGroupAction is the action applied to one attack group.
type AttackGroupAction struct {
	Group  string `json:"group"`
	Action string `json:"action"`
}

// RatePolicyAction holds the per-address-family actions of one rate policy.
type RatePolicyAction struct {
	ID         int64  `json:"id"`
	IPv4Action string `json:"ipv4Action"`
	IPv6Action string `json:"ipv6Action"`
}

// SlowPost holds the slow POST protection settings of a policy.
type SlowPost struct {
	Action string `json:"action"`
}

// ReputationProfileAction is the action applied to one client reputation profile.
type ReputationProfileAction struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

// Action values shared by the attack group, rate and reputation resources.
const (
	ActionAlert = "alert"
	ActionDeny  = "deny"
	ActionNone  = "none"
)

// Policy source generations.
const (
	SourceEndpoints = "endpoints"
	SourceExport    = "export"
)
