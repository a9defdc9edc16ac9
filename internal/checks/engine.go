// Package checks evaluates CEL audit checks against collected policy rows.
package checks

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/locktivity/epack-collector-akamai/internal/collector"
)

// Check is a named CEL expression that must evaluate to true for every row.
type Check struct {
	Name    string `yaml:"name"`
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`
}

type compiledCheck struct {
	check   Check
	program cel.Program
}

// Engine evaluates a fixed set of checks.
type Engine struct {
	checks []compiledCheck
}

// NewEngine compiles checks. Any expression that fails to compile or does
// not return a bool is an error.
func NewEngine(checks []Check) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{checks: make([]compiledCheck, 0, len(checks))}
	for _, check := range checks {
		if check.Name == "" {
			return nil, fmt.Errorf("check with expression %q has no name", check.Expr)
		}

		ast, issues := env.Compile(check.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compiling check %q: %w", check.Name, issues.Err())
		}
		switch outType := ast.OutputType().String(); outType {
		case "bool", "dyn":
		default:
			return nil, fmt.Errorf("check %q must return bool, got %s", check.Name, outType)
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("building check %q: %w", check.Name, err)
		}
		e.checks = append(e.checks, compiledCheck{check: check, program: prg})
	}
	return e, nil
}

// Len returns the number of compiled checks.
func (e *Engine) Len() int {
	return len(e.checks)
}

// Evaluate runs every check against every row and returns the failures in row order.
func (e *Engine) Evaluate(rows []collector.Row) ([]collector.Finding, error) {
	var findings []collector.Finding
	for _, row := range rows {
		input := map[string]any{"row": rowToMap(row)}

		for _, cc := range e.checks {
			out, _, err := cc.program.Eval(input)
			if err != nil {
				return nil, fmt.Errorf("evaluating check %q on row %d: %w", cc.check.Name, row.Number, err)
			}

			passed, ok := out.Value().(bool)
			if !ok {
				return nil, fmt.Errorf("check %q returned %T, want bool", cc.check.Name, out.Value())
			}
			if passed {
				continue
			}

			msg := cc.check.Message
			if msg == "" {
				msg = fmt.Sprintf("check failed: %s", cc.check.Expr)
			}
			findings = append(findings, collector.Finding{
				Check:      cc.check.Name,
				Message:    msg,
				RowNumber:  row.Number,
				ConfigName: row.ConfigName,
				PolicyName: row.PolicyName,
			})
		}
	}
	return findings, nil
}

// rowToMap exposes a row to CEL using the same field names as the JSON report.
func rowToMap(r collector.Row) map[string]any {
	return map[string]any{
		"number":             int64(r.Number),
		"config_id":          r.ConfigID,
		"config_name":        r.ConfigName,
		"production_version": int64(r.ProductionVersion),
		"policy_id":          r.PolicyID,
		"policy_name":        r.PolicyName,
		"mode":               r.Mode,
		"attack_groups": map[string]any{
			"configured":   r.AttackGroups.Configured,
			"alert":        int64(r.AttackGroups.Alert),
			"deny":         int64(r.AttackGroups.Deny),
			"deny_percent": int64(r.AttackGroups.DenyPercent),
		},
		"rate_controls": map[string]any{
			"configured": r.RateControls.Configured,
			"deny":       int64(r.RateControls.Deny),
			"alert":      int64(r.RateControls.Alert),
		},
		"slow_post": r.SlowPost,
		"client_reputation": map[string]any{
			"configured": r.ClientReputation.Configured,
			"deny":       int64(r.ClientReputation.Deny),
		},
	}
}
