package engine

import (
	"fmt"

	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// ParsedRule is a workflow rule with both sides compiled. DependsOn is the
// set of document types the validation reads, computed once at parse time
// rather than rescanned from the rule text on every evaluation.
type ParsedRule struct {
	Rule       types.Rule
	Validation Expr
	Action     Action
	DependsOn  []string
}

// ParseRule compiles one persisted rule.
func ParseRule(rule types.Rule) (*ParsedRule, error) {
	expr, err := ParseValidation(rule.Validation)
	if err != nil {
		return nil, fmt.Errorf("rule %s: validation: %w", rule.ID, err)
	}
	action, err := ParseAction(rule.Action)
	if err != nil {
		return nil, fmt.Errorf("rule %s: action: %w", rule.ID, err)
	}
	return &ParsedRule{
		Rule:       rule,
		Validation: expr,
		Action:     action,
		DependsOn:  References(expr),
	}, nil
}

// RuleError reports one rule that failed to compile.
type RuleError struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

// ParseRules compiles a rule set, collecting per-rule failures instead of
// failing the batch. Garbage rule text from user input must never take the
// engine down.
func ParseRules(rules []types.Rule) ([]*ParsedRule, []RuleError) {
	parsed := make([]*ParsedRule, 0, len(rules))
	var failed []RuleError
	for _, r := range rules {
		pr, err := ParseRule(r)
		if err != nil {
			failed = append(failed, RuleError{RuleID: r.ID, Error: err.Error()})
			continue
		}
		parsed = append(parsed, pr)
	}
	return parsed, failed
}
