// Package redact applies regex-based redaction to query result values so
// that credential-looking data never reaches the agent.
package redact

import (
	"fmt"
	"regexp"
)

// Rule is the redactor's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor rewrites string field values in result rows.
type Redactor struct {
	rules []compiledRule
}

// New compiles the given rules. Returns an error on invalid regex patterns.
func New(rules []Rule) (*Redactor, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Redactor{rules: compiled}, nil
}

// HasRules reports whether any rules are configured.
func (r *Redactor) HasRules() bool {
	return len(r.rules) > 0
}

// Rows applies redaction to each field value in the result rows,
// recursing into JSONB objects and arrays.
func (r *Redactor) Rows(rows []map[string]interface{}) []map[string]interface{} {
	if !r.HasRules() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = r.value(v)
		}
	}
	return rows
}

func (r *Redactor) value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		result := val
		for _, rule := range r.rules {
			result = rule.pattern.ReplaceAllString(result, rule.replacement)
		}
		return result
	case map[string]interface{}:
		for k, item := range val {
			val[k] = r.value(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = r.value(item)
		}
		return val
	default:
		// Numeric, bool, nil — nothing to redact.
		return v
	}
}
