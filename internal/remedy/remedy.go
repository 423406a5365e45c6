// Package remedy maps database error messages to remediation guidance
// that is appended to the error payload returned to the agent.
//
// A small set of built-in rules covers errors this server can predict
// (permission problems, read-only violations); operators can add their
// own via configuration.
package remedy

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is the matcher's own rule type.
type Rule struct {
	Pattern string
	Message string
}

// Builtin returns the rules shipped with the server. They run after any
// operator-configured rules.
func Builtin() []Rule {
	return []Rule{
		{
			Pattern: `permission denied`,
			Message: "The connected role lacks privileges for this object. Connect as a role with SELECT privilege, or ask an administrator to GRANT it.",
		},
		{
			Pattern: `read-only.*transaction|cannot execute .* in a read-only transaction`,
			Message: "This server enforces read-only access. Mutation statements are rejected by design.",
		},
	}
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks error messages against rules and returns guidance.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles operator rules followed by the built-in rules.
// Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	all := append(append([]Rule{}, rules...), Builtin()...)
	compiled := make([]compiledRule, len(all))
	for i, r := range all {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("remedy: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Match returns all matching guidance messages joined with newlines, or
// the empty string when nothing matches.
func (m *Matcher) Match(errMsg string) string {
	var matches []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			matches = append(matches, rule.message)
		}
	}
	return strings.Join(matches, "\n")
}

// MatchedPatterns returns the patterns that matched, for logging.
// Returns nil when nothing matches.
func (m *Matcher) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
