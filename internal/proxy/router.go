package proxy

import (
	"fmt"
	"strings"
)

// Router holds an ordered, immutable set of rules. The first rule whose prefix
// matches the request path wins.
type Router struct {
	rules []Rule
}

// Warning describes a configuration smell that is reported but not corrected.
type Warning struct {
	Prefix  string
	Message string
}

func (w Warning) String() string {
	return w.Prefix + ": " + w.Message
}

// NewRouter builds a router from rules in the given order. Duplicate prefixes
// are rejected rather than resolved.
func NewRouter(rules ...Rule) (*Router, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	seen := make(map[string]int, len(rules))
	for i, r := range rules {
		if err := validatePrefix(r.Prefix); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if r.Target.Host == "" {
			return nil, fmt.Errorf("rules[%d]: %w: no host for prefix %q", i, ErrInvalidTarget, r.Prefix)
		}
		if first, dup := seen[r.Prefix]; dup {
			return nil, fmt.Errorf("rules[%d]: %w: %q already defined by rules[%d]", i, ErrDuplicatePrefix, r.Prefix, first)
		}
		seen[r.Prefix] = i
	}

	return &Router{rules: append([]Rule(nil), rules...)}, nil
}

// Rules returns a copy of the rules in match order.
func (rt *Router) Rules() []Rule {
	return append([]Rule(nil), rt.rules...)
}

// Match returns the first rule matching path and the rewritten outbound path.
func (rt *Router) Match(path string) (Rule, string, bool) {
	idx, ok := rt.matchIndex(path)
	if !ok {
		return Rule{}, path, false
	}
	r := rt.rules[idx]
	return r, r.Rewrite(path), true
}

func (rt *Router) matchIndex(path string) (int, bool) {
	for i, r := range rt.rules {
		if r.Matches(path) {
			return i, true
		}
	}
	return -1, false
}

// Warnings reports rules that an earlier rule makes unreachable, and rules whose
// rewrite does not strip their own prefix. Order is never changed to fix these.
func (rt *Router) Warnings() []Warning {
	var warnings []Warning
	for i, later := range rt.rules {
		for _, earlier := range rt.rules[:i] {
			if strings.HasPrefix(later.Prefix, earlier.Prefix) {
				warnings = append(warnings, Warning{
					Prefix:  later.Prefix,
					Message: fmt.Sprintf("never matches, shadowed by earlier prefix %q", earlier.Prefix),
				})
				break
			}
		}
		if !later.RewritesOwnPrefix() {
			warnings = append(warnings, Warning{
				Prefix:  later.Prefix,
				Message: fmt.Sprintf("rewrite strips %q, so %q is forwarded upstream", later.StripPrefix, strings.TrimPrefix(later.Prefix, later.StripPrefix)),
			})
		}
	}
	return warnings
}
