// Package rules turns a resolved configuration and a list of exclusion
// rules into the concrete set of template paths removed from output.
package rules

import (
	"path"
	"sort"
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/expr"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// Rule pairs a boolean expression with the path patterns it excludes
// when the expression evaluates true. Patterns are exact slash-relative
// paths; a pattern naming a directory excludes all its descendants.
type Rule struct {
	// When is the expression source. Empty means unconditional.
	When string

	// Paths are the template-relative paths removed when the rule fires.
	Paths []string

	cond *expr.Expr
}

// Condition returns the compiled expression, or nil for an
// unconditional rule. Only valid after Compile.
func (r Rule) Condition() *expr.Expr {
	return r.cond
}

// Compile parses every rule expression up front so that a malformed
// expression is reported before any rendering begins. Partial
// generation must never occur because of a rule that only fires for
// some configurations.
func Compile(rules []Rule) ([]Rule, error) {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		if out[i].When == "" {
			continue
		}
		cond, err := expr.Parse(out[i].When)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrRuleMalformedExpr,
				"exclusion rule %d", i).
				WithDetail("rule", i)
		}
		out[i].cond = cond
	}
	return out, nil
}

// ExclusionSet is the union of path patterns of all rules that fired.
// Exclusion is monotonic: once a path is in the set, no other rule can
// resurrect it.
type ExclusionSet struct {
	patterns map[string]struct{}
}

// ComputeExclusions evaluates each compiled rule against the resolved
// configuration and unions the patterns of the rules that fired. Rule
// order is irrelevant; set union is commutative.
func ComputeExclusions(rules []Rule, values types.Values) ExclusionSet {
	logger := logging.GetLogger("rules")

	set := ExclusionSet{patterns: make(map[string]struct{})}
	for _, rule := range rules {
		if rule.cond != nil && !rule.cond.Eval(values) {
			continue
		}
		for _, p := range rule.Paths {
			set.patterns[normalize(p)] = struct{}{}
		}
		logger.Debug().
			Str("condition", rule.When).
			Strs("paths", rule.Paths).
			Msg("exclusion rule fired")
	}
	return set
}

// Contains reports whether the path is excluded: either it matches a
// pattern exactly, or one of its ancestor directories does. Excluding a
// directory excludes every descendant without listing each one.
func (s ExclusionSet) Contains(p string) bool {
	if len(s.patterns) == 0 {
		return false
	}
	p = normalize(p)
	if _, ok := s.patterns[p]; ok {
		return true
	}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := s.patterns[dir]; ok {
			return true
		}
	}
	return false
}

// Patterns returns the excluded patterns in sorted order, for display.
func (s ExclusionSet) Patterns() []string {
	out := make([]string, 0, len(s.patterns))
	for p := range s.patterns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of patterns in the set.
func (s ExclusionSet) Len() int {
	return len(s.patterns)
}

// normalize cleans a pattern to a slash-separated relative path without
// leading "./" or trailing "/".
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return p
}
