// Package expr implements the boolean expression grammar used by option
// activation conditions, exclusion rules and template conditional
// blocks.
//
// The grammar supports equality and inequality comparisons against
// literals, logical AND/OR/NOT (both symbolic and word forms) and
// parenthetical grouping. Operands are option names or literals.
//
// Evaluation follows the absent-is-false policy: a comparison or bare
// reference involving an option that is not present in the resolved
// configuration evaluates to false rather than erroring. That keeps a
// guard like `build_csharp_libs == true` safe even when the option was
// never resolved because its own activation condition was false.
package expr

import (
	"sort"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// Expr is a parsed, immutable boolean expression.
type Expr struct {
	root node
	src  string
}

// Parse compiles an expression source string. A malformed expression
// (unbalanced parentheses, stray operators, trailing input) returns a
// RULE_MALFORMED_EXPRESSION error carrying the source and offset.
func Parse(src string) (*Expr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRuleMalformedExpr, "invalid expression").
			WithDetail("expression", src)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRuleMalformedExpr, "invalid expression").
			WithDetail("expression", src)
	}
	if p.peek().kind != tokEOF {
		return nil, errors.Newf(errors.ErrRuleMalformedExpr,
			"invalid expression: unexpected %q at offset %d", p.peek().text, p.peek().pos).
			WithDetail("expression", src)
	}
	return &Expr{root: root, src: src}, nil
}

// MustParse is a test helper that panics on parse failure.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression against a resolved configuration.
// Evaluation never fails; references to absent options make the
// enclosing comparison false.
func (e *Expr) Eval(values types.Values) bool {
	return e.root.eval(values)
}

// Refs returns the sorted, de-duplicated option names the expression
// references. Used to derive the activation dependency graph.
func (e *Expr) Refs() []string {
	seen := make(map[string]struct{})
	e.root.refs(seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Source returns the original expression text.
func (e *Expr) Source() string {
	return e.src
}
