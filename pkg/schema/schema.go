// Package schema declares the set of recognized configuration options
// for a template and resolves caller-supplied values against it.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/expr"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/gammazero/toposort"
)

// Kind is the declared type of an option.
type Kind int

const (
	KindBool Kind = iota
	KindString
	KindEnum
)

// String returns the manifest spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a manifest kind string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "bool", "boolean":
		return KindBool, nil
	case "string", "str":
		return KindString, nil
	case "enum":
		return KindEnum, nil
	default:
		return 0, errors.Newf(errors.ErrManifestInvalid, "unknown option kind %q", s)
	}
}

// Option declares one configurable parameter.
type Option struct {
	// Name is the unique option key, as referenced by expressions and
	// placeholders. Hyphens are allowed ("project-name").
	Name string

	// Kind is the value type.
	Kind Kind

	// Default is the value used when the caller supplies none. A nil
	// Default marks the option required.
	Default *types.Value

	// Prompt is the question shown in interactive mode. Falls back to
	// the option name when empty.
	Prompt string

	// Choices is the allowed value set for KindEnum.
	Choices []string

	// Pattern is an optional regular expression constraint for
	// KindString values.
	Pattern string

	// When is an optional activation condition over other options. The
	// option is only resolved (or prompted) while it evaluates true.
	When string

	when    *expr.Expr
	pattern *regexp.Regexp
}

// Condition returns the parsed activation condition, or nil when the
// option is unconditional. Only valid after New.
func (o Option) Condition() *expr.Expr {
	return o.when
}

// Schema is an immutable, validated set of option definitions together
// with their resolution order.
type Schema struct {
	options []Option
	index   map[string]int
	order   []int
}

// New validates the option definitions, parses activation conditions,
// compiles validators and computes the dependency-ordered resolution
// sequence. Activation conditions must form an acyclic graph; a cycle
// is reported as SCHEMA_CYCLIC_DEPENDENCY.
func New(options []Option) (*Schema, error) {
	s := &Schema{
		options: make([]Option, len(options)),
		index:   make(map[string]int, len(options)),
	}
	copy(s.options, options)

	for i := range s.options {
		opt := &s.options[i]
		if opt.Name == "" {
			return nil, errors.New(errors.ErrManifestInvalid, "option with empty name")
		}
		if _, dup := s.index[opt.Name]; dup {
			return nil, errors.Newf(errors.ErrSchemaDuplicate, "option %q declared twice", opt.Name).
				WithDetail("option", opt.Name)
		}
		s.index[opt.Name] = i

		if err := validateDefinition(opt); err != nil {
			return nil, err
		}

		if opt.When != "" {
			cond, err := expr.Parse(opt.When)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrRuleMalformedExpr,
					"activation condition of option %q", opt.Name).
					WithDetail("option", opt.Name)
			}
			opt.when = cond
		}
		if opt.Pattern != "" {
			re, err := regexp.Compile(opt.Pattern)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrManifestInvalid,
					"invalid pattern for option %q", opt.Name).
					WithDetail("option", opt.Name)
			}
			opt.pattern = re
		}
	}

	order, err := s.resolutionOrder()
	if err != nil {
		return nil, err
	}
	s.order = order
	return s, nil
}

func validateDefinition(opt *Option) error {
	switch opt.Kind {
	case KindBool:
		if len(opt.Choices) > 0 || opt.Pattern != "" {
			return errors.Newf(errors.ErrManifestInvalid,
				"bool option %q cannot carry choices or a pattern", opt.Name).
				WithDetail("option", opt.Name)
		}
		if opt.Default != nil && opt.Default.Kind() != types.KindBool {
			return errors.Newf(errors.ErrManifestInvalid,
				"default of bool option %q is not a boolean", opt.Name).
				WithDetail("option", opt.Name)
		}
	case KindString:
		if len(opt.Choices) > 0 {
			return errors.Newf(errors.ErrManifestInvalid,
				"string option %q cannot carry choices (use kind enum)", opt.Name).
				WithDetail("option", opt.Name)
		}
		if opt.Default != nil && opt.Default.Kind() != types.KindString {
			return errors.Newf(errors.ErrManifestInvalid,
				"default of string option %q is not a string", opt.Name).
				WithDetail("option", opt.Name)
		}
	case KindEnum:
		if len(opt.Choices) == 0 {
			return errors.Newf(errors.ErrManifestInvalid,
				"enum option %q declares no choices", opt.Name).
				WithDetail("option", opt.Name)
		}
		if opt.Default != nil {
			if opt.Default.Kind() != types.KindString || !contains(opt.Choices, opt.Default.Str()) {
				return errors.Newf(errors.ErrManifestInvalid,
					"default of enum option %q is not one of its choices", opt.Name).
					WithDetail("option", opt.Name)
			}
		}
	default:
		return errors.Newf(errors.ErrManifestInvalid, "option %q has unknown kind", opt.Name)
	}
	return nil
}

// resolutionOrder topologically sorts options over the edges implied by
// activation condition references. References to names that are not
// declared options carry no edge; they fall under the absent-is-false
// policy at evaluation time.
func (s *Schema) resolutionOrder() ([]int, error) {
	var edges []toposort.Edge
	for i := range s.options {
		opt := &s.options[i]
		if opt.when == nil {
			continue
		}
		for _, ref := range opt.when.Refs() {
			if ref == opt.Name {
				return nil, errors.Newf(errors.ErrSchemaCyclicDep,
					"option %q references itself in its activation condition", opt.Name).
					WithDetail("option", opt.Name)
			}
			if _, ok := s.index[ref]; ok {
				edges = append(edges, toposort.Edge{ref, opt.Name})
			}
		}
	}

	order := make([]int, 0, len(s.options))
	inOrder := make(map[string]bool, len(s.options))
	if len(edges) > 0 {
		sorted, err := toposort.Toposort(edges)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrSchemaCyclicDep,
				"activation conditions form a cycle")
		}
		for _, v := range sorted {
			name := v.(string)
			if idx, ok := s.index[name]; ok && !inOrder[name] {
				order = append(order, idx)
				inOrder[name] = true
			}
		}
	}
	// Options without activation edges keep declaration order.
	for i := range s.options {
		if !inOrder[s.options[i].Name] {
			order = append(order, i)
			inOrder[s.options[i].Name] = true
		}
	}
	return order, nil
}

// Options returns the option definitions in declaration order.
func (s *Schema) Options() []Option {
	out := make([]Option, len(s.options))
	copy(out, s.options)
	return out
}

// Option looks up a definition by name.
func (s *Schema) Option(name string) (Option, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Option{}, false
	}
	return s.options[idx], true
}

// ResolutionOrder returns option names in the order Resolve processes
// them: activation dependencies first.
func (s *Schema) ResolutionOrder() []string {
	out := make([]string, len(s.order))
	for i, idx := range s.order {
		out[i] = s.options[idx].Name
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
