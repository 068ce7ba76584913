package schema

import (
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// Prompter supplies a value for an option that has no override. The
// Option carries the prompt text, default, choices and pattern; the
// returned value is still validated by the schema.
type Prompter interface {
	Prompt(opt Option) (types.Value, error)
}

// Resolve fills in defaults and validates overrides, producing the
// total resolved configuration for one generation run.
//
// Options are processed in activation-dependency order. An option whose
// activation condition evaluates false is omitted from the result even
// when an override names it. Overrides naming undeclared options are
// rejected. The function is pure: no side effects, same inputs, same
// result.
func (s *Schema) Resolve(overrides map[string]string) (types.Values, error) {
	return s.ResolveWith(overrides, nil)
}

// ResolveWith behaves like Resolve but consults the prompter for every
// active option not covered by an override. A nil prompter falls back
// to defaults and required-option errors.
func (s *Schema) ResolveWith(overrides map[string]string, prompter Prompter) (types.Values, error) {
	logger := logging.GetLogger("schema")

	for name := range overrides {
		if _, ok := s.index[name]; !ok {
			return nil, errors.Newf(errors.ErrSchemaUnknownOption,
				"no option named %q is declared by the template", name).
				WithDetail("option", name)
		}
	}

	values := make(types.Values, len(s.options))
	for _, idx := range s.order {
		opt := s.options[idx]

		if opt.when != nil && !opt.when.Eval(values) {
			logger.Debug().
				Str("option", opt.Name).
				Str("condition", opt.When).
				Msg("option inactive, skipping")
			continue
		}

		if raw, ok := overrides[opt.Name]; ok {
			v, err := opt.parse(raw)
			if err != nil {
				return nil, err
			}
			values[opt.Name] = v
			continue
		}

		if prompter != nil {
			v, err := prompter.Prompt(opt)
			if err != nil {
				return nil, err
			}
			if err := opt.check(v); err != nil {
				return nil, err
			}
			values[opt.Name] = v
			continue
		}

		if opt.Default != nil {
			values[opt.Name] = *opt.Default
			continue
		}

		return nil, errors.Newf(errors.ErrSchemaMissingRequired,
			"option %q is required and has no value", opt.Name).
			WithDetail("option", opt.Name)
	}

	logger.Debug().Int("optionCount", len(values)).Msg("configuration resolved")
	return values, nil
}

// parse converts a raw override string to a typed value and validates
// it against the option's kind and constraints.
func (o Option) parse(raw string) (types.Value, error) {
	switch o.Kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "true":
			return types.BoolValue(true), nil
		case "false":
			return types.BoolValue(false), nil
		default:
			return types.Value{}, errors.Newf(errors.ErrSchemaInvalidValue,
				"option %q expects true or false, got %q", o.Name, raw).
				WithDetail("option", o.Name).
				WithDetail("value", raw)
		}
	case KindString, KindEnum:
		v := types.StringValue(raw)
		if err := o.check(v); err != nil {
			return types.Value{}, err
		}
		return v, nil
	default:
		return types.Value{}, errors.Newf(errors.ErrInternal, "option %q has unknown kind", o.Name)
	}
}

// check validates an already-typed value against the definition.
func (o Option) check(v types.Value) error {
	switch o.Kind {
	case KindBool:
		if v.Kind() != types.KindBool {
			return errors.Newf(errors.ErrSchemaInvalidValue,
				"option %q expects a boolean, got %s %q", o.Name, v.Kind(), v.String()).
				WithDetail("option", o.Name)
		}
	case KindString:
		if v.Kind() != types.KindString {
			return errors.Newf(errors.ErrSchemaInvalidValue,
				"option %q expects a string, got %s", o.Name, v.Kind()).
				WithDetail("option", o.Name)
		}
		if o.pattern != nil && !o.pattern.MatchString(v.Str()) {
			return errors.Newf(errors.ErrSchemaInvalidValue,
				"value %q of option %q does not match pattern %s", v.Str(), o.Name, o.Pattern).
				WithDetail("option", o.Name).
				WithDetail("value", v.Str()).
				WithDetail("pattern", o.Pattern)
		}
	case KindEnum:
		if v.Kind() != types.KindString || !contains(o.Choices, v.Str()) {
			return errors.Newf(errors.ErrSchemaInvalidValue,
				"value %q of option %q is not one of %s", v.String(), o.Name,
				strings.Join(o.Choices, ", ")).
				WithDetail("option", o.Name).
				WithDetail("value", v.String())
		}
	}
	return nil
}
