// Package prompt asks the user for option values interactively. It is
// only wired in when stdin is a terminal; non-interactive runs rely on
// overrides and defaults alone.
package prompt

import (
	"regexp"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/pterm/pterm"
)

// maxAttempts bounds re-prompting when the answer keeps failing the
// option's pattern.
const maxAttempts = 3

// Console prompts on the controlling terminal via pterm.
type Console struct{}

var _ schema.Prompter = (*Console)(nil)

// NewConsole returns a terminal-backed prompter.
func NewConsole() *Console {
	return &Console{}
}

// Prompt asks for one option's value. Enum options show a selector,
// booleans a confirm dialog, strings a text input pre-filled with the
// default.
func (c *Console) Prompt(opt schema.Option) (types.Value, error) {
	logger := logging.GetLogger("prompt")
	logger.Debug().Str("option", opt.Name).Str("kind", opt.Kind.String()).Msg("prompting")

	label := opt.Prompt
	if label == "" {
		label = opt.Name
	}

	switch opt.Kind {
	case schema.KindBool:
		return c.promptBool(opt, label)
	case schema.KindEnum:
		return c.promptEnum(opt, label)
	default:
		return c.promptString(opt, label)
	}
}

func (c *Console) promptBool(opt schema.Option, label string) (types.Value, error) {
	confirm := pterm.DefaultInteractiveConfirm
	if opt.Default != nil {
		confirm = *confirm.WithDefaultValue(opt.Default.Bool())
	}
	answer, err := confirm.Show(label)
	if err != nil {
		return types.Value{}, errors.Wrapf(err, errors.ErrInvalidInput,
			"prompting for option %q", opt.Name)
	}
	return types.BoolValue(answer), nil
}

func (c *Console) promptEnum(opt schema.Option, label string) (types.Value, error) {
	sel := pterm.DefaultInteractiveSelect.WithOptions(opt.Choices)
	if opt.Default != nil {
		sel = sel.WithDefaultOption(opt.Default.Str())
	}
	answer, err := sel.Show(label)
	if err != nil {
		return types.Value{}, errors.Wrapf(err, errors.ErrInvalidInput,
			"prompting for option %q", opt.Name)
	}
	return types.StringValue(answer), nil
}

func (c *Console) promptString(opt schema.Option, label string) (types.Value, error) {
	var pattern *regexp.Regexp
	if opt.Pattern != "" {
		// The schema validated the pattern already.
		pattern = regexp.MustCompile(opt.Pattern)
	}

	input := pterm.DefaultInteractiveTextInput
	if opt.Default != nil {
		input = *input.WithDefaultValue(opt.Default.Str())
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		answer, err := input.Show(label)
		if err != nil {
			return types.Value{}, errors.Wrapf(err, errors.ErrInvalidInput,
				"prompting for option %q", opt.Name)
		}
		if pattern == nil || pattern.MatchString(answer) {
			return types.StringValue(answer), nil
		}
		pterm.Warning.Printfln("value must match %s", opt.Pattern)
	}
	return types.Value{}, errors.Newf(errors.ErrSchemaInvalidValue,
		"no valid value given for option %q after %d attempts", opt.Name, maxAttempts)
}
