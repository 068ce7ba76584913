package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/generate"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/verify"
)

// TerminalRenderer formats engine results for the console. In plain
// mode (piped output, NO_COLOR) all styling is dropped.
type TerminalRenderer struct {
	plain bool
}

// NewTerminalRenderer creates a renderer for the given output format.
func NewTerminalRenderer(format Format) *TerminalRenderer {
	return &TerminalRenderer{plain: format == FormatText}
}

func (r *TerminalRenderer) render(st interface{ Render(...string) string }, s string) string {
	if r.plain {
		return s
	}
	return st.Render(s)
}

func (r *TerminalRenderer) indicator(styled, plain string) string {
	if r.plain {
		return plain
	}
	return styled
}

// RenderSummary renders the outcome of a generation run.
func (r *TerminalRenderer) RenderSummary(res *generate.Result, dryRun bool) string {
	var b strings.Builder

	title := fmt.Sprintf("Generated %s", res.TemplateName)
	if dryRun {
		title = fmt.Sprintf("Would generate %s (dry run)", res.TemplateName)
	}
	b.WriteString(r.render(TitleStyle, title) + "\n\n")

	if len(res.Values) > 0 {
		names := make([]string, 0, len(res.Values))
		for name := range res.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := res.Values[name]
			line := fmt.Sprintf("  %s = %s",
				r.render(OptionStyle, name), v.String())
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	for _, f := range res.Files {
		mark := r.indicator(SuccessIndicator, "+")
		note := ""
		if f.Raw {
			note = r.render(MutedStyle, " (raw)")
		}
		b.WriteString(fmt.Sprintf("  %s %s%s\n", mark, f.Path, note))
	}
	for _, p := range res.Excluded {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			r.indicator(SkippedIndicator, "-"),
			r.render(MutedStyle, p+" (excluded)")))
	}

	if !dryRun {
		b.WriteString(fmt.Sprintf("\n%d files written to %s\n",
			len(res.Files), r.render(PathStyle, res.OutputDir)))
	}
	return b.String()
}

// RenderOptions renders the template's option schema, one option per
// block, in resolution-independent declaration order.
func (r *TerminalRenderer) RenderOptions(opts []schema.Option) string {
	if len(opts) == 0 {
		return r.render(MutedStyle, "template declares no options")
	}

	var b strings.Builder
	for i, opt := range opts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s (%s)\n",
			r.render(OptionStyle, opt.Name), opt.Kind))
		if opt.Prompt != "" {
			b.WriteString(fmt.Sprintf("  %s\n", opt.Prompt))
		}
		if opt.Default != nil {
			b.WriteString(fmt.Sprintf("  default: %s\n", opt.Default.String()))
		} else {
			b.WriteString(fmt.Sprintf("  %s\n", r.render(WarningStyle, "required")))
		}
		if len(opt.Choices) > 0 {
			b.WriteString(fmt.Sprintf("  choices: %s\n", strings.Join(opt.Choices, ", ")))
		}
		if opt.When != "" {
			b.WriteString(fmt.Sprintf("  when: %s\n", r.render(MutedStyle, opt.When)))
		}
	}
	return b.String()
}

// RenderReport renders a verification report.
func (r *TerminalRenderer) RenderReport(report *verify.Report) string {
	if report.OK() {
		return fmt.Sprintf("%s %d files verified",
			r.indicator(SuccessIndicator, "ok:"), report.Checked)
	}

	var b strings.Builder
	for _, issue := range report.Issues {
		b.WriteString(fmt.Sprintf("%s %s: %s\n",
			r.indicator(ErrorIndicator, "error:"), issue.Path, issue.Detail))
	}
	b.WriteString(fmt.Sprintf("\n%d of %d files failed verification",
		len(report.Issues), report.Checked))
	return b.String()
}

// RenderError renders a fatal error for stderr.
func (r *TerminalRenderer) RenderError(err error) string {
	return r.render(ErrorStyle, fmt.Sprintf("Error: %v", err))
}
