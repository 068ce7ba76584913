package style_test

import (
	"strings"
	"testing"

	"github.com/TheBestAstroNOT/stencil/pkg/generate"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/style"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/TheBestAstroNOT/stencil/pkg/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainRenderer() *style.TerminalRenderer {
	return style.NewTerminalRenderer(style.FormatText)
}

func TestRenderSummary(t *testing.T) {
	res := &generate.Result{
		TemplateName: "library",
		OutputDir:    "out",
		Values: types.Values{
			"project-name": types.StringValue("demo"),
			"bench":        types.BoolValue(true),
		},
		Files: []generate.FileResult{
			{Path: "README.md", Size: 7},
			{Path: "logo.png", Size: 3, Raw: true},
		},
		Excluded: []string{"flake.nix"},
	}

	out := plainRenderer().RenderSummary(res, false)
	assert.Contains(t, out, "Generated library")
	assert.Contains(t, out, "project-name = demo")
	assert.Contains(t, out, "bench = true")
	assert.Contains(t, out, "+ README.md")
	assert.Contains(t, out, "logo.png (raw)")
	assert.Contains(t, out, "flake.nix (excluded)")
	assert.Contains(t, out, "2 files written to out")

	dry := plainRenderer().RenderSummary(res, true)
	assert.Contains(t, dry, "Would generate library (dry run)")
	assert.NotContains(t, dry, "files written")
}

func TestRenderOptions(t *testing.T) {
	def := types.StringValue("mit")
	opts := []schema.Option{
		{Name: "project-name", Kind: schema.KindString, Prompt: "Project name?"},
		{Name: "license", Kind: schema.KindEnum, Default: &def,
			Choices: []string{"mit", "apache"}, When: "open_source"},
	}

	out := plainRenderer().RenderOptions(opts)
	assert.Contains(t, out, "project-name (string)")
	assert.Contains(t, out, "Project name?")
	assert.Contains(t, out, "required")
	assert.Contains(t, out, "license (enum)")
	assert.Contains(t, out, "default: mit")
	assert.Contains(t, out, "choices: mit, apache")
	assert.Contains(t, out, "when: open_source")

	assert.Contains(t, plainRenderer().RenderOptions(nil), "no options")
}

func TestRenderReport(t *testing.T) {
	clean := &verify.Report{Checked: 4}
	assert.Contains(t, plainRenderer().RenderReport(clean), "4 files verified")

	dirty := &verify.Report{
		Checked: 4,
		Issues: []verify.Issue{
			{Path: "a.toml", Detail: "invalid toml: oops"},
		},
	}
	out := plainRenderer().RenderReport(dirty)
	assert.Contains(t, out, "a.toml: invalid toml: oops")
	assert.Contains(t, out, "1 of 4 files failed verification")
}

func TestRenderError_Plain(t *testing.T) {
	out := plainRenderer().RenderError(assert.AnError)
	require.True(t, strings.HasPrefix(out, "Error: "))
	// Plain mode must not emit escape sequences.
	assert.NotContains(t, out, "\x1b[")
}
