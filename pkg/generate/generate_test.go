package generate_test

import (
	"testing"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/generate"
	"github.com/TheBestAstroNOT/stencil/pkg/testutil"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryManifest = `
[template]
name = "library"
raw = ["*.png"]

[options.project-name]
kind = "string"
default = "my-lib"
pattern = "^[a-z][a-z0-9-]*$"

[options.bench]
kind = "bool"
default = true

[options.wine]
kind = "bool"
default = false

[options.build_c_libs]
kind = "bool"
default = true

[options.build_csharp_libs]
kind = "bool"
default = false
when = "build_c_libs == true"

[[exclude]]
when = "bench == false"
paths = ["benches"]

[[exclude]]
when = "wine == false"
paths = ["flake.nix"]

[[exclude]]
when = "build_c_libs == false"
paths = ["src/{{project-name}}/src/exports.rs"]
`

func libraryTemplate(t *testing.T) (types.FS, string) {
	t.Helper()
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"stencil.toml": libraryManifest,
		"README.md":    "# {{project-name}}\n",
		"src/{{project-name}}/src/lib.rs": `{% if build_c_libs %}pub mod exports;
{% endif %}pub fn hello() {}
`,
		"src/{{project-name}}/src/exports.rs": "pub extern fn {{crate_name}}_init() {}\n",
		"benches/main.rs":                     "fn criterion_bench() {}\n",
		"flake.nix":                           "{ inherit {{an-option-nobody-declared}}; }\n",
		"logo.png":                            "{{not-a-placeholder}}",
	})
	return fsys, "tpl"
}

func TestRun_Defaults(t *testing.T) {
	fsys, dir := libraryTemplate(t)

	res, err := generate.Run(fsys, generate.Request{
		TemplateDir: dir,
		OutputDir:   "out",
	})
	require.NoError(t, err)

	files := testutil.ReadTree(t, fsys, "out")
	assert.Equal(t, "# my-lib\n", files["README.md"])
	assert.Equal(t, "pub mod exports;\npub fn hello() {}\n", files["src/my-lib/src/lib.rs"])
	assert.Equal(t, "pub extern fn my_lib_init() {}\n", files["src/my-lib/src/exports.rs"])
	assert.Contains(t, files, "benches/main.rs")
	assert.NotContains(t, files, "flake.nix", "wine defaults to false")

	// Raw files are copied verbatim, never scanned.
	assert.Equal(t, "{{not-a-placeholder}}", files["logo.png"])

	assert.Equal(t, "library", res.TemplateName)
	assert.Contains(t, res.Excluded, "flake.nix")
}

// bench=false excludes the benches directory and everything under it.
// flake.nix stays excluded by default and its unknown placeholder must
// never be seen by the renderer.
func TestRun_ExcludedFileNeverScanned(t *testing.T) {
	fsys, dir := libraryTemplate(t)

	_, err := generate.Run(fsys, generate.Request{
		TemplateDir: dir,
		OutputDir:   "out",
		Overrides:   map[string]string{"bench": "false"},
	})
	require.NoError(t, err)

	assert.False(t, testutil.Exists(fsys, "out/benches"))
	assert.False(t, testutil.Exists(fsys, "out/benches/main.rs"))
	assert.True(t, testutil.Exists(fsys, "out/README.md"))

	// Flipping wine on brings flake.nix back in, and now its bad
	// placeholder is fatal.
	fsys2, dir2 := libraryTemplate(t)
	_, err = generate.Run(fsys2, generate.Request{
		TemplateDir: dir2,
		OutputDir:   "out",
		Overrides:   map[string]string{"wine": "true"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRenderUnknownPlaceholder))
	assert.False(t, testutil.Exists(fsys2, "out"))
}

// Scenario: build_c_libs=false deactivates build_csharp_libs and
// excludes the exports file; the exclusion rule referencing the gated
// option never fires but also never errors.
func TestRun_GatedOption(t *testing.T) {
	fsys, dir := libraryTemplate(t)

	res, err := generate.Run(fsys, generate.Request{
		TemplateDir: dir,
		OutputDir:   "out",
		Overrides: map[string]string{
			"build_c_libs":      "false",
			"build_csharp_libs": "true",
		},
	})
	require.NoError(t, err)

	_, present := res.Values.Lookup("build_csharp_libs")
	assert.False(t, present)

	files := testutil.ReadTree(t, fsys, "out")
	assert.NotContains(t, files, "src/my-lib/src/exports.rs")
	assert.Equal(t, "pub fn hello() {}\n", files["src/my-lib/src/lib.rs"])
}

// Fail-fast: an unknown placeholder in any included file aborts the run
// before anything is written; no output or staging directory survives.
func TestRun_FailFastLeavesNoOutput(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"stencil.toml": "[template]\nname = \"x\"\n\n[options.name]\nkind = \"string\"\ndefault = \"demo\"\n",
		"good.txt":     "{{name}}\n",
		"bad.txt":      "{{never-declared}}\n",
	})

	_, err := generate.Run(fsys, generate.Request{
		TemplateDir: "tpl",
		OutputDir:   "out",
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRenderUnknownPlaceholder))

	assert.False(t, testutil.Exists(fsys, "out"))
	assert.False(t, testutil.Exists(fsys, "out.stencil-tmp"))
}

// A malformed block expression is caught in the pre-pass, even when it
// sits in a branch the configuration would discard.
func TestRun_MalformedExpressionPrePass(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"stencil.toml": "[template]\nname = \"x\"\n\n[options.flag]\nkind = \"bool\"\ndefault = false\n",
		"f.txt":        "{% if flag %}{% if ((broken %}x{% endif %}{% endif %}\n",
	})

	_, err := generate.Run(fsys, generate.Request{
		TemplateDir: "tpl",
		OutputDir:   "out",
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRuleMalformedExpr))
	assert.False(t, testutil.Exists(fsys, "out"))
}

func TestRun_OutputExists(t *testing.T) {
	fsys, dir := libraryTemplate(t)
	require.NoError(t, fsys.MkdirAll("out", 0o755))

	_, err := generate.Run(fsys, generate.Request{
		TemplateDir: dir,
		OutputDir:   "out",
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrOutputExists))
}

func TestRun_DryRun(t *testing.T) {
	fsys, dir := libraryTemplate(t)

	res, err := generate.Run(fsys, generate.Request{
		TemplateDir: dir,
		OutputDir:   "out",
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.False(t, testutil.Exists(fsys, "out"))
	assert.NotEmpty(t, res.Files)

	var paths []string
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "src/my-lib/src/lib.rs")
}

// Determinism: two runs with identical inputs produce identical trees.
func TestRun_Deterministic(t *testing.T) {
	overrides := map[string]string{"project-name": "demo", "bench": "true"}

	fsysA, dirA := libraryTemplate(t)
	_, err := generate.Run(fsysA, generate.Request{TemplateDir: dirA, OutputDir: "out", Overrides: overrides})
	require.NoError(t, err)

	fsysB, dirB := libraryTemplate(t)
	_, err = generate.Run(fsysB, generate.Request{TemplateDir: dirB, OutputDir: "out", Overrides: overrides})
	require.NoError(t, err)

	assert.Equal(t,
		testutil.ReadTree(t, fsysA, "out"),
		testutil.ReadTree(t, fsysB, "out"))
}

func TestRun_PathConflict(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"stencil.toml": "[template]\nname = \"x\"\n\n[options.name]\nkind = \"string\"\ndefault = \"fixed\"\n",
		"{{name}}.txt": "a\n",
		"fixed.txt":    "b\n",
	})

	_, err := generate.Run(fsys, generate.Request{
		TemplateDir: "tpl",
		OutputDir:   "out",
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRenderPathConflict))
	assert.False(t, testutil.Exists(fsys, "out"))
}

func TestValidate(t *testing.T) {
	fsys, dir := libraryTemplate(t)

	t.Run("valid", func(t *testing.T) {
		res, err := generate.Validate(fsys, dir, nil)
		require.NoError(t, err)
		assert.Equal(t, "library", res.TemplateName)
	})

	t.Run("invalid_override", func(t *testing.T) {
		_, err := generate.Validate(fsys, dir, map[string]string{"bench": "maybe"})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchemaInvalidValue))
	})
}
