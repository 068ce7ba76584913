package template_test

import (
	"testing"

	"github.com/TheBestAstroNOT/stencil/pkg/manifest"
	"github.com/TheBestAstroNOT/stencil/pkg/template"
	"github.com/TheBestAstroNOT/stencil/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"stencil.toml":         "[template]\nname = \"x\"\n",
		"README.md":            "# hi",
		"src/lib.rs":           "",
		"src/exports.rs":       "",
		".git/HEAD":            "ref: refs/heads/main",
		"benches/main.rs":      "",
		"doc/docs/index.md":    "",
		"nested/.git/objects/": "",
	})

	tree, err := template.Scan(fsys, "tpl", manifest.FileNames)
	require.NoError(t, err)

	var paths []string
	for _, n := range tree.Nodes {
		paths = append(paths, n.Path)
	}

	assert.Contains(t, paths, "README.md")
	assert.Contains(t, paths, "src")
	assert.Contains(t, paths, "src/lib.rs")
	assert.Contains(t, paths, "doc/docs/index.md")
	assert.NotContains(t, paths, "stencil.toml", "manifest is not template content")
	assert.NotContains(t, paths, ".git/HEAD")
	assert.NotContains(t, paths, "nested/.git")

	// Sorted, so deterministic across runs.
	sorted := append([]string{}, paths...)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1], sorted[i])
	}
}

func TestScan_MissingRoot(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	_, err := template.Scan(fsys, "nope", manifest.FileNames)
	require.Error(t, err)
}

func TestFiles(t *testing.T) {
	fsys := testutil.NewMemoryFS(t)
	testutil.WriteTree(t, fsys, "tpl", map[string]string{
		"a.txt":     "",
		"dir/b.txt": "",
	})

	tree, err := template.Scan(fsys, "tpl", nil)
	require.NoError(t, err)

	files := tree.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Path)
	assert.Equal(t, "dir/b.txt", files[1].Path)
}
