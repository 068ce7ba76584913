// Package testutil provides shared helpers for tests: in-memory
// filesystems pre-populated with template trees.
package testutil

import (
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/TheBestAstroNOT/stencil/pkg/filesystem"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// NewMemoryFS returns an empty in-memory filesystem.
func NewMemoryFS(t *testing.T) types.FS {
	t.Helper()
	return filesystem.NewAferoFS(afero.NewMemMapFs())
}

// WriteTree materializes the given path->content mapping on fsys. A
// trailing slash in a key creates an empty directory.
func WriteTree(t *testing.T, fsys types.FS, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := path.Join(root, rel)
		if rel[len(rel)-1] == '/' {
			require.NoError(t, fsys.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(path.Dir(full), 0o755))
		require.NoError(t, fsys.WriteFile(full, []byte(content), 0o644))
	}
}

// ReadTree walks root on fsys and returns every file as a
// root-relative path->content mapping.
func ReadTree(t *testing.T, fsys types.FS, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := fsys.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			full := path.Join(dir, e.Name())
			if e.IsDir() {
				walk(full)
				continue
			}
			data, err := fsys.ReadFile(full)
			require.NoError(t, err)
			rel := full[len(root)+1:]
			out[rel] = string(data)
		}
	}
	walk(root)
	return out
}

// Exists reports whether a path exists on fsys.
func Exists(fsys types.FS, p string) bool {
	_, err := fsys.Stat(p)
	return err == nil
}
