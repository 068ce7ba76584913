// Package template models the source template file tree. The tree is
// read once at the start of a generation run and never mutated; the
// renderer produces a disjoint output tree from it.
package template

import (
	"path"
	"sort"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// Node is one file or directory in the template tree.
type Node struct {
	// Path is the slash-separated path relative to the template root.
	Path string

	// IsDir marks directory nodes. Directories appear before their
	// children in Tree.Nodes.
	IsDir bool
}

// Tree is the scanned template tree. Nodes are sorted by path so that
// iteration order, and therefore output listing, is deterministic.
type Tree struct {
	Root  string
	Nodes []Node
}

// skipNames are entries never treated as template content.
var skipNames = map[string]struct{}{
	".git": {},
}

// Scan walks the template root through fsys and returns the immutable
// tree. The manifest file at the root and version control metadata are
// not part of the tree.
func Scan(fsys types.FS, root string, manifestNames []string) (*Tree, error) {
	logger := logging.GetLogger("template")

	skipRoot := make(map[string]struct{}, len(manifestNames))
	for _, name := range manifestNames {
		skipRoot[name] = struct{}{}
	}

	var nodes []Node
	var walk func(rel string) error
	walk = func(rel string) error {
		dir := path.Join(root, rel)
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileRead, "failed to read template directory %s", dir).
				WithDetail("path", dir)
		}
		for _, entry := range entries {
			name := entry.Name()
			if _, skip := skipNames[name]; skip {
				continue
			}
			childRel := path.Join(rel, name)
			if rel == "" {
				childRel = name
				if _, skip := skipRoot[name]; skip {
					continue
				}
			}
			nodes = append(nodes, Node{Path: childRel, IsDir: entry.IsDir()})
			if entry.IsDir() {
				if err := walk(childRel); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if _, err := fsys.Stat(root); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileRead, "template root %s is not readable", root).
			WithDetail("path", root)
	}
	if err := walk(""); err != nil {
		return nil, err
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })

	logger.Debug().
		Str("root", root).
		Int("nodeCount", len(nodes)).
		Msg("template tree scanned")
	return &Tree{Root: root, Nodes: nodes}, nil
}

// Files returns the file nodes only, in sorted order.
func (t *Tree) Files() []Node {
	var out []Node
	for _, n := range t.Nodes {
		if !n.IsDir {
			out = append(out, n)
		}
	}
	return out
}
