// Package generate orchestrates a full generation run: manifest load,
// option resolution, the fail-fast validation pre-pass, rendering, and
// the atomic materialization of the output tree.
//
// A run either completes fully or leaves nothing behind. All files are
// rendered in memory first; only then is a staging directory written
// and renamed into place, so a failed run can never be mistaken for a
// complete project.
package generate

import (
	"path"
	"sort"

	"github.com/rs/zerolog"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/manifest"
	"github.com/TheBestAstroNOT/stencil/pkg/render"
	"github.com/TheBestAstroNOT/stencil/pkg/rules"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/template"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// stagingSuffix names the temporary sibling of the output directory.
const stagingSuffix = ".stencil-tmp"

// Request describes one generation run.
type Request struct {
	// TemplateDir is the template root (contains the manifest).
	TemplateDir string

	// OutputDir is the target project directory. It must not exist.
	OutputDir string

	// Overrides are raw option values, e.g. from --define flags.
	Overrides map[string]string

	// Prompter, when non-nil, is consulted for options with no
	// override (interactive mode).
	Prompter schema.Prompter

	// DryRun resolves, validates and renders in memory but writes
	// nothing.
	DryRun bool
}

// FileResult describes one rendered output file.
type FileResult struct {
	// Path is relative to the output directory, after path rendering.
	Path string

	// Size is the rendered content length in bytes.
	Size int

	// Raw marks files copied verbatim per the manifest's raw globs.
	Raw bool
}

// Result summarizes a completed (or dry) run.
type Result struct {
	TemplateName string
	Values       types.Values
	Excluded     []string
	Files        []FileResult
	OutputDir    string

	// Delimiters are the marker syntax the template used, for callers
	// that verify the output afterwards.
	Delimiters render.Delimiters
}

// Run executes the full pipeline against fsys.
func Run(fsys types.FS, req Request) (*Result, error) {
	logger := logging.GetLogger("generate")

	m, err := manifest.Load(fsys, req.TemplateDir)
	if err != nil {
		return nil, err
	}

	s, err := m.Schema()
	if err != nil {
		return nil, err
	}
	values, err := s.ResolveWith(req.Overrides, req.Prompter)
	if err != nil {
		return nil, err
	}

	compiled, err := m.Rules()
	if err != nil {
		return nil, err
	}
	exclusions := rules.ComputeExclusions(compiled, values)

	tree, err := template.Scan(fsys, req.TemplateDir, manifest.FileNames)
	if err != nil {
		return nil, err
	}

	delims := render.Delimiters{
		PlaceholderOpen:  m.Engine.PlaceholderOpen,
		PlaceholderClose: m.Engine.PlaceholderClose,
		BlockOpen:        m.Engine.BlockOpen,
		BlockClose:       m.Engine.BlockClose,
	}
	renderer := render.New(values, delims)

	result := &Result{
		TemplateName: m.Template.Name,
		Values:       values,
		OutputDir:    req.OutputDir,
		Delimiters:   delims,
	}

	included := partition(tree, exclusions, result)

	// Fail-fast pre-pass: every expression and block structure in every
	// included file must be valid before the first byte is rendered.
	if err := validateFiles(fsys, tree.Root, included, m, renderer); err != nil {
		return nil, err
	}

	outFiles, outDirs, err := renderAll(fsys, tree.Root, included, m, renderer, logger)
	if err != nil {
		return nil, err
	}

	for _, f := range outFiles {
		result.Files = append(result.Files, FileResult{Path: f.path, Size: len(f.content), Raw: f.raw})
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })

	if req.DryRun {
		logger.Info().Int("fileCount", len(result.Files)).Msg("dry run complete, nothing written")
		return result, nil
	}

	if err := materialize(fsys, req.OutputDir, outDirs, outFiles); err != nil {
		return nil, err
	}

	logger.Info().
		Str("template", m.Template.Name).
		Str("output", req.OutputDir).
		Int("fileCount", len(result.Files)).
		Msg("generation complete")
	return result, nil
}

// Validate runs the pipeline up to and including the pre-pass, writing
// nothing. It backs the `stencil validate` command.
func Validate(fsys types.FS, templateDir string, overrides map[string]string) (*Result, error) {
	return Run(fsys, Request{
		TemplateDir: templateDir,
		OutputDir:   "",
		Overrides:   overrides,
		DryRun:      true,
	})
}

// partition splits the tree into included nodes and records excluded
// paths on the result. Excluded nodes are skipped entirely; their
// content is never scanned.
func partition(tree *template.Tree, exclusions rules.ExclusionSet, result *Result) []template.Node {
	var included []template.Node
	for _, node := range tree.Nodes {
		if exclusions.Contains(node.Path) {
			result.Excluded = append(result.Excluded, node.Path)
			continue
		}
		included = append(included, node)
	}
	return included
}

func validateFiles(fsys types.FS, root string, nodes []template.Node, m *manifest.Manifest, renderer *render.Renderer) error {
	for _, node := range nodes {
		if node.IsDir || m.IsRaw(node.Path) {
			continue
		}
		data, err := fsys.ReadFile(path.Join(root, node.Path))
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileRead, "failed to read template file %s", node.Path).
				WithDetail("path", node.Path)
		}
		if err := renderer.ValidateFile(node.Path, data); err != nil {
			return err
		}
	}
	return nil
}

type outFile struct {
	path    string
	content []byte
	raw     bool
}

// renderAll renders every included node in memory: directory and file
// paths through RenderPath, file contents through RenderFile (or a
// verbatim copy for raw files). Two template paths rendering to the
// same output path is a conflict.
func renderAll(fsys types.FS, root string, nodes []template.Node, m *manifest.Manifest, renderer *render.Renderer, logger zerolog.Logger) ([]outFile, []string, error) {
	var files []outFile
	var dirs []string
	seen := make(map[string]string)

	for _, node := range nodes {
		outRel, err := renderer.RenderPath(node.Path)
		if err != nil {
			return nil, nil, err
		}

		if prev, dup := seen[outRel]; dup {
			return nil, nil, errors.Newf(errors.ErrRenderPathConflict,
				"template paths %q and %q both render to %q", prev, node.Path, outRel).
				WithDetail("path", outRel)
		}
		seen[outRel] = node.Path

		if node.IsDir {
			dirs = append(dirs, outRel)
			continue
		}

		data, err := fsys.ReadFile(path.Join(root, node.Path))
		if err != nil {
			return nil, nil, errors.Wrapf(err, errors.ErrFileRead, "failed to read template file %s", node.Path).
				WithDetail("path", node.Path)
		}

		if m.IsRaw(node.Path) {
			files = append(files, outFile{path: outRel, content: data, raw: true})
			continue
		}

		content, err := renderer.RenderFile(node.Path, data)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, outFile{path: outRel, content: content})
		logger.Debug().Str("file", node.Path).Str("output", outRel).Msg("rendered")
	}
	return files, dirs, nil
}

// materialize writes the rendered tree to a staging directory next to
// the output path and renames it into place. Any failure removes the
// staging directory so no partial output survives.
func materialize(fsys types.FS, outputDir string, dirs []string, files []outFile) error {
	if outputDir == "" {
		return errors.New(errors.ErrInvalidInput, "output directory not set")
	}
	if _, err := fsys.Stat(outputDir); err == nil {
		return errors.Newf(errors.ErrOutputExists, "output directory %s already exists", outputDir).
			WithDetail("path", outputDir)
	}

	staging := outputDir + stagingSuffix
	// A crashed earlier run may have left staging behind.
	_ = fsys.RemoveAll(staging)

	cleanup := func(err *errors.StencilError) error {
		_ = fsys.RemoveAll(staging)
		return err
	}

	if err := fsys.MkdirAll(staging, 0o755); err != nil {
		return cleanup(errors.Wrapf(err, errors.ErrDirCreate, "failed to create staging directory %s", staging))
	}
	for _, dir := range dirs {
		if err := fsys.MkdirAll(path.Join(staging, dir), 0o755); err != nil {
			return cleanup(errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory %s", dir))
		}
	}
	for _, f := range files {
		full := path.Join(staging, f.path)
		if err := fsys.MkdirAll(path.Dir(full), 0o755); err != nil {
			return cleanup(errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory for %s", f.path))
		}
		if err := fsys.WriteFile(full, f.content, 0o644); err != nil {
			return cleanup(errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", f.path).
				WithDetail("path", f.path))
		}
	}

	if err := fsys.Rename(staging, outputDir); err != nil {
		return cleanup(errors.Wrapf(err, errors.ErrFileWrite, "failed to move output into place at %s", outputDir).
			WithDetail("path", outputDir))
	}
	return nil
}
