// Package verify inspects a generated project tree for artifacts the
// renderer should never leave behind: unrendered markers and structured
// files that no longer parse.
package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/render"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
	"github.com/beevik/etree"
	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Issue is one problem found in the generated tree.
type Issue struct {
	Path   string
	Code   errors.ErrorCode
	Detail string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Detail)
}

// Report collects the outcome of a verification pass.
type Report struct {
	Checked int
	Issues  []Issue
}

// OK reports whether the tree passed every check.
func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

// Err collapses the report into a single error, nil when clean.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	first := r.Issues[0]
	return errors.New(first.Code, first.String()).
		WithDetail("issues", len(r.Issues))
}

// Run walks the tree rooted at dir and checks every regular file.
// Structured formats (JSON, TOML, YAML, XML) must parse; text files
// must not contain leftover markers. Binary files are skipped.
func Run(fsys types.FS, dir string, delims render.Delimiters) (*Report, error) {
	logger := logging.GetLogger("verify")

	report := &Report{}
	if err := walk(fsys, dir, "", delims, report); err != nil {
		return nil, err
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		return report.Issues[i].Path < report.Issues[j].Path
	})

	logger.Debug().
		Int("checked", report.Checked).
		Int("issues", len(report.Issues)).
		Str("dir", dir).
		Msg("verification finished")
	return report, nil
}

func walk(fsys types.FS, dir, rel string, delims render.Delimiters, report *Report) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileRead, "reading directory %q", dir)
	}
	for _, entry := range entries {
		childRel := path.Join(rel, entry.Name())
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walk(fsys, child, childRel, delims, report); err != nil {
				return err
			}
			continue
		}
		data, err := fsys.ReadFile(child)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileRead, "reading %q", child)
		}
		checkFile(childRel, data, delims, report)
	}
	return nil
}

func checkFile(rel string, data []byte, delims render.Delimiters, report *Report) {
	if bytes.IndexByte(data, 0) >= 0 {
		return
	}
	report.Checked++

	if issue := checkFormat(rel, data); issue != nil {
		report.Issues = append(report.Issues, *issue)
		return
	}
	if off := markerOffset(data, delims); off >= 0 {
		report.Issues = append(report.Issues, Issue{
			Path:   rel,
			Code:   errors.ErrVerifyUnrendered,
			Detail: fmt.Sprintf("unrendered marker at offset %d", off),
		})
	}
}

// checkFormat parses structured files by extension. A parse failure is
// reported as an issue, not a fatal error, so one bad file does not
// hide the rest of the tree.
func checkFormat(rel string, data []byte) *Issue {
	var err error
	switch strings.ToLower(path.Ext(rel)) {
	case ".json":
		var v interface{}
		err = json.Unmarshal(data, &v)
	case ".toml":
		var v map[string]interface{}
		err = gotoml.Unmarshal(data, &v)
	case ".yaml", ".yml":
		var v interface{}
		err = yaml.Unmarshal(data, &v)
	case ".xml":
		doc := etree.NewDocument()
		err = doc.ReadFromBytes(data)
	default:
		return nil
	}
	if err == nil {
		return nil
	}
	return &Issue{
		Path:   rel,
		Code:   errors.ErrVerifyFormat,
		Detail: fmt.Sprintf("invalid %s: %v", strings.TrimPrefix(path.Ext(rel), "."), err),
	}
}

// markerOffset returns the byte offset of the first leftover marker, or
// -1 when the file is clean.
func markerOffset(data []byte, delims render.Delimiters) int {
	s := string(data)
	off := -1
	for _, open := range []string{delims.PlaceholderOpen, delims.BlockOpen} {
		if open == "" {
			continue
		}
		if i := strings.Index(s, open); i >= 0 && (off < 0 || i < off) {
			off = i
		}
	}
	return off
}
