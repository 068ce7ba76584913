// Package render produces output text from template files: placeholder
// tokens are substituted with resolved option values and conditional
// blocks are collapsed to their selected branch.
//
// Rendering is a pure function of the file contents and the resolved
// configuration. Re-running with identical inputs produces byte
// identical output.
package render

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/expr"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/types"
)

// Renderer renders template files against one resolved configuration.
type Renderer struct {
	values types.Values
	delims Delimiters
	logger zerolog.Logger
}

// New creates a renderer for the given configuration and marker syntax.
func New(values types.Values, delims Delimiters) *Renderer {
	return &Renderer{
		values: values,
		delims: delims,
		logger: logging.GetLogger("render"),
	}
}

// RenderFile renders one file's content. Errors carry the file name and
// byte offset of the offending token.
func (r *Renderer) RenderFile(name string, src []byte) ([]byte, error) {
	segs, err := r.parse(name, string(src))
	if err != nil {
		return nil, err
	}
	var out strings.Builder
	out.Grow(len(src))
	if err := r.renderSegments(name, segs, &out); err != nil {
		return nil, err
	}
	return []byte(out.String()), nil
}

// ValidateFile tokenizes and structure-checks a file without producing
// output: every block expression is parsed and every if has its endif,
// including in branches the current configuration would discard. Used
// by the fail-fast pre-pass.
func (r *Renderer) ValidateFile(name string, src []byte) error {
	_, err := r.parse(name, string(src))
	return err
}

// RenderPath substitutes placeholders in a template-relative path, so a
// directory like "src/{{project-name}}" lands under the resolved name.
// Conditional markers make no sense in paths and are rejected.
func (r *Renderer) RenderPath(rel string) (string, error) {
	if strings.Contains(rel, r.delims.BlockOpen) {
		return "", errors.Newf(errors.ErrRenderStrayMarker,
			"path %q contains a conditional block marker", rel).
			WithDetail("path", rel)
	}
	tokens, err := tokenize(rel, r.delims, rel)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, tok := range tokens {
		if tok.isText {
			out.WriteString(tok.text)
			continue
		}
		v, err := r.resolvePlaceholder(rel, tok)
		if err != nil {
			return "", err
		}
		out.WriteString(v)
	}
	return out.String(), nil
}

// segment is one structural element of a parsed file.
type segment interface{}

type textSegment struct {
	text string
}

type placeholderSegment struct {
	tok token
}

type branch struct {
	cond *expr.Expr // nil for else
	body []segment
}

type condSegment struct {
	branches []branch
}

// parse tokenizes the source and builds the nested block structure.
func (r *Renderer) parse(name, src string) ([]segment, error) {
	tokens, err := tokenize(src, r.delims, name)
	if err != nil {
		return nil, err
	}
	applyTrims(tokens)

	p := &segmentParser{tokens: tokens, name: name}
	segs, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		tok := p.peek()
		return nil, errors.Newf(errors.ErrRenderStrayMarker,
			"unexpected %s marker at offset %d without a matching if", markerName(tok.kind), tok.pos).
			WithDetail("file", name).
			WithDetail("offset", tok.pos)
	}
	return segs, nil
}

// applyTrims implements the "-" whitespace control on block markers:
// "{%-" strips whitespace from the preceding text, "-%}" from the
// following text.
func applyTrims(tokens []token) {
	for i := range tokens {
		if !tokens[i].isMarker {
			continue
		}
		if tokens[i].trimLeft && i > 0 && tokens[i-1].isText {
			tokens[i-1].text = strings.TrimRight(tokens[i-1].text, " \t\r\n")
		}
		if tokens[i].trimRight && i+1 < len(tokens) && tokens[i+1].isText {
			tokens[i+1].text = strings.TrimLeft(tokens[i+1].text, " \t\r\n")
		}
	}
}

type segmentParser struct {
	tokens []token
	pos    int
	name   string
}

func (p *segmentParser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *segmentParser) peek() token {
	return p.tokens[p.pos]
}

// parseBody consumes segments until it reaches an elif/else/endif
// belonging to the enclosing block, which it leaves unconsumed.
func (p *segmentParser) parseBody() ([]segment, error) {
	var segs []segment
	for !p.done() {
		tok := p.peek()
		switch {
		case tok.isText:
			p.pos++
			segs = append(segs, textSegment{text: tok.text})
		case !tok.isMarker:
			p.pos++
			segs = append(segs, placeholderSegment{tok: tok})
		case tok.kind == markerIf:
			p.pos++
			cond, err := p.parseCond(tok)
			if err != nil {
				return nil, err
			}
			segs = append(segs, cond)
		default:
			// elif/else/endif: the enclosing parseCond handles it.
			return segs, nil
		}
	}
	return segs, nil
}

// parseCond parses the branches of one conditional block, starting
// right after its if marker.
func (p *segmentParser) parseCond(ifTok token) (condSegment, error) {
	cond := condSegment{}
	current := branch{cond: ifTok.cond}
	sawElse := false

	for {
		body, err := p.parseBody()
		if err != nil {
			return condSegment{}, err
		}
		current.body = body

		if p.done() {
			return condSegment{}, errors.Newf(errors.ErrRenderUnterminatedBlock,
				"if block opened at offset %d has no matching endif", ifTok.pos).
				WithDetail("file", p.name).
				WithDetail("offset", ifTok.pos)
		}

		tok := p.peek()
		p.pos++
		switch tok.kind {
		case markerEndif:
			cond.branches = append(cond.branches, current)
			return cond, nil
		case markerElif:
			if sawElse {
				return condSegment{}, errors.Newf(errors.ErrRenderStrayMarker,
					"elif marker at offset %d follows an else branch", tok.pos).
					WithDetail("file", p.name).
					WithDetail("offset", tok.pos)
			}
			cond.branches = append(cond.branches, current)
			current = branch{cond: tok.cond}
		case markerElse:
			if sawElse {
				return condSegment{}, errors.Newf(errors.ErrRenderStrayMarker,
					"second else marker at offset %d in one block", tok.pos).
					WithDetail("file", p.name).
					WithDetail("offset", tok.pos)
			}
			sawElse = true
			cond.branches = append(cond.branches, current)
			current = branch{cond: nil}
		default:
			return condSegment{}, errors.Newf(errors.ErrInternal,
				"unexpected marker at offset %d", tok.pos)
		}
	}
}

// renderSegments walks the parsed structure and writes output. Exactly
// one branch of each conditional block is rendered: the first if/elif
// whose expression evaluates true, or the else branch, or none.
// Discarded branches are never scanned for placeholders.
func (r *Renderer) renderSegments(name string, segs []segment, out *strings.Builder) error {
	for _, seg := range segs {
		switch s := seg.(type) {
		case textSegment:
			out.WriteString(s.text)
		case placeholderSegment:
			v, err := r.resolvePlaceholder(name, s.tok)
			if err != nil {
				return err
			}
			out.WriteString(v)
		case condSegment:
			for _, b := range s.branches {
				if b.cond != nil && !b.cond.Eval(r.values) {
					continue
				}
				if err := r.renderSegments(name, b.body, out); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// resolvePlaceholder maps a placeholder token to its substitution. The
// token is an option name, optionally followed by a case filter
// ("name | snake_case"). An unknown name or filter is fatal; the
// literal marker text is never emitted.
func (r *Renderer) resolvePlaceholder(name string, tok token) (string, error) {
	base := tok.text
	filter := ""
	if i := strings.Index(base, "|"); i >= 0 {
		filter = strings.TrimSpace(base[i+1:])
		base = strings.TrimSpace(base[:i])
	}

	raw, ok := r.lookup(base)
	if !ok {
		return "", errors.Newf(errors.ErrRenderUnknownPlaceholder,
			"unknown placeholder %q in %s", tok.text, name).
			WithDetail("token", tok.text).
			WithDetail("file", name).
			WithDetail("offset", tok.pos)
	}

	if filter == "" {
		return raw, nil
	}
	fn, ok := caseFilters[filter]
	if !ok {
		return "", errors.Newf(errors.ErrRenderUnknownPlaceholder,
			"unknown filter %q in placeholder %q in %s", filter, tok.text, name).
			WithDetail("token", tok.text).
			WithDetail("file", name).
			WithDetail("offset", tok.pos)
	}
	return fn(raw), nil
}

// lookup resolves an option name, falling back to the derived
// crate_name form (snake_case of project-name) when the template never
// declared it explicitly.
func (r *Renderer) lookup(base string) (string, bool) {
	if v, ok := r.values.Lookup(base); ok {
		return v.String(), true
	}
	if base == "crate_name" {
		if v, ok := r.values.Lookup("project-name"); ok {
			return snakeCase(v.String()), true
		}
	}
	return "", false
}
