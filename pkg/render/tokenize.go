package render

import (
	"strings"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/expr"
)

// Delimiters configures the marker syntax. Defaults match the common
// "{{ }}" placeholder and "{% %}" block convention, but templates may
// choose others through their manifest.
type Delimiters struct {
	PlaceholderOpen  string
	PlaceholderClose string
	BlockOpen        string
	BlockClose       string
}

// DefaultDelimiters returns the conventional marker syntax.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		PlaceholderOpen:  "{{",
		PlaceholderClose: "}}",
		BlockOpen:        "{%",
		BlockClose:       "%}",
	}
}

type markerKind int

const (
	markerIf markerKind = iota
	markerElif
	markerElse
	markerEndif
)

func markerName(k markerKind) string {
	switch k {
	case markerIf:
		return "if"
	case markerElif:
		return "elif"
	case markerElse:
		return "else"
	default:
		return "endif"
	}
}

// token is one lexical element of a template file: literal text, a
// placeholder, or a conditional block marker.
type token struct {
	text   string // literal text, or placeholder content
	isText bool

	isMarker  bool
	kind      markerKind
	cond      *expr.Expr
	trimLeft  bool // "{%-": strip whitespace before the marker
	trimRight bool // "-%}": strip whitespace after the marker

	pos int // byte offset in the source file
}

// tokenize scans a file left to right into tokens. All block marker
// expressions are parsed here, so a malformed expression is reported
// even when it sits in a branch the current configuration would never
// take.
func tokenize(src string, d Delimiters, name string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(src) {
		pIdx := strings.Index(src[pos:], d.PlaceholderOpen)
		bIdx := strings.Index(src[pos:], d.BlockOpen)

		next, isBlock := nearestMarker(pIdx, bIdx, d)
		if next < 0 {
			tokens = append(tokens, token{text: src[pos:], isText: true, pos: pos})
			break
		}
		if next > 0 {
			tokens = append(tokens, token{text: src[pos : pos+next], isText: true, pos: pos})
		}
		start := pos + next

		if isBlock {
			tok, end, err := lexBlockMarker(src, start, d, name)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			pos = end
		} else {
			tok, end, err := lexPlaceholder(src, start, d, name)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			pos = end
		}
	}
	return tokens, nil
}

// nearestMarker picks the earlier of the two marker openings. When one
// opening delimiter is a prefix of the other and both match at the same
// offset, the longer one wins.
func nearestMarker(pIdx, bIdx int, d Delimiters) (idx int, isBlock bool) {
	switch {
	case pIdx < 0 && bIdx < 0:
		return -1, false
	case pIdx < 0:
		return bIdx, true
	case bIdx < 0:
		return pIdx, false
	case bIdx < pIdx:
		return bIdx, true
	case pIdx < bIdx:
		return pIdx, false
	default:
		return pIdx, len(d.BlockOpen) > len(d.PlaceholderOpen)
	}
}

func lexPlaceholder(src string, start int, d Delimiters, name string) (token, int, error) {
	contentStart := start + len(d.PlaceholderOpen)
	rel := strings.Index(src[contentStart:], d.PlaceholderClose)
	if rel < 0 {
		return token{}, 0, errors.Newf(errors.ErrRenderUnterminatedBlock,
			"placeholder opened at offset %d is never closed", start).
			WithDetail("file", name).
			WithDetail("offset", start)
	}
	content := strings.TrimSpace(src[contentStart : contentStart+rel])
	if content == "" {
		return token{}, 0, errors.Newf(errors.ErrRenderUnknownPlaceholder,
			"empty placeholder at offset %d", start).
			WithDetail("file", name).
			WithDetail("offset", start)
	}
	end := contentStart + rel + len(d.PlaceholderClose)
	return token{text: content, pos: start}, end, nil
}

func lexBlockMarker(src string, start int, d Delimiters, name string) (token, int, error) {
	contentStart := start + len(d.BlockOpen)
	rel := strings.Index(src[contentStart:], d.BlockClose)
	if rel < 0 {
		return token{}, 0, errors.Newf(errors.ErrRenderUnterminatedBlock,
			"block marker opened at offset %d is never closed", start).
			WithDetail("file", name).
			WithDetail("offset", start)
	}
	content := src[contentStart : contentStart+rel]
	end := contentStart + rel + len(d.BlockClose)

	tok := token{isMarker: true, pos: start}
	if strings.HasPrefix(content, "-") {
		tok.trimLeft = true
		content = content[1:]
	}
	if strings.HasSuffix(content, "-") {
		tok.trimRight = true
		content = content[:len(content)-1]
	}
	content = strings.TrimSpace(content)

	keyword := content
	rest := ""
	if i := strings.IndexAny(content, " \t"); i >= 0 {
		keyword = content[:i]
		rest = strings.TrimSpace(content[i:])
	}

	switch keyword {
	case "if", "elif":
		tok.kind = markerIf
		if keyword == "elif" {
			tok.kind = markerElif
		}
		if rest == "" {
			return token{}, 0, errors.Newf(errors.ErrRuleMalformedExpr,
				"%s marker at offset %d has no condition", keyword, start).
				WithDetail("file", name).
				WithDetail("offset", start)
		}
		cond, err := expr.Parse(rest)
		if err != nil {
			return token{}, 0, errors.Wrapf(err, errors.ErrRuleMalformedExpr,
				"%s marker at offset %d", keyword, start).
				WithDetail("file", name).
				WithDetail("offset", start)
		}
		tok.cond = cond
	case "else":
		if rest != "" {
			return token{}, 0, errors.Newf(errors.ErrRuleMalformedExpr,
				"else marker at offset %d carries unexpected content %q", start, rest).
				WithDetail("file", name).
				WithDetail("offset", start)
		}
		tok.kind = markerElse
	case "endif":
		if rest != "" {
			return token{}, 0, errors.Newf(errors.ErrRuleMalformedExpr,
				"endif marker at offset %d carries unexpected content %q", start, rest).
				WithDetail("file", name).
				WithDetail("offset", start)
		}
		tok.kind = markerEndif
	default:
		return token{}, 0, errors.Newf(errors.ErrRuleMalformedExpr,
			"unknown block keyword %q at offset %d", keyword, start).
			WithDetail("file", name).
			WithDetail("offset", start)
	}
	return tok, end, nil
}
