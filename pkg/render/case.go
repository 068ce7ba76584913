package render

import (
	"strings"
	"unicode"
)

// caseFilters maps filter names usable in placeholders
// ("{{project-name | snake_case}}") to their transforms.
var caseFilters = map[string]func(string) string{
	"snake_case":        snakeCase,
	"kebab_case":        kebabCase,
	"kebab-case":        kebabCase,
	"pascal_case":       pascalCase,
	"shouty_snake_case": shoutySnakeCase,
	"upper_case":        strings.ToUpper,
	"lower_case":        strings.ToLower,
}

// splitWords breaks an identifier into words on '-', '_', spaces and
// lower-to-upper case boundaries.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == ' ':
			flush()
		case unicode.IsUpper(r) && len(cur) > 0 && !unicode.IsUpper(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return words
}

func snakeCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

func kebabCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-")
}

func pascalCase(s string) string {
	words := splitWords(s)
	var sb strings.Builder
	for _, w := range words {
		lower := strings.ToLower(w)
		r := []rune(lower)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}

func shoutySnakeCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return strings.Join(words, "_")
}
