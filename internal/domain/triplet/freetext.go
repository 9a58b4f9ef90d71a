package triplet

import (
	"strings"
	"unicode"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
)

const (
	wordPunct   = ".-_':()"
	phrasePunct = " .-_':(),"
)

// FreeText is a free-text query turned into scope:na:value triplets.
type FreeText struct {
	Terms string `json:"terms"`
	// Ignored lists scope annotations that followed no term.
	Ignored []string `json:"ignored_terms"`
}

// ParseFreeText parses space-separated words, double-quoted phrases and
// "[scope]" annotations binding to the preceding term. Characters that start
// no token are skipped. Unbalanced quotes or brackets are rejected.
func ParseFreeText(raw string) (FreeText, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "/", "")
	s = strings.ReplaceAll(s, `""`, "")
	if strings.Count(s, `"`)%2 != 0 {
		return FreeText{}, domain.NewParseError(raw, "unbalanced quotation characters")
	}
	if strings.Count(s, "[") != strings.Count(s, "]") {
		return FreeText{}, domain.NewParseError(raw, "unbalanced scope brackets")
	}

	type term struct{ value, scope string }
	var order []string
	terms := make(map[string]*term)
	ignored := []string{}
	last := ""

	bind := func(token string) {
		if _, ok := terms[token]; !ok {
			order = append(order, token)
		}
		terms[token] = &term{value: strings.TrimSpace(token), scope: fieldtable.Unknown}
		last = token
	}

	rs := []rune(s)
	for i := 0; i < len(rs); {
		switch {
		case rs[i] == '"':
			if end, ok := scan(rs, i+1, '"', isPhraseRune); ok {
				bind(string(rs[i+1 : end]))
				i = end + 1
				continue
			}
			i++
		case rs[i] == '[':
			if end, ok := scan(rs, i+1, ']', isScopeRune); ok {
				annotation := string(rs[i : end+1])
				if last != "" {
					terms[last].scope = strings.TrimSpace(string(rs[i+1 : end]))
					last = ""
				} else {
					ignored = append(ignored, annotation)
				}
				i = end + 1
				continue
			}
			i++
		case isWordRune(rs[i]):
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			bind(string(rs[i:j]))
			i = j
		default:
			i++
		}
	}

	parts := make([]string, 0, len(order))
	for _, token := range order {
		t := terms[token]
		parts = append(parts, t.scope+partSep+fieldtable.Unknown+partSep+t.value)
	}
	return FreeText{Terms: strings.Join(parts, tokenSep), Ignored: ignored}, nil
}

// scan returns the index of closer after from when every rune before it
// satisfies allowed and at least one rune precedes it.
func scan(rs []rune, from int, closer rune, allowed func(rune) bool) (int, bool) {
	for j := from; j < len(rs); j++ {
		if rs[j] == closer {
			return j, j > from
		}
		if !allowed(rs[j]) {
			return 0, false
		}
	}
	return 0, false
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func isWordRune(r rune) bool { return isAlnum(r) || strings.ContainsRune(wordPunct, r) }

func isPhraseRune(r rune) bool { return isAlnum(r) || strings.ContainsRune(phrasePunct, r) }

func isScopeRune(r rune) bool { return isAlnum(r) || r == ' ' }
