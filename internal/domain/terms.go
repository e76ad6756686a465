package domain

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	wordTermRE     = regexp.MustCompile(`^\w+$`)
	termDelimiters = regexp.MustCompile(`[\n,]+`)
)

// IsWordTerm reports whether term consists only of word characters.
func IsWordTerm(term string) bool {
	return wordTermRE.MatchString(term)
}

// NormalizeTerms trims and lower-cases terms, drops empty and non-word terms,
// and removes duplicates keeping the first occurrence.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || !IsWordTerm(term) {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// ParseStringArrayConfig turns a config value into a normalized term list.
// Lists are normalized directly. Strings are parsed as a JSON array when they
// look like one, and otherwise split on commas and newlines. Every other
// variant yields an empty list.
func ParseStringArrayConfig(v ConfigValue) []string {
	switch v.kind {
	case ConfigStringList:
		return NormalizeTerms(v.strs)
	case ConfigNumberList:
		terms := make([]string, 0, len(v.nums))
		for _, n := range v.nums {
			terms = append(terms, formatNumber(n))
		}
		return NormalizeTerms(terms)
	case ConfigString:
		trimmed := strings.TrimSpace(v.str)
		if trimmed == "" {
			return []string{}
		}
		if strings.HasPrefix(trimmed, "[") {
			var items []json.RawMessage
			if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
				return NormalizeTerms(stringifyJSON(items))
			}
		}
		return NormalizeTerms(termDelimiters.Split(trimmed, -1))
	}
	return []string{}
}

// FormatStringArrayConfig renders terms in the editable comma separated form.
func FormatStringArrayConfig(terms []string) string {
	return strings.Join(terms, ", ")
}

// ParseStringConfig returns the trimmed string held by v, if any.
func ParseStringConfig(v ConfigValue) (string, bool) {
	s, ok := v.AsString()
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
