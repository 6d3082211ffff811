// Package filter masks disallowed words in outgoing chat text.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	mask string
}

// Filter replaces whole-word, case-insensitive occurrences of each
// configured word with asterisks of the same length. The word list is
// fixed at construction; Apply is safe for concurrent use.
type Filter struct {
	rules []rule
}

func New(words []string) *Filter {
	rules := make([]rule, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re := regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(w)))
		rules = append(rules, rule{re: re, mask: strings.Repeat("*", len(w))})
	}
	return &Filter{rules: rules}
}

// Apply returns text with every disallowed word masked.
func (f *Filter) Apply(text string) string {
	for _, r := range f.rules {
		text = r.re.ReplaceAllString(text, r.mask)
	}
	return text
}

// Contains reports whether text includes any disallowed word.
func (f *Filter) Contains(text string) bool {
	for _, r := range f.rules {
		if r.re.MatchString(text) {
			return true
		}
	}
	return false
}
