// Package dedup keeps every question shown in one session distinct by
// normalized text.
package dedup

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	nextRe = regexp.MustCompile(`\(\s*next\s*\)`)
	altRe  = regexp.MustCompile(`\(\s*alt\b`)
	// altSuffixRe matches a trailing variant suffix added by EnsureUnique.
	altSuffixRe = regexp.MustCompile(`\s*\(alt \d+\)$`)
)

// Normalize lowercases text, strips "(next)" and "(alt ...)" markers, drops
// every non-alphanumeric rune, collapses whitespace and trims. Only the marker
// word of an "(alt N)" suffix is removed; its numeral survives, so numbered
// variants stay distinct.
func Normalize(text string) string {
	s := cases.Lower(language.Und).String(norm.NFKC.String(text))
	s = nextRe.ReplaceAllString(s, " ")
	s = altRe.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// IsVariant reports whether text ends in a numbered " (alt N)" suffix.
func IsVariant(text string) bool {
	return altSuffixRe.MatchString(text)
}

// Tracker is the per-session set of normalized question texts already shown.
// It is not safe for concurrent use; the session controller owns it.
type Tracker struct {
	seen      map[string]struct{}
	openEnded []string
	choice    []string
}

// NewTracker builds a tracker with the generic prompts tried, in order,
// before falling back to a numbered variant.
func NewTracker(openEnded, multipleChoice []string) *Tracker {
	return &Tracker{
		seen:      make(map[string]struct{}),
		openEnded: openEnded,
		choice:    multipleChoice,
	}
}

// Seen reports whether text, once normalized, was already shown.
func (t *Tracker) Seen(text string) bool {
	_, ok := t.seen[Normalize(text)]
	return ok
}

// Mark records text as shown.
func (t *Tracker) Mark(text string) {
	t.seen[Normalize(text)] = struct{}{}
}

// Len is the number of distinct texts shown.
func (t *Tracker) Len() int {
	return len(t.seen)
}

// EnsureUnique returns candidate when it is new, otherwise the first unseen
// generic prompt for the question kind, otherwise candidate with an
// " (alt N)" suffix. The second return reports a rewrite. The result is not
// marked; call Mark once it is actually shown.
func (t *Tracker) EnsureUnique(candidate string, isMultipleChoice bool) (string, bool) {
	if !t.Seen(candidate) {
		return candidate, false
	}

	prompts := t.openEnded
	if isMultipleChoice {
		prompts = t.choice
	}
	for _, p := range prompts {
		if !t.Seen(p) {
			return p, true
		}
	}

	base := strings.TrimSpace(altSuffixRe.ReplaceAllString(candidate, ""))
	for n := 1; ; n++ {
		variant := base + " (alt " + strconv.Itoa(n) + ")"
		if !t.Seen(variant) {
			return variant, true
		}
	}
}
