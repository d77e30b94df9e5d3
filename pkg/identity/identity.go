// Package identity turns raw meeting display names into comparable identities.
//
// A display name such as "10001 - Jane Doe" carries a five-digit student ID;
// names without one are accepted but flagged, which later drives the naming
// penalty.
package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// IDLength is the number of digits in a student ID.
const IDLength = 5

// Provenance records whether a display name followed the "<ID> <name>" convention.
type Provenance string

const (
	// WellFormed means the display name started with a student ID.
	WellFormed Provenance = "well_formed"

	// Flagged means no student ID was found in the display name.
	Flagged Provenance = "flagged"
)

var (
	reIDPrefix  = regexp.MustCompile(`^\s*(\d{5})[\s\-_]+(.+?)\s*$`)
	reIDAlone   = regexp.MustCompile(`^\s*(\d{5})\s*$`)
	reIDAny     = regexp.MustCompile(`\d{5}`)
	reParens    = regexp.MustCompile(`\([^)]*\)`)
	reSeparator = regexp.MustCompile(`[_\-]`)
	reNonLetter = regexp.MustCompile(`[^a-z]+`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// Name is a parsed display name.
type Name struct {
	// Raw is the display name exactly as it appeared in the log.
	Raw string

	// ID is the extracted student ID, empty when none was present.
	ID string

	// Clean is the display name with the ID prefix removed.
	Clean string

	// Provenance tells whether the name was well formed.
	Provenance Provenance
}

// Parse extracts the student ID and clean name from a raw display name.
func Parse(raw string) Name {
	if m := reIDPrefix.FindStringSubmatch(raw); m != nil {
		return Name{
			Raw:        raw,
			ID:         m[1],
			Clean:      strings.TrimSpace(m[2]),
			Provenance: WellFormed,
		}
	}
	return Name{
		Raw:        raw,
		Clean:      strings.TrimSpace(raw),
		Provenance: Flagged,
	}
}

// Flagged reports whether the name lacked a student ID.
func (n Name) Flagged() bool {
	return n.Provenance == Flagged
}

// Key returns the identity key for this name.
func (n Name) Key() Key {
	if n.ID != "" {
		return IDKey(n.ID)
	}
	return NameKey(n.Clean)
}

// Canonical reduces a name to a comparison-safe form: lowercase letters
// separated by single spaces, with diacritics folded, parenthetical suffixes,
// five-digit runs, and all other non-letters removed.
func Canonical(s string) string {
	s = foldDiacritics(strings.ToLower(s))
	s = reParens.ReplaceAllString(s, " ")
	s = reIDAny.ReplaceAllString(s, " ")
	s = reSeparator.ReplaceAllString(s, " ")
	s = reNonLetter.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeSpaces lowercases s, collapses whitespace runs and trims it.
func NormalizeSpaces(s string) string {
	return reSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// ExtractID returns the first five-digit run in s, or "" if there is none.
func ExtractID(s string) string {
	return reIDAny.FindString(s)
}

// IsID reports whether s is a bare five-digit ID, ignoring surrounding spaces.
func IsID(s string) bool {
	return reIDAlone.MatchString(s)
}

// SameCandidate reports whether two names may refer to the same person.
func SameCandidate(a, b string) bool {
	ca := Canonical(a)
	return ca != "" && ca == Canonical(b)
}

func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
