package pipeline

import (
	"strings"
	"unicode"

	"card-scanner/internal/descriptor"
	"card-scanner/internal/identify"
)

// NameBarRegion is where the card name is printed on a portrait crop.
var NameBarRegion = descriptor.Region{Top: 0.55, Bottom: 0.63, Left: 0.08, Right: 0.92}

// minNameLetters is the shortest normalised text that may confirm a name.
const minNameLetters = 4

// NormalizeName lower-cases s and keeps only its letters.
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ConfirmByName marks candidates whose name matches text read from the card
// and moves them ahead of the rest, keeping relative order otherwise.
// A match is either normalised string containing the other, both being at
// least four letters long. Similarities are untouched.
func ConfirmByName(text string, candidates []identify.Candidate) []identify.Candidate {
	read := NormalizeName(text)
	out := make([]identify.Candidate, 0, len(candidates))
	var rest []identify.Candidate

	for _, c := range candidates {
		name := NormalizeName(c.Entry.Metadata.Name)
		c.NameConfirmed = len(read) >= minNameLetters && len(name) >= minNameLetters &&
			(strings.Contains(read, name) || strings.Contains(name, read))
		if c.NameConfirmed {
			out = append(out, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(out, rest...)
}
