// Package textproc cleans extracted exam text and cuts it into per-question
// chunks.
package textproc

import (
	"strings"
	"unicode"

	"github.com/local/examparser/internal/config"
)

// Processor removes extraction artifacts and normalizes whitespace.
type Processor struct {
	minRepeats int
}

// NewProcessor builds a Processor. A unit must repeat at least
// cfg.CleanMinRepeats more times after its first occurrence to be collapsed.
func NewProcessor(cfg config.QuestionConfig) *Processor {
	n := cfg.CleanMinRepeats
	if n <= 0 {
		n = 3
	}
	return &Processor{minRepeats: n}
}

// CleanText collapses repeated runs and then trims every line, dropping the
// empty ones.
func (p *Processor) CleanText(text string) string {
	return NormalizeLines(CollapseRepeats(text, p.minRepeats))
}

// NormalizeLines trims each line and removes blank lines.
func NormalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// CollapseRepeats replaces a unit followed by at least minRepeats copies of
// itself (case-insensitive, each copy optionally preceded by one whitespace
// character) with a single unit. Units never span a line break. At each
// position the shortest repeating unit wins, and as many copies as possible
// are consumed. The result is trimmed.
func CollapseRepeats(text string, minRepeats int) string {
	r := []rune(text)
	out := make([]rune, 0, len(r))
	for i := 0; i < len(r); {
		if end, unit, ok := repeatAt(r, i, minRepeats); ok {
			out = append(out, r[i:i+unit]...)
			i = end
			continue
		}
		out = append(out, r[i])
		i++
	}
	return strings.TrimSpace(string(out))
}

func repeatAt(r []rune, i, minRepeats int) (end, unit int, ok bool) {
	for l := 1; i+l <= len(r); l++ {
		if r[i+l-1] == '\n' {
			return 0, 0, false
		}
		if i+l*(minRepeats+1) > len(r) {
			return 0, 0, false
		}
		pos, n := i+l, 0
		for {
			if pos < len(r) && unicode.IsSpace(r[pos]) && unitAt(r, i, l, pos+1) {
				pos += 1 + l
			} else if unitAt(r, i, l, pos) {
				pos += l
			} else {
				break
			}
			n++
		}
		if n >= minRepeats {
			return pos, l, true
		}
	}
	return 0, 0, false
}

// unitAt reports whether r[at:at+l] case-folds to r[start:start+l].
func unitAt(r []rune, start, l, at int) bool {
	if at+l > len(r) {
		return false
	}
	for k := 0; k < l; k++ {
		a, b := r[start+k], r[at+k]
		if a != b && unicode.ToLower(a) != unicode.ToLower(b) {
			return false
		}
	}
	return true
}
