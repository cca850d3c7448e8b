// Package questionid derives stable question identifiers such as
// "enem_2024_d1_azul_q05_3fa2c1d9" from exam metadata.
package questionid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/local/examparser/internal/errs"
)

var (
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9_ ]`)
	spacesRe     = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// Variant labels are long ("2024 - 1º Dia - Caderno 1 - Azul"); these rules
// shorten the common parts. Order matters.
var compactions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\d+)o?_dia`), "d${1}"},
	{regexp.MustCompile(`(\d+)a?_fase`), "f${1}"},
	{regexp.MustCompile(`tipo_(\w+)`), "t${1}"},
	{regexp.MustCompile(`caderno_\d+(\w+)`), "${1}"},
	{regexp.MustCompile(`caderno_(\w+)`), "${1}"},
}

// numberPatterns run in order, most specific first, over an accent-free
// lowercase label.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`quest[ao]+\s*(?:n[o.]?\s*)?(\d+)`),
	regexp.MustCompile(`question\s*(?:no?\.?\s*)?(\d+)`),
	regexp.MustCompile(`q\.?\s*(\d+)`),
	regexp.MustCompile(`(\d+)`),
}

// Build returns "{sigle-or-base}_{year}[_{variant}]_qNN_{hash8}". The hash
// covers base, year, the uncompacted variant and the number, so ids stay
// unique even when two variants compact to the same label.
func Build(base, sigle, variant string, year, number int) string {
	name := sigle
	if strings.TrimSpace(name) == "" {
		name = base
	}
	baseNorm := Normalize(name)
	variantNorm := stripYear(Normalize(variant), year)
	compact := stripYear(Compact(variant), year)

	parts := []string{baseNorm, strconv.Itoa(year)}
	if compact != "" {
		parts = append(parts, compact)
	}
	parts = append(parts, fmt.Sprintf("q%02d", number))

	raw := fmt.Sprintf("%s_%d_%s_%d", baseNorm, year, variantNorm, number)
	sum := sha256.Sum256([]byte(raw))
	return strings.Join(parts, "_") + "_" + hex.EncodeToString(sum[:])[:8]
}

// Normalize strips accents and non-ASCII, lowercases, and joins words with
// single underscores.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(asciiFold(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = nonSlugRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Compact normalizes a variant label and applies the shortening rules.
func Compact(variant string) string {
	v := Normalize(variant)
	for _, c := range compactions {
		v = c.re.ReplaceAllString(v, c.repl)
	}
	v = underscoreRe.ReplaceAllString(v, "_")
	return strings.Trim(v, "_")
}

// ExtractNumber reads the question number out of a label such as
// "QUESTÃO 05", "Questão nº 7", "Question 10", "Q. 5" or "12".
func ExtractNumber(label string) (int, error) {
	const op = "extract_question_number"
	if strings.TrimSpace(label) == "" {
		return 0, errs.Errorf(errs.Parse, op, "label is empty")
	}
	text := strings.ToLower(strings.TrimSpace(asciiFold(label)))
	for _, re := range numberPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, errs.E(errs.Parse, op, err)
			}
			return n, nil
		}
	}
	return 0, errs.Errorf(errs.Parse, op, "no question number found in %q", label)
}

func stripYear(v string, year int) string {
	y := strconv.Itoa(year)
	if rest, ok := strings.CutPrefix(v, y); ok {
		return strings.TrimPrefix(rest, "_")
	}
	return v
}

// asciiFold decomposes s, drops combining marks and then anything left
// outside ASCII ("º", "ª").
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
}
