package questionid

import (
	"regexp"
	"strings"
	"testing"

	"github.com/local/examparser/internal/errs"
)

var idRe = regexp.MustCompile(`^[a-z0-9_]+_q\d{2,}_[0-9a-f]{8}$`)

func TestBuildKnownExams(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		sigle   string
		variant string
		year    int
		number  int
		prefix  string
	}{
		{"enem", "ENEM", "ENEM", "2024 - 1º Dia - Caderno Azul", 2024, 5, "enem_2024_d1_azul_q05_"},
		{"enem numbered caderno", "Exame Nacional do Ensino Médio", "ENEM", "2024 - 1º Dia - Caderno 1 - Azul", 2024, 5, "enem_2024_d1_azul_q05_"},
		{"ufu", "Vestibular da Universidade Federal de Uberlândia", "UFU", "2025-2 - 1ª Fase - Tipo 1", 2025, 3, "ufu_2025_2_f1_t1_q03_"},
		{"base fallback", "Fuvest São Paulo", "", "", 2023, 12, "fuvest_sao_paulo_2023_q12_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Build(tt.base, tt.sigle, tt.variant, tt.year, tt.number)
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("Build() = %q, want prefix %q", id, tt.prefix)
			}
			if !idRe.MatchString(id) {
				t.Errorf("Build() = %q does not end in an 8-char hex suffix", id)
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := Build("ENEM", "ENEM", "2024 - 1º Dia - Caderno Azul", 2024, 5)
	b := Build("ENEM", "ENEM", "2024 - 1º Dia - Caderno Azul", 2024, 5)
	if a != b {
		t.Fatalf("ids differ: %q vs %q", a, b)
	}
	if !strings.Contains(a, "_q05_") {
		t.Errorf("id %q lacks q05", a)
	}

	c := Build("ENEM", "ENEM", "2024 - 1º Dia - Caderno Azul", 2024, 6)
	if !strings.HasPrefix(c, "enem_2024_d1_azul_q06_") {
		t.Errorf("changing the number changed the base: %q", c)
	}
	if a[len(a)-8:] == c[len(c)-8:] {
		t.Errorf("hash suffix did not change with number")
	}
}

func TestBuildHashDistinguishesVariantsWithSameCompaction(t *testing.T) {
	a := Build("ENEM", "ENEM", "Caderno Azul", 2024, 1)
	b := Build("ENEM", "ENEM", "Caderno 1 Azul", 2024, 1)
	if a == b {
		t.Errorf("different variants produced the same id %q", a)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Exame Nacional do Ensino Médio": "exame_nacional_do_ensino_medio",
		"  São-Paulo!! 2º ":              "sao_paulo_2",
		"A -- B":                          "a_b",
		"":                                "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompact(t *testing.T) {
	cases := map[string]string{
		"2º Dia":          "d2",
		"1ª Fase":         "f1",
		"Tipo B":          "tb",
		"Caderno Amarelo": "amarelo",
		"Caderno 3 Rosa":  "rosa",
	}
	for in, want := range cases {
		if got := Compact(in); got != want {
			t.Errorf("Compact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractNumber(t *testing.T) {
	cases := map[string]int{
		"QUESTÃO 01":     1,
		"questão 42":     42,
		"Questão nº 7":   7,
		"Question 10":    10,
		"question no. 5": 5,
		"Q. 5":           5,
		"Q5":             5,
		"05":             5,
		"item 12 da":     12,
	}
	for in, want := range cases {
		got, err := ExtractNumber(in)
		if err != nil || got != want {
			t.Errorf("ExtractNumber(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	for _, bad := range []string{"", "   ", "QUESTÃO", "sem número"} {
		if _, err := ExtractNumber(bad); !errs.Is(err, errs.Parse) {
			t.Errorf("ExtractNumber(%q) error = %v, want Parse", bad, err)
		}
	}
}
