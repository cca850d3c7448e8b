package pdfdoc_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/pdfdoc/pdfdoctest"
)

var markerRe = regexp.MustCompile(`--- Page (\d+) ---`)

func newExtractor(t *testing.T, pages int) (*pdfdoc.TextExtractor, string, *pdfdoctest.Doc) {
	t.Helper()
	path := pdfdoctest.WritePDFStub(t, t.TempDir(), "exam.pdf")
	texts := make([]string, pages)
	for i := range texts {
		texts[i] = "page text " + strconv.Itoa(i+1)
	}
	doc := pdfdoctest.TextPages(texts...)
	return pdfdoc.NewTextExtractor(pdfdoctest.Opener{path: doc}), path, doc
}

func TestExtractTextMarkersForEveryValidRange(t *testing.T) {
	const total = 6
	ex, path, doc := newExtractor(t, total)

	for s := 0; s < total; s++ {
		for e := s + 1; e <= total; e++ {
			text, err := ex.ExtractText(path, &s, &e, true)
			if err != nil {
				t.Fatalf("ExtractText(%d, %d): %v", s, e, err)
			}
			found := markerRe.FindAllStringSubmatch(text, -1)
			if len(found) != e-s {
				t.Fatalf("range [%d,%d): got %d markers, want %d", s, e, len(found), e-s)
			}
			for i, m := range found {
				if n, _ := strconv.Atoi(m[1]); n != s+i+1 {
					t.Fatalf("range [%d,%d): marker %d is page %d, want %d", s, e, i, n, s+i+1)
				}
			}
		}
	}
	if doc.Closed() == 0 {
		t.Error("document was never closed")
	}
}

func TestExtractTextDegenerateRanges(t *testing.T) {
	ex, path, _ := newExtractor(t, 3)
	cases := [][2]int{{2, 2}, {3, 1}, {5, 9}}
	for _, c := range cases {
		s, e := c[0], c[1]
		text, err := ex.ExtractText(path, &s, &e, true)
		if err != nil || text != "" {
			t.Errorf("ExtractText(%d, %d) = %q, %v; want empty, nil", s, e, text, err)
		}
	}
}

func TestExtractTextWithoutMarkers(t *testing.T) {
	ex, path, _ := newExtractor(t, 2)
	text, err := ex.ExtractText(path, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := "page text 1page text 2"; text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestExtractTextErrors(t *testing.T) {
	dir := t.TempDir()
	ex := pdfdoc.NewTextExtractor(pdfdoctest.Opener{})

	_, err := ex.ExtractText(filepath.Join(dir, "missing.pdf"), nil, nil, true)
	if !errs.Is(err, errs.NotFound) {
		t.Errorf("missing file: got %v, want NotFound", err)
	}

	txt := filepath.Join(dir, "exam.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ex.ExtractText(txt, nil, nil, true)
	if !errs.Is(err, errs.Format) {
		t.Errorf("wrong extension: got %v, want Format", err)
	}

	fake := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(fake, []byte("PK\x03\x04 not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ex.ExtractText(fake, nil, nil, true)
	if !errs.Is(err, errs.Format) {
		t.Errorf("wrong magic: got %v, want Format", err)
	}
}

func TestPageCountFallsBackToOpener(t *testing.T) {
	path := pdfdoctest.WritePDFStub(t, t.TempDir(), "exam.pdf")
	n, err := pdfdoc.PageCount(path, pdfdoctest.Opener{path: pdfdoctest.TextPages("a", "b", "c")})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("PageCount = %d, want 3", n)
	}
}

func TestIsPDF(t *testing.T) {
	if !pdfdoc.IsPDF([]byte("%PDF-1.7\n...")) {
		t.Error("PDF magic not detected")
	}
	if pdfdoc.IsPDF([]byte("GIF89a")) {
		t.Error("GIF detected as PDF")
	}
}
