package pdfdoc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/errs"
)

const pdfMIME = "application/pdf"

// PageMarker is the separator written before each page's text.
func PageMarker(page int) string {
	return fmt.Sprintf("\n\n --- Page %d --- \n\n", page)
}

// CheckPDF verifies that path exists, carries a .pdf extension and starts
// with PDF magic bytes.
func CheckPDF(path string) error {
	const op = "check_pdf"
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Errorf(errs.NotFound, op, "file not found: %s", path)
		}
		return errs.E(errs.NotFound, op, err)
	}
	if info.IsDir() {
		return errs.Errorf(errs.NotFound, op, "not a file: %s", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return errs.Errorf(errs.Format, op, "file must be a PDF: %s", path)
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return errs.E(errs.Format, op, fmt.Errorf("failed to detect file type: %w", err))
	}
	if !mtype.Is(pdfMIME) {
		return errs.Errorf(errs.Format, op, "%s is %s, not a PDF", path, mtype.String())
	}
	return nil
}

// IsPDF reports whether data sniffs as a PDF document.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(pdfMIME)
}

// TextExtractor produces page-tagged plain text for page ranges.
type TextExtractor struct {
	opener Opener
}

// NewTextExtractor builds an extractor; nil uses DefaultOpener.
func NewTextExtractor(o Opener) *TextExtractor {
	if o == nil {
		o = DefaultOpener
	}
	return &TextExtractor{opener: o}
}

// ExtractText concatenates the text of pages [start, end) of the PDF at path.
// With markers set, each page is preceded by PageMarker(page+1). A degenerate
// range yields "" and no error.
func (e *TextExtractor) ExtractText(path string, start, end *int, markers bool) (string, error) {
	if err := CheckPDF(path); err != nil {
		return "", err
	}
	doc, err := e.opener.Open(path)
	if err != nil {
		return "", errs.E(errs.Format, "extract_text", err)
	}
	defer doc.Close()

	s, en, empty := ResolvePageRange(start, end, doc.NumPage())
	if empty {
		return "", nil
	}

	var b strings.Builder
	for i := s; i < en; i++ {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Str("pdf", path).Int("page", i+1).Msg("failed to extract text from page")
			text = ""
		}
		if markers {
			b.WriteString(PageMarker(i + 1))
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// PageCount returns the page count of the PDF at path. pdfcpu is tried first;
// documents it rejects fall back to opening with o.
func PageCount(path string, o Opener) (int, error) {
	if err := CheckPDF(path); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(path)
	if err == nil {
		return n, nil
	}
	log.Debug().Err(err).Str("pdf", path).Msg("pdfcpu page count failed; falling back to MuPDF")
	if o == nil {
		o = DefaultOpener
	}
	doc, oerr := o.Open(path)
	if oerr != nil {
		return 0, errs.E(errs.Format, "page_count", fmt.Errorf("pdf page count failed: %w", oerr))
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
