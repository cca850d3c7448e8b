// Package pdfdoctest provides an in-memory pdfdoc.Document for tests.
package pdfdoctest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/local/examparser/internal/pdfdoc"
)

// Page is the canned content of one fake page.
type Page struct {
	Text   string
	Blocks []pdfdoc.TextBlock
	Images []pdfdoc.PlacedImage
}

// Doc is an in-memory Document.
type Doc struct {
	Pages []Page

	mu     sync.Mutex
	closed int
}

func (d *Doc) NumPage() int { return len(d.Pages) }

func (d *Doc) Text(page int) (string, error) {
	if page < 0 || page >= len(d.Pages) {
		return "", fmt.Errorf("page %d out of range", page)
	}
	return d.Pages[page].Text, nil
}

func (d *Doc) Layout(page int) (pdfdoc.PageLayout, error) {
	if page < 0 || page >= len(d.Pages) {
		return pdfdoc.PageLayout{}, fmt.Errorf("page %d out of range", page)
	}
	p := d.Pages[page]
	return pdfdoc.PageLayout{Page: page, Blocks: p.Blocks, Images: p.Images}, nil
}

func (d *Doc) Close() error {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return nil
}

// Closed reports how many times Close was called.
func (d *Doc) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Opener serves fake documents by path.
type Opener map[string]*Doc

func (o Opener) Open(path string) (pdfdoc.Document, error) {
	d, ok := o[path]
	if !ok {
		return nil, fmt.Errorf("no fake document for %s", path)
	}
	return d, nil
}

// TextPages builds a Doc whose pages carry only text.
func TextPages(texts ...string) *Doc {
	d := &Doc{}
	for _, t := range texts {
		d.Pages = append(d.Pages, Page{Text: t})
	}
	return d
}

// WritePDFStub writes a file with a .pdf name and PDF magic bytes so it
// passes pdfdoc.CheckPDF. Content is served by an Opener, not parsed.
func WritePDFStub(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%stub\n"), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}
