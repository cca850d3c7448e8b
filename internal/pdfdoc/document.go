// Package pdfdoc opens PDF documents and exposes the per-page text, text
// block positions and embedded images the extraction pipeline works on.
package pdfdoc

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	fitz "github.com/gen2brain/go-fitz"
)

// TextBlock is a line of page text and the Y of its top edge in points.
type TextBlock struct {
	Text string
	Y    float64
}

// PlacedImage is an embedded image and where it is drawn on the page.
type PlacedImage struct {
	Xref   int
	Data   []byte
	Width  int
	Height int
	Ext    string
	Y      float64
}

// PageLayout is the positional content of one page, in document order.
type PageLayout struct {
	Page   int
	Blocks []TextBlock
	Images []PlacedImage
}

// Document abstracts a parsed PDF.
type Document interface {
	NumPage() int
	Text(page int) (string, error)
	Layout(page int) (PageLayout, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) Open(path string) (Document, error) { return f(path) }

// FitzOpener opens documents with MuPDF through go-fitz.
type FitzOpener struct{}

func (FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzDoc{doc: doc, xrefs: newXrefTable()}, nil
}

// DefaultOpener is used when callers do not inject one.
var DefaultOpener Opener = FitzOpener{}

type fitzDoc struct {
	doc   *fitz.Document
	xrefs *xrefTable
}

func (d *fitzDoc) NumPage() int { return d.doc.NumPage() }

func (d *fitzDoc) Text(page int) (string, error) {
	return d.doc.Text(page)
}

// Layout renders the page as MuPDF structured-text HTML and reads line and
// image positions back from it.
func (d *fitzDoc) Layout(page int) (PageLayout, error) {
	markup, err := d.doc.HTML(page, false)
	if err != nil {
		return PageLayout{}, fmt.Errorf("page %d layout: %w", page+1, err)
	}
	layout, err := parseLayout(markup, d.xrefs)
	if err != nil {
		return PageLayout{}, fmt.Errorf("page %d layout: %w", page+1, err)
	}
	layout.Page = page
	return layout, nil
}

func (d *fitzDoc) Close() error { return d.doc.Close() }

// xrefTable assigns document-local ids to image contents so the same asset
// drawn on several pages keeps one identity.
type xrefTable struct {
	mu   sync.Mutex
	ids  map[[sha256.Size]byte]int
	next int
}

func newXrefTable() *xrefTable {
	return &xrefTable{ids: make(map[[sha256.Size]byte]int), next: 1}
}

func (t *xrefTable) lookup(data []byte) int {
	sum := sha256.Sum256(data)
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[sum]; ok {
		return id
	}
	id := t.next
	t.ids[sum] = id
	t.next++
	return id
}

// pixelSize returns the intrinsic pixel dimensions of encoded image data,
// or zeros when no registered decoder understands it.
func pixelSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
