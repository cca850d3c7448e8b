// Package extractor pulls page text and question-assigned images out of an
// exam PDF.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/imagefilter"
	"github.com/local/examparser/internal/metrics"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/textproc"
)

// ImageMap maps a canonical question name to the file names of its images.
type ImageMap map[string][]string

// Header is a question header found on a page.
type Header struct {
	Name string
	Y    float64
}

// Mapper assigns embedded images to the question whose header sits above
// them on the same page.
type Mapper struct {
	opener  pdfdoc.Opener
	headers *textproc.Headers
	filter  *imagefilter.Filter
}

func NewMapper(opener pdfdoc.Opener, headers *textproc.Headers, filter *imagefilter.Filter) *Mapper {
	if opener == nil {
		opener = pdfdoc.DefaultOpener
	}
	return &Mapper{opener: opener, headers: headers, filter: filter}
}

// PageHeaders returns the headers among blocks sorted by Y. Repeated
// headers are all kept.
func (m *Mapper) PageHeaders(blocks []pdfdoc.TextBlock) []Header {
	var hs []Header
	for _, b := range blocks {
		if name, ok := m.headers.Find(b.Text); ok {
			hs = append(hs, Header{Name: name, Y: b.Y})
		}
	}
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Y < hs[j].Y })
	return hs
}

// Assign returns the header owning an image whose top is at y: the last
// header with Y <= y. ok is false when y is above every header.
func Assign(hs []Header, y float64) (string, bool) {
	i := sort.Search(len(hs), func(i int) bool { return hs[i].Y > y })
	if i == 0 {
		return "", false
	}
	return hs[i-1].Name, true
}

// MapImages scans every page of pdfPath, writes accepted images into
// outDir as "{question}_img{xref}.{ext}" and returns the mapping. Every
// header seen appears in the map, with an empty list when it owns no image.
func (m *Mapper) MapImages(ctx context.Context, pdfPath, outDir string) (ImageMap, error) {
	const op = "map_images"
	if err := pdfdoc.CheckPDF(pdfPath); err != nil {
		return nil, err
	}
	doc, err := m.opener.Open(pdfPath)
	if err != nil {
		return nil, errs.E(errs.Format, op, err)
	}
	defer doc.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	layouts := make([]pdfdoc.PageLayout, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l, err := doc.Layout(i)
		if err != nil {
			log.Warn().Err(err).Str("pdf", pdfPath).Int("page", i+1).Msg("page layout unavailable")
			continue
		}
		layouts = append(layouts, l)
	}
	counts := occurrences(layouts)

	out := ImageMap{}
	written := map[string]bool{}
	for _, l := range layouts {
		hs := m.PageHeaders(l.Blocks)
		for _, h := range hs {
			if _, ok := out[h.Name]; !ok {
				out[h.Name] = []string{}
			}
		}
		if len(hs) == 0 {
			continue
		}
		seen := map[int]bool{}
		for _, img := range l.Images {
			if seen[img.Xref] {
				continue
			}
			seen[img.Xref] = true

			name, ok := Assign(hs, img.Y)
			if !ok {
				continue
			}
			pass, reason := m.filter.Passes(imagefilter.Record{
				Xref:        img.Xref,
				Data:        img.Data,
				Width:       img.Width,
				Height:      img.Height,
				Ext:         img.Ext,
				Occurrences: counts[img.Xref],
			})
			if !pass {
				metrics.IncImage(string(reason))
				log.Debug().
					Str("question", name).
					Int("xref", img.Xref).
					Int("page", l.Page+1).
					Str("reason", string(reason)).
					Msg("image filtered")
				continue
			}
			metrics.IncImage("passed")

			file := fmt.Sprintf("%s_img%d.%s", name, img.Xref, img.Ext)
			if !written[file] {
				if err := writeOnce(filepath.Join(outDir, file), img.Data); err != nil {
					return nil, err
				}
				written[file] = true
			}
			if !contains(out[name], file) {
				out[name] = append(out[name], file)
			}
		}
	}

	total := 0
	for _, files := range out {
		total += len(files)
	}
	log.Info().
		Str("pdf", pdfPath).
		Int("pages", len(layouts)).
		Int("questions", len(out)).
		Int("images", total).
		Msg("images mapped to questions")
	return out, nil
}

// occurrences counts, per xref, the pages it is drawn on.
func occurrences(layouts []pdfdoc.PageLayout) map[int]int {
	counts := map[int]int{}
	for _, l := range layouts {
		seen := map[int]bool{}
		for _, img := range l.Images {
			if !seen[img.Xref] {
				seen[img.Xref] = true
				counts[img.Xref]++
			}
		}
	}
	return counts
}

func writeOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("write image: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write image: %w", err)
	}
	return f.Close()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
