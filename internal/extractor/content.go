package extractor

import (
	"context"
	"os"

	"github.com/local/examparser/internal/imagefilter"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/textproc"
)

// Content is the raw material of a run: page-marked text and the image map.
type Content struct {
	Text   string
	Images ImageMap
}

// Extractor combines text extraction and image mapping.
type Extractor struct {
	text    *pdfdoc.TextExtractor
	mapper  *Mapper
	chunker *textproc.Chunker
}

func New(opener pdfdoc.Opener, chunker *textproc.Chunker, filter *imagefilter.Filter) *Extractor {
	if opener == nil {
		opener = pdfdoc.DefaultOpener
	}
	return &Extractor{
		text:    pdfdoc.NewTextExtractor(opener),
		mapper:  NewMapper(opener, chunker.Headers(), filter),
		chunker: chunker,
	}
}

// Mapper exposes the image mapper.
func (e *Extractor) Mapper() *Mapper { return e.mapper }

// ExtractText returns the exam text with page markers, followed by the
// separator and the answer-key text when answerKeyPath names an existing
// file.
func (e *Extractor) ExtractText(examPath, answerKeyPath string) (string, error) {
	text, err := e.text.ExtractText(examPath, nil, nil, true)
	if err != nil {
		return "", err
	}
	if answerKeyPath == "" {
		return text, nil
	}
	if _, err := os.Stat(answerKeyPath); err != nil {
		return text, nil
	}
	key, err := e.text.ExtractText(answerKeyPath, nil, nil, true)
	if err != nil {
		return "", err
	}
	return e.chunker.JoinAnswerKey(text, key), nil
}

// ExtractContent extracts text from both documents and maps the exam's
// images into imagesDir.
func (e *Extractor) ExtractContent(ctx context.Context, examPath, answerKeyPath, imagesDir string) (Content, error) {
	text, err := e.ExtractText(examPath, answerKeyPath)
	if err != nil {
		return Content{}, err
	}
	images, err := e.mapper.MapImages(ctx, examPath, imagesDir)
	if err != nil {
		return Content{}, err
	}
	return Content{Text: text, Images: images}, nil
}
