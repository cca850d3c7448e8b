package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/models"
)

// EncodeJSON renders v with a four-space indent and without escaping
// non-ASCII or HTML characters.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON writes v to path, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// ImageFiles lists the image file names referenced by exam, in question order.
func ImageFiles(exam models.Exam) []string {
	var names []string
	for _, q := range exam.Questions {
		names = append(names, q.Images...)
	}
	return names
}

// BuildExamResponse inlines every referenced image from imagesDir as base64.
// Missing files are skipped with a warning.
func BuildExamResponse(exam models.Exam, imagesDir string) models.ExamResponse {
	out := models.ExamResponse{Metadata: exam.Metadata, Questions: make([]models.QuestionResponse, 0, len(exam.Questions))}
	for _, q := range exam.Questions {
		payloads := make([]models.ImagePayload, 0, len(q.Images))
		for _, name := range q.Images {
			p, ok := encodeImage(imagesDir, name)
			if ok {
				payloads = append(payloads, p)
			}
		}
		out.Questions = append(out.Questions, models.QuestionResponse{
			QuestionID:    q.QuestionID,
			Question:      q.Question,
			PassageText:   q.PassageText,
			Sources:       q.Sources,
			Image:         q.Image,
			Images:        payloads,
			Statement:     q.Statement,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Metadata:      q.Metadata,
		})
	}
	return out
}

func encodeImage(dir, name string) (models.ImagePayload, bool) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		log.Warn().Err(err).Str("image", name).Msg("image file not found")
		return models.ImagePayload{}, false
	}
	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return models.ImagePayload{
		Filename:      name,
		ContentBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:      mime,
	}, true
}
