package processor

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/metrics"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/questionid"
	"github.com/local/examparser/internal/textproc"
)

// QuestionProcessor turns question chunks into validated Question records.
type QuestionProcessor struct {
	d       *Dispatcher
	headers *textproc.Headers
}

// NewQuestionProcessor uses the question-specific rate and concurrency
// limits from cfg.
func NewQuestionProcessor(client ai.Client, cfg config.LLMConfig, headers *textproc.Headers) *QuestionProcessor {
	return &QuestionProcessor{
		d: NewDispatcher(client, Options{
			Name:        "question",
			RPM:         cfg.QuestionRPM,
			Concurrency: cfg.QuestionConcurrency,
			MaxRetries:  cfg.MaxRetries,
			BaseDelay:   cfg.RetryBaseDelay,
			Timeout:     cfg.RequestTimeout,
		}),
		headers: headers,
	}
}

// NewQuestionProcessorWith wraps an existing dispatcher.
func NewQuestionProcessorWith(d *Dispatcher, headers *textproc.Headers) *QuestionProcessor {
	return &QuestionProcessor{d: d, headers: headers}
}

// StructureQuestions dispatches every chunk concurrently. Chunks without
// the marker are skipped and failures are dropped; the result keeps chunk
// order.
func (p *QuestionProcessor) StructureQuestions(ctx context.Context, chunks []textproc.Chunk, answerKey string, profile models.ExamProfile) []models.Question {
	jobs := make([]Job[models.Question], 0, len(chunks))
	for _, c := range chunks {
		text := c.Text()
		if !strings.Contains(text, p.headers.Marker()) {
			metrics.IncProcessed(p.d.name, "skipped")
			continue
		}
		prompt, err := render("question.tmpl", questionVars{
			Header:             c.Header,
			Chunk:              text,
			AnswerKey:          answerKey,
			FormatInstructions: questionFormat,
		})
		if err != nil {
			log.Error().Err(err).Str("item", c.Header).Msg("render question prompt")
			continue
		}
		jobs = append(jobs, Job[models.Question]{
			Label:  c.Header,
			Prompt: prompt,
			Decode: func(raw string) (models.Question, error) { return p.decode(raw, profile) },
		})
	}
	out := Dispatch(ctx, p.d, jobs)
	log.Info().
		Int("chunks", len(chunks)).
		Int("dispatched", len(jobs)).
		Int("structured", len(out)).
		Msg("questions structured")
	return out
}

func (p *QuestionProcessor) decode(raw string, profile models.ExamProfile) (models.Question, error) {
	var q models.Question
	if err := decodeJSON(raw, &q); err != nil {
		return models.Question{}, err
	}
	q.Question = strings.TrimSpace(q.Question)
	q.CorrectOption = strings.ToUpper(strings.TrimSpace(q.CorrectOption))
	if name, ok := p.headers.Find(q.Question); ok {
		q.Question = name
	}
	if err := ValidateQuestion(q); err != nil {
		return models.Question{}, err
	}
	n, err := questionid.ExtractNumber(q.Question)
	if err != nil {
		return models.Question{}, err
	}
	q.QuestionID = questionid.Build(profile.ExamNameBase, profile.Sigle(), profile.ExamVariant, profile.ExamYear, n)
	// Only the image mapper populates images.
	q.Images = []string{}
	if q.Sources == nil {
		q.Sources = []string{}
	}
	if q.Metadata == nil {
		q.Metadata = map[string]any{}
	}
	return q, nil
}

// AttachImages gives every question flagged with image the file list of its
// header. An exact key match wins; otherwise the longest key contained in
// the label is used, so "QUESTÃO 10" never claims "QUESTÃO 100".
func AttachImages(questions []models.Question, imageMap map[string][]string) {
	keys := make([]string, 0, len(imageMap))
	for k := range imageMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for i := range questions {
		q := &questions[i]
		if !q.Image {
			continue
		}
		if files, ok := imageMap[q.Question]; ok {
			q.Images = append([]string{}, files...)
			continue
		}
		for _, k := range keys {
			if strings.Contains(q.Question, k) {
				q.Images = append([]string{}, imageMap[k]...)
				break
			}
		}
	}
}
