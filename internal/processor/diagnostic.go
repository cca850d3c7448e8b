package processor

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/pdfdoc"
)

// DiagnosticProcessor derives the ExamProfile from a text sample.
type DiagnosticProcessor struct {
	d      *Dispatcher
	opener pdfdoc.Opener
	text   *pdfdoc.TextExtractor
}

// NewDiagnosticProcessor uses the general LLM limits from cfg.
func NewDiagnosticProcessor(client ai.Client, cfg config.LLMConfig, opener pdfdoc.Opener) *DiagnosticProcessor {
	return NewDiagnosticProcessorWith(NewDispatcher(client, Options{
		Name:        "diagnostic",
		RPM:         cfg.RequestsPerMin,
		Concurrency: cfg.DiagnosticConcurrency(),
		MaxRetries:  cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		Timeout:     cfg.RequestTimeout,
	}), opener)
}

// NewDiagnosticProcessorWith wraps an existing dispatcher.
func NewDiagnosticProcessorWith(d *Dispatcher, opener pdfdoc.Opener) *DiagnosticProcessor {
	if opener == nil {
		opener = pdfdoc.DefaultOpener
	}
	return &DiagnosticProcessor{d: d, opener: opener, text: pdfdoc.NewTextExtractor(opener)}
}

// ExtractSample returns the unmarked text of the first half of the pages,
// or of every page when the document has two pages or fewer.
func (p *DiagnosticProcessor) ExtractSample(path string) (string, error) {
	total, err := pdfdoc.PageCount(path, p.opener)
	if err != nil {
		return "", err
	}
	if total == 0 {
		return "", nil
	}
	end := total
	if total > 2 {
		end = total / 2
	}
	start, stop := pdfdoc.Pages(0, end)
	return p.text.ExtractText(path, start, stop, false)
}

// Diagnose samples the exam (and the answer key when the file exists) and
// asks the language service for the profile. Exhausting every attempt is a
// FatalDiagnostic error.
func (p *DiagnosticProcessor) Diagnose(ctx context.Context, examPath, answerKeyPath string) (models.ExamProfile, error) {
	const op = "diagnose"
	examSample, err := p.ExtractSample(examPath)
	if err != nil {
		return models.ExamProfile{}, err
	}

	var answerSample string
	if answerKeyPath != "" {
		if _, statErr := os.Stat(answerKeyPath); statErr == nil {
			answerSample, err = p.ExtractSample(answerKeyPath)
			if err != nil {
				log.Warn().Err(err).Str("path", answerKeyPath).Msg("answer key sample unavailable")
				answerSample = ""
			}
		}
	}

	prompt, err := render("diagnostic.tmpl", diagnosticVars{
		ExamSample:         examSample,
		AnswerSample:       answerSample,
		FormatInstructions: diagnosticFormat,
	})
	if err != nil {
		return models.ExamProfile{}, errs.E(errs.FatalDiagnostic, op, err)
	}

	profile, err := Do(ctx, p.d, Job[models.ExamProfile]{
		Label:  "exam_profile",
		Prompt: prompt,
		Decode: func(raw string) (models.ExamProfile, error) {
			var prof models.ExamProfile
			if err := decodeJSON(raw, &prof); err != nil {
				return models.ExamProfile{}, err
			}
			return prof, nil
		},
	})
	if err != nil {
		return models.ExamProfile{}, errs.E(errs.FatalDiagnostic, op, err)
	}
	log.Info().
		Str("exam", profile.ExamNameSigle).
		Str("variant", profile.ExamVariant).
		Int("year", profile.ExamYear).
		Int("total_questions", profile.TotalQuestions).
		Msg("exam diagnosed")
	return profile, nil
}
