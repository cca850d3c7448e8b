// Package pipeline runs one exam through diagnosis, extraction, chunking,
// structuring and assembly.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/extractor"
	"github.com/local/examparser/internal/imagefilter"
	"github.com/local/examparser/internal/logger"
	"github.com/local/examparser/internal/metrics"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/processor"
	"github.com/local/examparser/internal/storage"
	"github.com/local/examparser/internal/store"
	"github.com/local/examparser/internal/textproc"
)

// Stage names, in execution order.
const (
	StageDiagnose  = "diagnose"
	StageExtract   = "extract_content"
	StageClean     = "clean_text"
	StageSplitKey  = "split_answer_key"
	StageChunk     = "chunk"
	StageStructure = "structure"
	StageAttach    = "attach_images"
	StageAssemble  = "assemble"
	StagePublish   = "publish"
)

var stageProgress = map[string]int{
	StageDiagnose:  5,
	StageExtract:   20,
	StageClean:     35,
	StageSplitKey:  40,
	StageChunk:     45,
	StageStructure: 50,
	StageAttach:    90,
	StageAssemble:  95,
	StagePublish:   97,
}

// Diagnoser produces the exam profile.
type Diagnoser interface {
	Diagnose(ctx context.Context, examPath, answerKeyPath string) (models.ExamProfile, error)
}

// Structurer turns question chunks into records.
type Structurer interface {
	StructureQuestions(ctx context.Context, chunks []textproc.Chunk, answerKey string, profile models.ExamProfile) []models.Question
}

// StatusReporter receives a status update at every stage transition.
type StatusReporter interface {
	Set(ctx context.Context, runID string, st store.Status) error
}

// Publisher uploads the artifacts of a finished run.
type Publisher interface {
	PublishRun(ctx context.Context, runID string, result []byte, imagesDir string, images []string) (storage.Published, error)
}

// Dependencies wires an Orchestrator. Status and Publisher are optional.
type Dependencies struct {
	Diagnostic Diagnoser
	Questions  Structurer
	Opener     pdfdoc.Opener
	Chunker    *textproc.Chunker
	Cleaner    *textproc.Processor
	Filter     config.ImageFilterConfig
	Status     StatusReporter
	Publisher  Publisher
}

// Options tune a single run.
type Options struct {
	// RunID is generated when empty.
	RunID string
	// Filter replaces the configured image thresholds for this run.
	Filter *config.ImageFilterConfig
	// OutputPath, when set, receives the exam JSON.
	OutputPath string
}

// Result is the outcome of a completed run.
type Result struct {
	RunID     string
	Exam      models.Exam
	ImagesDir string
	Published *storage.Published
}

// Orchestrator sequences the stages of a run.
type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.Opener == nil {
		deps.Opener = pdfdoc.DefaultOpener
	}
	return &Orchestrator{deps: deps}
}

// FromConfig builds the processors, text tooling and image thresholds
// described by cfg around client.
func FromConfig(cfg config.Config, client ai.Client, opener pdfdoc.Opener) (Dependencies, error) {
	if opener == nil {
		opener = pdfdoc.DefaultOpener
	}
	chunker, err := textproc.NewChunker(cfg.Question)
	if err != nil {
		return Dependencies{}, fmt.Errorf("question pattern: %w", err)
	}
	return Dependencies{
		Diagnostic: processor.NewDiagnosticProcessor(client, cfg.LLM, opener),
		Questions:  processor.NewQuestionProcessor(client, cfg.LLM, chunker.Headers()),
		Opener:     opener,
		Chunker:    chunker,
		Cleaner:    textproc.NewProcessor(cfg.Question),
		Filter:     cfg.ImageFilter,
	}, nil
}

type run struct {
	o     *Orchestrator
	id    string
	log   zerolog.Logger
	start time.Time
	meta  map[string]any
}

// Run executes every stage for examPath (and the optional answerKeyPath),
// writing accepted images to imagesDir. Only a failed diagnosis or an
// unusable exam document fail the run; item-level failures shrink the
// question list instead.
func (o *Orchestrator) Run(ctx context.Context, examPath, answerKeyPath, imagesDir string, opts Options) (Result, error) {
	r := &run{o: o, id: opts.RunID, start: time.Now(), meta: map[string]any{"exam": examPath}}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	r.log = logger.ForRun(r.id)
	if answerKeyPath != "" {
		r.meta["answer_key"] = answerKeyPath
	}

	res, err := r.execute(ctx, examPath, answerKeyPath, imagesDir, opts)
	if err != nil {
		r.fail(ctx, err)
		return Result{RunID: r.id}, err
	}
	r.finish(ctx, len(res.Exam.Questions))
	return res, nil
}

func (r *run) execute(ctx context.Context, examPath, answerKeyPath, imagesDir string, opts Options) (Result, error) {
	d := r.o.deps
	res := Result{RunID: r.id, ImagesDir: imagesDir}

	var profile models.ExamProfile
	if err := r.stage(ctx, StageDiagnose, func() (err error) {
		profile, err = d.Diagnostic.Diagnose(ctx, examPath, answerKeyPath)
		return err
	}); err != nil {
		return res, err
	}
	r.meta["exam_name"] = profile.ExamNameSigle

	filterCfg := d.Filter
	if opts.Filter != nil {
		filterCfg = *opts.Filter
	}
	ext := extractor.New(d.Opener, d.Chunker, imagefilter.New(filterCfg))

	var content extractor.Content
	if err := r.stage(ctx, StageExtract, func() (err error) {
		content, err = ext.ExtractContent(ctx, examPath, answerKeyPath, imagesDir)
		return err
	}); err != nil {
		return res, err
	}
	r.meta["headers"] = len(content.Images)
	r.probeTextLayer(examPath)

	var cleaned, examText, answerKey string
	var chunks []textproc.Chunk
	_ = r.stage(ctx, StageClean, func() error {
		cleaned = d.Cleaner.CleanText(content.Text)
		return nil
	})
	_ = r.stage(ctx, StageSplitKey, func() error {
		examText, answerKey = d.Chunker.SplitAnswerKey(cleaned)
		return nil
	})
	_ = r.stage(ctx, StageChunk, func() error {
		chunks = d.Chunker.Split(examText)
		return nil
	})
	r.meta["chunks"] = len(chunks)
	r.log.Info().Int("chunks", len(chunks)).Msg("exam split into question chunks")

	var questions []models.Question
	_ = r.stage(ctx, StageStructure, func() error {
		questions = d.Questions.StructureQuestions(ctx, chunks, answerKey, profile)
		return nil
	})
	if err := ctx.Err(); err != nil {
		return res, err
	}
	r.meta["questions"] = len(questions)
	if dropped := len(chunks) - len(questions); dropped > 0 {
		r.log.Warn().Int("dropped", dropped).Msg("some questions could not be structured")
	}

	_ = r.stage(ctx, StageAttach, func() error {
		processor.AttachImages(questions, content.Images)
		return nil
	})

	_ = r.stage(ctx, StageAssemble, func() error {
		if questions == nil {
			questions = []models.Question{}
		}
		res.Exam = models.Exam{Metadata: profile, Questions: questions}
		return nil
	})

	if opts.OutputPath != "" {
		if err := WriteJSON(opts.OutputPath, res.Exam); err != nil {
			return res, err
		}
		r.log.Info().Str("path", opts.OutputPath).Msg("output written")
	}

	if d.Publisher != nil {
		_ = r.stage(ctx, StagePublish, func() error {
			data, err := EncodeJSON(res.Exam)
			if err != nil {
				return err
			}
			pub, err := d.Publisher.PublishRun(ctx, r.id, data, imagesDir, ImageFiles(res.Exam))
			if err != nil {
				r.log.Error().Err(err).Msg("publish failed; result kept locally")
				r.meta["publish_error"] = err.Error()
				return nil
			}
			res.Published = &pub
			r.meta["result_key"] = pub.ResultKey
			return nil
		})
	}
	return res, nil
}

// probeTextLayer warns about exams that look scanned. They are still
// processed, but usually yield no chunks.
func (r *run) probeTextLayer(examPath string) {
	doc, err := r.o.deps.Opener.Open(examPath)
	if err != nil {
		return
	}
	defer doc.Close()
	diag := pdfdoc.ProbeText(doc, pdfdoc.DefaultThreshold)
	r.meta["text_layer"] = diag.HasExtractableText
	if !diag.HasExtractableText {
		r.log.Warn().
			Int("pages", diag.TotalPages).
			Ints("sampled", diag.SampledPages).
			Int("chars", diag.TotalCharsInSample).
			Msg("exam has little extractable text")
	}
}

// stage reports the transition, runs fn and records its duration.
func (r *run) stage(ctx context.Context, name string, fn func() error) error {
	r.report(ctx, store.Status{
		Status:   store.StateRunning,
		Stage:    name,
		Progress: stageProgress[name],
		Message:  name,
	})
	t := time.Now()
	err := fn()
	metrics.ObserveStage(name, time.Since(t))
	r.log.Debug().Str("stage", name).Dur("took", time.Since(t)).Err(err).Msg("stage finished")
	if err != nil {
		r.meta["failed_stage"] = name
	}
	return err
}

func (r *run) report(ctx context.Context, st store.Status) {
	if r.o.deps.Status == nil {
		return
	}
	st.Start = &r.start
	st.Metadata = maps.Clone(r.meta)
	if err := r.o.deps.Status.Set(ctx, r.id, st); err != nil {
		r.log.Warn().Err(err).Str("stage", st.Stage).Msg("status update failed")
	}
}

func (r *run) finish(ctx context.Context, questions int) {
	end := time.Now()
	metrics.IncRun("success")
	r.report(context.WithoutCancel(ctx), store.Status{
		Status:   store.StateCompleted,
		Stage:    "done",
		Progress: 100,
		Message:  fmt.Sprintf("%d questions structured", questions),
		End:      &end,
	})
	r.log.Info().
		Int("questions", questions).
		Dur("took", end.Sub(r.start)).
		Msg("pipeline completed")
}

func (r *run) fail(ctx context.Context, err error) {
	end := time.Now()
	metrics.IncRun("failed")
	stage, _ := r.meta["failed_stage"].(string)
	r.report(context.WithoutCancel(ctx), store.Status{
		Status:  store.StateFailed,
		Stage:   stage,
		Message: err.Error(),
		End:     &end,
	})
	r.log.Error().Err(err).Str("stage", stage).Msg("pipeline failed")
}
