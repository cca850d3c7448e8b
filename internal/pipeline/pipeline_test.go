package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/pdfdoc/pdfdoctest"
	"github.com/local/examparser/internal/processor"
	"github.com/local/examparser/internal/storage"
	"github.com/local/examparser/internal/store"
)

const profileJSON = `{"exam_name_base":"Exame Nacional do Ensino Médio","exam_name_sigle":"ENEM",
"exam_variant":"2024 - 1º Dia - Caderno 1 - Azul","exam_year":2024,"exam_style":"enem",
"answer_key_location":"separate_document","total_questions":2}`

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rnd.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// examFixture is a two-question exam with one photo under the first header
// and a separate one-page answer key.
type examFixture struct {
	dir, exam, key string
	opener         pdfdoctest.Opener
}

func newFixture(t *testing.T) examFixture {
	t.Helper()
	dir := t.TempDir()
	f := examFixture{
		dir:  dir,
		exam: pdfdoctest.WritePDFStub(t, dir, "prova.pdf"),
		key:  pdfdoctest.WritePDFStub(t, dir, "gabarito.pdf"),
	}
	examDoc := &pdfdoctest.Doc{Pages: []pdfdoctest.Page{
		{
			Text:   "QUESTÃO 1\nObserve a figura do ciclo da agua.\nA) chuva B) sol",
			Blocks: []pdfdoc.TextBlock{{Text: "QUESTÃO 1", Y: 100}, {Text: "Observe a figura", Y: 130}},
			Images: []pdfdoc.PlacedImage{{Xref: 1, Data: noisePNG(t, 320, 320), Width: 320, Height: 320, Ext: "png", Y: 200}},
		},
		{
			Text:   "QUESTÃO 2\nQuanto vale dois mais dois?\nA) 3 B) 4",
			Blocks: []pdfdoc.TextBlock{{Text: "QUESTÃO 2", Y: 80}},
		},
	}}
	f.opener = pdfdoctest.Opener{f.exam: examDoc, f.key: pdfdoctest.TextPages("1-A 2-B")}
	return f
}

func scriptedClient(t *testing.T, diagnostic string) ai.Client {
	return ai.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "=== EXAM SAMPLE ==="):
			return diagnostic, nil
		case strings.Contains(prompt, "ciclo da agua"):
			return `{"question":"QUESTÃO 01","image":true,"statement":"Qual fenomeno aparece?",
				"options":{"A":"chuva","B":"sol"},"correct_option":"A"}`, nil
		case strings.Contains(prompt, "dois mais dois"):
			return "```json\n" + `{"question":"QUESTÃO 02","statement":"Quanto vale dois mais dois?",
				"options":[{"label":"A","text":"3"},{"label":"B","text":"4"}],"correct_option":"B"}` + "\n```", nil
		}
		t.Errorf("unexpected prompt: %.80q", prompt)
		return "", nil
	})
}

type recorder struct {
	mu     sync.Mutex
	states []store.Status
}

func (r *recorder) Set(_ context.Context, _ string, st store.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
	return nil
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, st := range r.states {
		out = append(out, st.Stage)
	}
	return out
}

func (r *recorder) last() store.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

type fakePublisher struct {
	runID  string
	result []byte
	images []string
}

func (p *fakePublisher) PublishRun(_ context.Context, runID string, result []byte, _ string, images []string) (storage.Published, error) {
	p.runID, p.result, p.images = runID, result, images
	return storage.Published{ResultKey: "exams/" + runID + "/exam.json"}, nil
}

func newOrchestrator(t *testing.T, f examFixture, client ai.Client, status StatusReporter, pub Publisher) *Orchestrator {
	t.Helper()
	cfg := config.FromEnv()
	cfg.Question = config.DefaultQuestion()
	cfg.ImageFilter = config.DefaultImageFilter()
	deps, err := FromConfig(cfg, client, f.opener)
	if err != nil {
		t.Fatal(err)
	}
	d := processor.NewDispatcher(client, processor.Options{Name: "test", Concurrency: 4, MaxRetries: 2, BaseDelay: time.Millisecond})
	deps.Diagnostic = processor.NewDiagnosticProcessorWith(d, f.opener)
	deps.Questions = processor.NewQuestionProcessorWith(d, deps.Chunker.Headers())
	deps.Status = status
	deps.Publisher = pub
	return New(deps)
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	pub := &fakePublisher{}
	o := newOrchestrator(t, f, scriptedClient(t, profileJSON), rec, pub)

	imagesDir := filepath.Join(f.dir, "images")
	outPath := filepath.Join(f.dir, "out", "exam.json")
	res, err := o.Run(context.Background(), f.exam, f.key, imagesDir, Options{RunID: "run-1", OutputPath: outPath})
	if err != nil {
		t.Fatal(err)
	}

	qs := res.Exam.Questions
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if res.Exam.Metadata.ExamNameSigle != "ENEM" || res.Exam.Metadata.ExamYear != 2024 {
		t.Errorf("metadata = %+v", res.Exam.Metadata)
	}
	wantImg := []string{"QUESTÃO 01_img1.png"}
	if !reflect.DeepEqual(qs[0].Images, wantImg) {
		t.Errorf("q1 images = %v, want %v", qs[0].Images, wantImg)
	}
	if len(qs[1].Images) != 0 {
		t.Errorf("q2 images = %v", qs[1].Images)
	}
	if _, err := os.Stat(filepath.Join(imagesDir, wantImg[0])); err != nil {
		t.Errorf("image not written: %v", err)
	}
	if !strings.HasPrefix(qs[1].QuestionID, "enem_2024_d1_azul_q02_") {
		t.Errorf("question id = %q", qs[1].QuestionID)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Exame Nacional do Ensino Médio") {
		t.Error("output JSON escapes non-ASCII text")
	}
	if !strings.Contains(string(data), "\n    \"metadata\"") {
		t.Error("output JSON not indented with four spaces")
	}
	var back models.Exam
	if err := json.Unmarshal(data, &back); err != nil || len(back.Questions) != 2 {
		t.Errorf("output does not round trip: %v", err)
	}

	want := []string{StageDiagnose, StageExtract, StageClean, StageSplitKey, StageChunk,
		StageStructure, StageAttach, StageAssemble, StagePublish, "done"}
	if got := rec.stages(); !reflect.DeepEqual(got, want) {
		t.Errorf("stages = %v\nwant %v", got, want)
	}
	if last := rec.last(); last.Status != store.StateCompleted || last.Progress != 100 || last.End == nil {
		t.Errorf("final status = %+v", last)
	}
	if tl, ok := rec.last().Metadata["text_layer"].(bool); !ok || tl {
		t.Errorf("short fixture should be flagged as lacking a text layer, got %v", rec.last().Metadata["text_layer"])
	}

	if pub.runID != "run-1" || !reflect.DeepEqual(pub.images, wantImg) {
		t.Errorf("published run %q images %v", pub.runID, pub.images)
	}
	if res.Published == nil || res.Published.ResultKey != "exams/run-1/exam.json" {
		t.Errorf("published = %+v", res.Published)
	}
}

func TestRunFilterOverride(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, f, scriptedClient(t, profileJSON), nil, nil)
	strict := config.DefaultImageFilter()
	strict.MinWidth = 1000

	res, err := o.Run(context.Background(), f.exam, "", filepath.Join(f.dir, "images"), Options{Filter: &strict})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Error("run id not generated")
	}
	for _, q := range res.Exam.Questions {
		if len(q.Images) != 0 {
			t.Errorf("%s kept images under a stricter filter: %v", q.Question, q.Images)
		}
	}
}

func TestRunDiagnosticFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	o := newOrchestrator(t, f, scriptedClient(t, "not json at all"), rec, nil)

	_, err := o.Run(context.Background(), f.exam, f.key, filepath.Join(f.dir, "images"), Options{RunID: "bad"})
	if !errs.Is(err, errs.FatalDiagnostic) {
		t.Fatalf("err = %v, want FatalDiagnostic", err)
	}
	last := rec.last()
	if last.Status != store.StateFailed || last.Stage != StageDiagnose {
		t.Errorf("final status = %+v", last)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "images")); !os.IsNotExist(err) {
		t.Error("extraction ran after a failed diagnosis")
	}
}

func TestRunMissingExam(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, f, scriptedClient(t, profileJSON), nil, nil)
	_, err := o.Run(context.Background(), filepath.Join(f.dir, "nope.pdf"), "", f.dir, Options{})
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestBuildExamResponse(t *testing.T) {
	dir := t.TempDir()
	img := noisePNG(t, 4, 4)
	if err := os.WriteFile(filepath.Join(dir, "QUESTÃO 01_img3.png"), img, 0o644); err != nil {
		t.Fatal(err)
	}
	exam := models.Exam{Questions: []models.Question{{
		Question: "QUESTÃO 01",
		Image:    true,
		Images:   []string{"QUESTÃO 01_img3.png", "gone.png"},
	}}}
	resp := BuildExamResponse(exam, dir)
	got := resp.Questions[0].Images
	if len(got) != 1 {
		t.Fatalf("payloads = %d, want 1 (missing file skipped)", len(got))
	}
	if got[0].MimeType != "image/png" || got[0].Filename != "QUESTÃO 01_img3.png" || got[0].ContentBase64 == "" {
		t.Errorf("payload = %+v", got[0])
	}
}
