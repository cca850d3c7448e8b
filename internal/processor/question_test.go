package processor

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/textproc"
)

func testHeaders(t *testing.T) *textproc.Headers {
	t.Helper()
	q := config.DefaultQuestion()
	h, err := textproc.NewHeaders(q.SplitPattern, q.Marker)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func fastDispatcher(client ai.Client) *Dispatcher {
	return NewDispatcher(client, Options{Name: "question", Concurrency: 4, MaxRetries: 2, BaseDelay: time.Millisecond})
}

var enem = models.ExamProfile{
	ExamNameBase:  "Exame Nacional do Ensino Médio",
	ExamNameSigle: "ENEM",
	ExamVariant:   "2024 - 1º Dia - Caderno 1 - Azul",
	ExamYear:      2024,
}

func TestStructureQuestions(t *testing.T) {
	responses := map[string]string{
		"body-one": "```json\n" + `{"question":"QUESTÃO 01","image":true,"images":["bogus.png"],"statement":"S1",
			"options":{"A":"a","B":"b","C":"c","D":"d","E":"e"},"correct_option":"c"}` + "\n```",
		"body-two": `{"question":"Questão 2","statement":"S2","sources":["ref"],
			"options":[{"label":"A","text":"x"},{"label":"B","text":"y"}],"correct_option":"B"}`,
		// correct option outside the declared labels never validates
		"body-three": `{"question":"QUESTÃO 03","statement":"S3","options":{"A":"x","B":"y"},"correct_option":"E"}`,
	}
	var calls int64
	client := ai.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt64(&calls, 1)
		for body, resp := range responses {
			if strings.Contains(prompt, body) {
				return resp, nil
			}
		}
		t.Errorf("unexpected prompt %q", prompt)
		return "", nil
	})
	p := NewQuestionProcessorWith(fastDispatcher(client), testHeaders(t))
	chunks := []textproc.Chunk{
		{Header: "QUESTÃO 01", Body: "body-one"},
		{Header: "QUESTÃO 02", Body: "body-two"},
		{Header: "QUESTÃO 03", Body: "body-three"},
	}
	got := p.StructureQuestions(context.Background(), chunks, "1-C 2-B", enem)

	if len(got) != 2 {
		t.Fatalf("got %d questions, want 2: %+v", len(got), got)
	}
	q1, q2 := got[0], got[1]
	if q1.Question != "QUESTÃO 01" || q2.Question != "QUESTÃO 02" {
		t.Errorf("labels = %q, %q", q1.Question, q2.Question)
	}
	if q1.CorrectOption != "C" {
		t.Errorf("correct option = %q", q1.CorrectOption)
	}
	if len(q1.Images) != 0 {
		t.Errorf("model-provided images kept: %v", q1.Images)
	}
	if !strings.HasPrefix(q1.QuestionID, "enem_2024_d1_azul_q01_") {
		t.Errorf("question id = %q", q1.QuestionID)
	}
	if !strings.Contains(q2.QuestionID, "_q02_") {
		t.Errorf("question id = %q", q2.QuestionID)
	}
	if q2.Metadata == nil || q2.Sources[0] != "ref" {
		t.Errorf("q2 = %+v", q2)
	}
	// three chunks, the third retried once
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestStructureQuestionsSkipsChunksWithoutMarker(t *testing.T) {
	client := ai.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Error("client should not be called")
		return "", nil
	})
	h, err := textproc.NewHeaders(`(?i)(Question\s+\d+)`, "QUESTION")
	if err != nil {
		t.Fatal(err)
	}
	p := NewQuestionProcessorWith(fastDispatcher(client), h)
	got := p.StructureQuestions(context.Background(), []textproc.Chunk{{Header: "Item 1", Body: "x"}}, textproc.DefaultAnswerKey, enem)
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestAttachImages(t *testing.T) {
	qs := []models.Question{
		{Question: "QUESTÃO 01", Image: true},
		{Question: "QUESTÃO 02", Image: false},
		{Question: "QUESTÃO 03", Image: true},
		{Question: "QUESTÃO 10", Image: true, Images: []string{}},
		{Question: "QUESTÃO 100", Image: true},
		{Question: "Questão QUESTÃO 10 (cont.)", Image: true},
	}
	imageMap := map[string][]string{
		"QUESTÃO 01":  {"QUESTÃO 01_img3.png"},
		"QUESTÃO 02":  {"QUESTÃO 02_img4.png"},
		"QUESTÃO 03":  {},
		"QUESTÃO 1":   {"never.png"},
		"QUESTÃO 10":  {"QUESTÃO 10_img5.png"},
		"QUESTÃO 100": {"QUESTÃO 100_img6.png"},
	}
	AttachImages(qs, imageMap)

	if !reflect.DeepEqual(qs[0].Images, []string{"QUESTÃO 01_img3.png"}) {
		t.Errorf("q1 images = %v", qs[0].Images)
	}
	if len(qs[1].Images) != 0 {
		t.Errorf("image=false question got %v", qs[1].Images)
	}
	if len(qs[2].Images) != 0 {
		t.Errorf("q3 images = %v", qs[2].Images)
	}
	// shorter keys contained in a label never win over its own header
	if !reflect.DeepEqual(qs[3].Images, []string{"QUESTÃO 10_img5.png"}) {
		t.Errorf("q10 images = %v", qs[3].Images)
	}
	if !reflect.DeepEqual(qs[4].Images, []string{"QUESTÃO 100_img6.png"}) {
		t.Errorf("q100 images = %v", qs[4].Images)
	}
	if !reflect.DeepEqual(qs[5].Images, []string{"QUESTÃO 10_img5.png"}) {
		t.Errorf("decorated q10 label images = %v", qs[5].Images)
	}
}

func TestValidateQuestion(t *testing.T) {
	base := models.Question{
		Question:      "QUESTÃO 01",
		Statement:     "s",
		Options:       models.Options{{Label: "A", Text: "x"}, {Label: "B", Text: "y"}},
		CorrectOption: "A",
	}
	if err := ValidateQuestion(base); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}
	cases := map[string]func(q *models.Question){
		"missing statement": func(q *models.Question) { q.Statement = "" },
		"bad letter":        func(q *models.Question) { q.CorrectOption = "F" },
		"undeclared":        func(q *models.Question) { q.CorrectOption = "C" },
		"duplicate label":   func(q *models.Question) { q.Options = append(q.Options, models.QuestionOption{Label: "A", Text: "z"}) },
		"too many sources":  func(q *models.Question) { q.Sources = make([]string, 11) },
		"no options":        func(q *models.Question) { q.Options = nil },
	}
	for name, mutate := range cases {
		q := base
		q.Options = append(models.Options{}, base.Options...)
		mutate(&q)
		if err := ValidateQuestion(q); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
