package processor

import (
	"embed"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

const questionFormat = `Output format:
{
  "question": "QUESTÃO 01",
  "image": false,
  "passage_text": "",
  "sources": [],
  "statement": "...",
  "options": {"A": "...", "B": "...", "C": "...", "D": "...", "E": "..."},
  "correct_option": "A"
}`

const diagnosticFormat = `Output format:
{
  "exam_name_base": "...",
  "exam_name_sigle": "...",
  "exam_variant": "...",
  "exam_year": 2024,
  "exam_style": "...",
  "exam_type": "...",
  "answer_key_location": "...",
  "total_questions": 90
}`

type questionVars struct {
	Header             string
	Chunk              string
	AnswerKey          string
	FormatInstructions string
}

type diagnosticVars struct {
	ExamSample         string
	AnswerSample       string
	FormatInstructions string
}

func render(name string, vars any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}
