// Package models holds the typed records produced by the pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// QuestionOption is one labeled alternative.
type QuestionOption struct {
	Label string `json:"label" validate:"required,oneof=A B C D E"`
	Text  string `json:"text" validate:"required"`
}

// Options is the ordered list of alternatives. It decodes from either a
// label→text object or a list of {label, text}; empty texts are dropped.
type Options []QuestionOption

func (o *Options) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	var out Options
	switch {
	case len(data) > 0 && data[0] == '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		for label, text := range m {
			out = append(out, QuestionOption{Label: label, Text: text})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	case len(data) > 0 && data[0] == '[':
		var list []QuestionOption
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		out = list
	default:
		return fmt.Errorf("options: expected object or array, got %.20s", data)
	}
	kept := out[:0]
	for _, opt := range out {
		opt.Label = strings.ToUpper(strings.TrimSpace(opt.Label))
		opt.Text = strings.TrimSpace(opt.Text)
		if opt.Text == "" {
			continue
		}
		kept = append(kept, opt)
	}
	*o = kept
	return nil
}

// Labels returns the declared option labels in order.
func (o Options) Labels() []string {
	labels := make([]string, len(o))
	for i, opt := range o {
		labels[i] = opt.Label
	}
	return labels
}

// Has reports whether label is declared.
func (o Options) Has(label string) bool {
	for _, opt := range o {
		if opt.Label == label {
			return true
		}
	}
	return false
}

// Question is one structured multiple-choice item.
type Question struct {
	QuestionID    string         `json:"question_id"`
	Question      string         `json:"question" validate:"required"`
	Image         bool           `json:"image"`
	Images        []string       `json:"images"`
	PassageText   string         `json:"passage_text"`
	Sources       []string       `json:"sources" validate:"max=10"`
	Statement     string         `json:"statement" validate:"required"`
	Options       Options        `json:"options" validate:"min=1,dive"`
	CorrectOption string         `json:"correct_option" validate:"required,oneof=A B C D E"`
	Metadata      map[string]any `json:"metadata"`
}

// Exam is the assembled pipeline output.
type Exam struct {
	Metadata  ExamProfile `json:"metadata"`
	Questions []Question  `json:"questions"`
}
