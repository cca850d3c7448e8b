package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

const unknown = "unknown"

// ExamProfile describes the exam as a whole. Missing fields fall back to
// "unknown" or 0; a profile is never rejected for missing data.
type ExamProfile struct {
	ExamNameBase      string `json:"exam_name_base"`
	ExamNameSigle     string `json:"exam_name_sigle"`
	ExamVariant       string `json:"exam_variant"`
	ExamYear          int    `json:"exam_year"`
	ExamStyle         string `json:"exam_style"`
	ExamType          string `json:"exam_type"`
	AnswerKeyLocation string `json:"answer_key_location"`
	TotalQuestions    int    `json:"total_questions"`
}

// UnmarshalJSON tolerates numbers sent as strings and nulls anywhere.
func (p *ExamProfile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ExamNameBase      *string `json:"exam_name_base"`
		ExamNameSigle     *string `json:"exam_name_sigle"`
		ExamVariant       *string `json:"exam_variant"`
		ExamYear          flexInt `json:"exam_year"`
		ExamStyle         *string `json:"exam_style"`
		ExamType          *string `json:"exam_type"`
		AnswerKeyLocation *string `json:"answer_key_location"`
		TotalQuestions    flexInt `json:"total_questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ExamProfile{
		ExamNameBase:      deref(raw.ExamNameBase),
		ExamNameSigle:     deref(raw.ExamNameSigle),
		ExamVariant:       deref(raw.ExamVariant),
		ExamYear:          int(raw.ExamYear),
		ExamStyle:         deref(raw.ExamStyle),
		ExamType:          deref(raw.ExamType),
		AnswerKeyLocation: deref(raw.AnswerKeyLocation),
		TotalQuestions:    int(raw.TotalQuestions),
	}
	p.Normalize()
	return nil
}

// Normalize fills blank string fields with "unknown".
func (p *ExamProfile) Normalize() {
	for _, f := range []*string{&p.ExamNameBase, &p.ExamNameSigle, &p.ExamVariant, &p.ExamStyle, &p.ExamType, &p.AnswerKeyLocation} {
		if strings.TrimSpace(*f) == "" {
			*f = unknown
		} else {
			*f = strings.TrimSpace(*f)
		}
	}
}

// Sigle returns the acronym, or "" when the service could not tell.
func (p ExamProfile) Sigle() string {
	if p.ExamNameSigle == unknown {
		return ""
	}
	return p.ExamNameSigle
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = flexInt(f)
		return nil
	}
	*n = 0
	return nil
}
