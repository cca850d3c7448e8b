package models

// ImagePayload carries one image inline in an HTTP response.
type ImagePayload struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
	MimeType      string `json:"mime_type"`
}

// QuestionResponse mirrors Question with images inlined.
type QuestionResponse struct {
	QuestionID    string         `json:"question_id"`
	Question      string         `json:"question"`
	PassageText   string         `json:"passage_text"`
	Sources       []string       `json:"sources"`
	Image         bool           `json:"image"`
	Images        []ImagePayload `json:"images"`
	Statement     string         `json:"statement"`
	Options       Options        `json:"options"`
	CorrectOption string         `json:"correct_option"`
	Metadata      map[string]any `json:"metadata"`
}

// ExamResponse is the HTTP form of Exam.
type ExamResponse struct {
	Metadata  ExamProfile        `json:"metadata"`
	Questions []QuestionResponse `json:"questions"`
}

// ProcessingResponse wraps a successful run.
type ProcessingResponse struct {
	Status string       `json:"status"`
	RunID  string       `json:"run_id"`
	Data   ExamResponse `json:"data"`
}
