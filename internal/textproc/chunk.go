package textproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/local/examparser/internal/config"
)

// DefaultAnswerKey is used when the text carries no answer-key section.
const DefaultAnswerKey = "No answer key found."

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Chunk is the text of exactly one question.
type Chunk struct {
	Header string
	Body   string
}

// Text is the chunk as sent to the language service.
func (c Chunk) Text() string { return c.Header + "\n" + c.Body }

// Headers detects question headers and names them canonically, so "1",
// "01" and "001" all become "MARKER 01".
type Headers struct {
	re     *regexp.Regexp
	marker string
}

// NewHeaders compiles pattern, always case-insensitively. When the pattern
// has a capture group the first group is the header text, otherwise the
// whole match.
func NewHeaders(pattern, marker string) (*Headers, error) {
	if !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile question pattern: %w", err)
	}
	return &Headers{re: re, marker: marker}, nil
}

// Marker is the literal prefix of canonical names.
func (h *Headers) Marker() string { return h.marker }

// Name returns the canonical name for question number n.
func (h *Headers) Name(n int) string { return fmt.Sprintf("%s %02d", h.marker, n) }

// Find returns the canonical name of the first header in s.
func (h *Headers) Find(s string) (string, bool) {
	loc := h.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", false
	}
	return h.canonical(s, loc)
}

func (h *Headers) canonical(s string, loc []int) (string, bool) {
	text := s[loc[0]:loc[1]]
	if len(loc) >= 4 && loc[2] >= 0 {
		text = s[loc[2]:loc[3]]
	}
	d := digitsRe.FindString(text)
	if d == "" {
		return "", false
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return "", false
	}
	return h.Name(n), true
}

// Chunker splits exam text into question chunks and separates the answer key.
type Chunker struct {
	headers   *Headers
	separator string
}

// NewChunker builds a Chunker from question settings.
func NewChunker(cfg config.QuestionConfig) (*Chunker, error) {
	h, err := NewHeaders(cfg.SplitPattern, cfg.Marker)
	if err != nil {
		return nil, err
	}
	return &Chunker{headers: h, separator: cfg.AnswerKeySeparator}, nil
}

// Headers exposes the header matcher shared with image mapping.
func (c *Chunker) Headers() *Headers { return c.headers }

// Separator is the line placed between exam text and answer-key text.
func (c *Chunker) Separator() string { return c.separator }

// JoinAnswerKey appends answer-key text to exam text behind the separator.
func (c *Chunker) JoinAnswerKey(exam, key string) string {
	return exam + "\n\n" + c.separator + "\n\n" + key
}

// SplitAnswerKey divides text at the first separator. Without one the key
// is DefaultAnswerKey.
func (c *Chunker) SplitAnswerKey(text string) (exam, key string) {
	exam, key, found := strings.Cut(text, c.separator)
	if !found {
		return text, DefaultAnswerKey
	}
	return exam, key
}

// Split returns one chunk per header in text order. Text before the first
// header is dropped; runs of three or more newlines in a body collapse to
// two.
func (c *Chunker) Split(text string) []Chunk {
	locs := c.headers.re.FindAllStringSubmatchIndex(text, -1)
	chunks := make([]Chunk, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		name, ok := c.headers.canonical(text, loc)
		if !ok {
			continue
		}
		body := blankLinesRe.ReplaceAllString(strings.TrimSpace(text[loc[1]:end]), "\n\n")
		chunks = append(chunks, Chunk{Header: name, Body: body})
	}
	return chunks
}
