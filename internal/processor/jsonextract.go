package processor

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/local/examparser/internal/errs"
)

var errNoJSON = errors.New("no JSON object or array found in response")

// ExtractJSON returns the JSON document in a model response, removing code
// fences and any prose around the outermost object or array.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(raw)
	if s == "" {
		return "", errs.E(errs.Parse, "extract_json", errNoJSON)
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}
	if inner := outermost(s); inner != "" && json.Valid([]byte(inner)) {
		return inner, nil
	}
	return "", errs.E(errs.Parse, "extract_json", errNoJSON)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the info string ("json", "JSON", ...)
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// outermost slices from the first opening bracket to its last matching
// closer.
func outermost(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// decodeJSON extracts and unmarshals a response into v.
func decodeJSON(raw string, v any) error {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return errs.E(errs.Parse, "decode_json", err)
	}
	return nil
}
