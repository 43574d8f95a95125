package llm

import (
	"errors"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrNoJSON        = errors.New("no JSON object found in model response")
)

// StripCodeFences removes a surrounding markdown fence such as ```json ... ```
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string ("json", "JSON", ...) up to the first newline
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the outermost JSON object in a model response,
// tolerating code fences and surrounding prose
func ExtractJSON(s string) (string, error) {
	s = StripCodeFences(s)
	if s == "" {
		return "", ErrEmptyResponse
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
