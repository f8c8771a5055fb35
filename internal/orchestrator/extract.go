package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	lineCommentRe = regexp.MustCompile(`(?m)//[^\n]*`)
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
)

// extractJSON recovers a JSON value from free-form model text. Stage one
// parses the whole response; stage two takes the largest bracket-delimited
// substring, strips // comments and trailing commas, and parses again.
func extractJSON(raw string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(raw)
	if v, ok := tryParse(trimmed); ok {
		return v, true
	}

	candidate := largestDelimited(trimmed)
	if candidate == "" {
		return nil, false
	}
	if v, ok := tryParse(candidate); ok {
		return v, true
	}

	cleaned := lineCommentRe.ReplaceAllString(candidate, "")
	cleaned = trailingComma.ReplaceAllString(cleaned, "$1")
	return tryParse(cleaned)
}

func tryParse(s string) (json.RawMessage, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return json.RawMessage(s), true
	}
	// Bare scalars are not schema-shaped output.
	return nil, false
}

// largestDelimited returns the larger of the outermost [...] and {...}
// substrings, or "" when neither delimiter pair is present.
func largestDelimited(s string) string {
	arr := spanBetween(s, '[', ']')
	obj := spanBetween(s, '{', '}')
	if len(arr) >= len(obj) {
		return arr
	}
	return obj
}

func spanBetween(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
