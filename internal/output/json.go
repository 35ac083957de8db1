package output

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON strips markdown code fences and, if the result still does not
// parse, removes trailing commas before closing brackets. It returns an
// error when the text is not valid JSON after repair.
func RepairJSON(raw string) (string, error) {
	repaired := stripFences(raw)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}

	repaired = trailingCommaPattern.ReplaceAllString(repaired, "$1")
	if !json.Valid([]byte(repaired)) {
		return "", fmt.Errorf("%w: text is not valid JSON after repair", ErrNoJSON)
	}
	return repaired, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the first balanced JSON object or array embedded in
// text. Brackets inside string literals are ignored. The returned slice is
// balanced but not necessarily valid JSON.
func ExtractJSON(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	for start >= 0 {
		if end, ok := balancedEnd(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexAny(text[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd finds the index of the bracket closing the one at start.
func balancedEnd(text string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseJSON recovers a JSON document from model text: the whole text after
// repair, else the first embedded document after repair.
func ParseJSON(text string) (json.RawMessage, error) {
	if repaired, err := RepairJSON(text); err == nil {
		return json.RawMessage(repaired), nil
	}

	embedded, ok := ExtractJSON(stripFences(text))
	if !ok {
		return nil, ErrNoJSON
	}
	repaired, err := RepairJSON(embedded)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(repaired), nil
}
