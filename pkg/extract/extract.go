// Package extract pulls a single JSON record out of free-form oracle text.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRecord means neither the whole text nor any balanced block parsed.
	ErrNoRecord = errors.New("no structured record found")

	// ErrWrongShape means a record was found but did not fit the target.
	ErrWrongShape = errors.New("structured record has wrong shape")
)

// Validator is implemented by decode targets that check their own content.
type Validator interface {
	Validate() error
}

// Extract returns the first well-formed JSON object in text.
// The whole text is tried first, then the first brace-balanced block.
func Extract(text string) (json.RawMessage, error) {
	trimmed := stripFences(strings.TrimSpace(text))
	if trimmed == "" {
		return nil, ErrNoRecord
	}

	if isObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	block, ok := firstBalancedBlock(trimmed)
	if !ok || !isObject(block) {
		return nil, ErrNoRecord
	}
	return json.RawMessage(block), nil
}

// Into extracts a record from text and decodes it into v.
func Into(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrWrongShape, err)
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrWrongShape, err)
		}
	}
	return nil
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var fields map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &fields) == nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// firstBalancedBlock scans for the first '{' and returns the text up to its
// matching '}'. Braces inside JSON strings are ignored.
func firstBalancedBlock(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Bool decodes the loose boolean forms oracles tend to emit.
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case bool:
		*b = Bool(v)
		return nil
	case float64:
		*b = v != 0
		return nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1", "是", "对":
			*b = true
			return nil
		case "false", "no", "n", "0", "否", "", "不":
			*b = false
			return nil
		}
		return fmt.Errorf("unrecognised boolean %q", v)
	}
	return fmt.Errorf("unrecognised boolean %s", string(data))
}
