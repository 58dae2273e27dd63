package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoJSONObject = errors.New("llm: response contained no JSON object")

// ExtractJSONObject returns the first balanced top-level JSON object in text, tolerating
// markdown code fences and prose around it.
func ExtractJSONObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNoJSONObject
	}
	depth := 0
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoJSONObject
}

// DecodeObject extracts the JSON object from a model response into a generic map.
func DecodeObject(text string) (map[string]any, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode response object: %w", err)
	}
	return out, nil
}
