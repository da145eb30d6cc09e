package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoJSON is returned when model output contains no JSON value.
var ErrNoJSON = errors.New("no JSON object or array in model output")

// CleanModelJSON strips markdown fences and surrounding prose from a model
// response, keeping the outermost object or array.
func CleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}

	open := strings.IndexAny(s, "{[")
	if open == -1 {
		return s
	}
	closer := "}"
	if s[open] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > open {
		s = s[open : end+1]
	}
	return strings.TrimSpace(s)
}

// DecodeModelJSON cleans and decodes a model response. Numbers are kept as
// json.Number so amounts never pass through float64.
func DecodeModelJSON(raw string) (any, error) {
	cleaned := CleanModelJSON(raw)
	if cleaned == "" || (cleaned[0] != '{' && cleaned[0] != '[') {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("DecodeModelJSON: decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("DecodeModelJSON: trailing data after JSON value")
	}
	return v, nil
}
