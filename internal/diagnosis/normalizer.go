// Package diagnosis turns the free-form text returned by the vision model into
// a diagnosis triple. Nothing here performs I/O.
package diagnosis

import (
	"encoding/json"
	"strings"
)

// NoDetail is stored as reasoning when the model gave none.
const NoDetail = "No detail"

// Result is the normalized outcome of one model response.
type Result struct {
	Detected   bool
	Reasoning  string
	FungusType *string
	// Structured is false when the response could not be parsed as a JSON object
	// and the raw text was kept as reasoning.
	Structured bool
}

// Normalize extracts detectado/razonamiento/tipo_hongo from raw.
//
// Markdown code fences are stripped before a strict JSON parse. Anything that is
// not a single JSON object degrades to Detected=false with the raw text, unmodified,
// as reasoning.
func Normalize(raw string) Result {
	obj, ok := parseObject(stripFences(raw))
	if !ok {
		reasoning := raw
		if strings.TrimSpace(reasoning) == "" {
			reasoning = NoDetail
		}
		return Result{Detected: false, Reasoning: reasoning}
	}

	res := Result{Reasoning: NoDetail, Structured: true}

	if v, ok := obj["detectado"].(bool); ok {
		res.Detected = v
	}
	if v, ok := obj["razonamiento"].(string); ok && strings.TrimSpace(v) != "" {
		res.Reasoning = v
	}
	if v, ok := obj["tipo_hongo"].(string); ok {
		res.FungusType = &v
	}

	return res
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseObject(s string) (map[string]interface{}, bool) {
	// json.Unmarshal rejects trailing data after the first value.
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}

	obj, ok := v.(map[string]interface{})
	return obj, ok
}
