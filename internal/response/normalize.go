// Package response turns raw model text into a composition, degrading to
// fixed default content when the text cannot be understood.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const DefaultClosing = "This solution ensures optimal insulation—ready to proceed?"

var DefaultVariants = []string{
	"Basic package: Covers core areas efficiently.",
	"Enhanced package: Includes member bands for durability.",
}

var ErrParseFailed = errors.New("llm reply does not contain a JSON object")

// wrapperKey is the object name the prompt asks the model to answer under.
const wrapperKey = "composition"

type Result struct {
	Benefits   string
	Comparison string
	Objections string
	Variants   []string
	Closing    string

	// Defaulted is set when variants or closing had to be filled from the
	// fixed defaults.
	Defaulted bool
}

// Default is the content returned when no usable reply exists.
func Default() Result {
	return Result{
		Variants:  append([]string(nil), DefaultVariants...),
		Closing:   DefaultClosing,
		Defaulted: true,
	}
}

const fence = "```"

// Normalize extracts a composition from raw. On ErrParseFailed the returned
// Result is Default(), so callers can always use it.
func Normalize(raw string) (Result, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return Default(), ErrParseFailed
	}
	if inner, ok := obj[wrapperKey].(map[string]any); ok {
		obj = inner
	}

	res := Result{
		Benefits:   coerce(obj["benefits"]),
		Comparison: coerce(obj["comparison"]),
		Objections: coerce(obj["objections"]),
		Variants:   variants(obj["variants"]),
		Closing:    coerce(obj["closing"]),
	}
	if len(res.Variants) == 0 {
		res.Variants = append([]string(nil), DefaultVariants...)
		res.Defaulted = true
	}
	if res.Closing == "" {
		res.Closing = DefaultClosing
		res.Defaulted = true
	}
	return res, nil
}

// extractObject tries, in order: the text with a surrounding code fence
// removed, each balanced {...} span inside it, the same two steps on the
// unstripped text, and finally a repaired version of a truncated object.
func extractObject(raw string) (map[string]any, bool) {
	texts := []string{stripFence(raw)}
	if trimmed := strings.TrimSpace(raw); trimmed != texts[0] {
		texts = append(texts, trimmed)
	}
	for _, text := range texts {
		if obj, ok := decodeObject(text); ok {
			return obj, true
		}
		for _, c := range findJSONCandidates(text) {
			if obj, ok := decodeObject(c); ok {
				return obj, true
			}
		}
	}
	for _, text := range texts {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			continue
		}
		repaired, err := jsonrepair.JSONRepair(text[start:])
		if err != nil {
			continue
		}
		if obj, ok := decodeObject(repaired); ok {
			return obj, true
		}
	}
	return nil, false
}

// stripFence removes a fence that opens the reply, cutting at the last
// closing fence so backticks inside string values survive. A missing closing
// fence is what a truncated reply looks like.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, fence) {
		return text
	}
	text = strings.TrimPrefix(text, fence)
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimLeft(text, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.LastIndex(text, fence); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Trailing garbage means this was not a single object.
	if dec.More() {
		return nil, false
	}
	return obj, true
}

func variants(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if s := coerce(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := coerce(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerce flattens a decoded JSON value into trimmed text. Arrays are joined
// with newlines and objects with a content field are unwrapped; any other
// object is re-encoded as JSON. Booleans and nulls yield "".
func coerce(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerce(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		switch c := t["content"].(type) {
		case string, []any:
			return coerce(c)
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
	return ""
}
