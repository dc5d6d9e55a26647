package response

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		variants []string
		closing  string
		benefits string
	}{
		{
			name:     "plain object",
			raw:      `{"benefits":"• seals gaps","variants":["A","B"],"closing":"Ready?"}`,
			variants: []string{"A", "B"},
			closing:  "Ready?",
			benefits: "• seals gaps",
		},
		{
			name:     "wrapped in composition",
			raw:      `{"composition":{"benefits":"b","variants":["A"],"closing":"C"}}`,
			variants: []string{"A"},
			closing:  "C",
			benefits: "b",
		},
		{
			name:     "fenced",
			raw:      "```json\n{\"variants\":[\"A\"],\"closing\":\"C\"}\n```",
			variants: []string{"A"},
			closing:  "C",
		},
		{
			name:     "leading and trailing prose",
			raw:      "Sure! Here's the plan: {\"variants\":[\"A\"],\"closing\":\"C\"} Let me know if you'd like changes.",
			variants: []string{"A"},
			closing:  "C",
		},
		{
			name:     "mixed variants",
			raw:      `{"variants":["  one  ", 2, {"content":"three"}, {"content":["four","five"]}, "", null, true, {"sms":"hi"}],"closing":["line 1","line 2"]}`,
			variants: []string{"one", "2", "three", "four\nfive", `{"sms":"hi"}`},
			closing:  "line 1\nline 2",
		},
		{
			name:     "scalar variant",
			raw:      `{"variants":"just one","closing":{"content":"nested close"}}`,
			variants: []string{"just one"},
			closing:  "nested close",
		},
		{
			name:     "code block in prose before the object",
			raw:      "Use `x`:\n```bash\nls\n```\nHere: {\"variants\":[\"a\"],\"closing\":\"c\"}",
			variants: []string{"a"},
			closing:  "c",
		},
		{
			name:     "fence inside a string value",
			raw:      "```json\n{\"variants\":[\"run ```make``` first\",\"two\"],\"closing\":\"bye\"}\n```",
			variants: []string{"run ```make``` first", "two"},
			closing:  "bye",
		},
		{
			name:     "single line fence",
			raw:      "```json{\"variants\":[\"A\"],\"closing\":\"C\"}```",
			variants: []string{"A"},
			closing:  "C",
		},
		{
			name:     "truncated object is repaired",
			raw:      `{"variants": ["Roof first", "Full shed"], "closing": "Book a quote"`,
			variants: []string{"Roof first", "Full shed"},
			closing:  "Book a quote",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if diff := cmp.Diff(tt.variants, res.Variants); diff != "" {
				t.Fatalf("variants mismatch (-want +got):\n%s", diff)
			}
			if res.Closing != tt.closing {
				t.Fatalf("closing = %q, want %q", res.Closing, tt.closing)
			}
			if res.Benefits != tt.benefits {
				t.Fatalf("benefits = %q, want %q", res.Benefits, tt.benefits)
			}
			if res.Defaulted {
				t.Fatal("nothing should have been defaulted")
			}
		})
	}
}

func TestNormalizeFallsBackToDefaults(t *testing.T) {
	for _, raw := range []string{"", "   ", "I cannot help with that.", "```\nnot json\n```"} {
		res, err := Normalize(raw)
		if !errors.Is(err, ErrParseFailed) {
			t.Fatalf("Normalize(%q) error = %v, want ErrParseFailed", raw, err)
		}
		if diff := cmp.Diff(Default(), res); diff != "" {
			t.Fatalf("Normalize(%q) should return defaults (-want +got):\n%s", raw, diff)
		}
	}
}

func TestNormalizeEmptyFieldsUseDefaults(t *testing.T) {
	res, err := Normalize(`{"benefits":"kept","variants":[" ", null],"closing":"  "}`)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if diff := cmp.Diff(DefaultVariants, res.Variants); diff != "" {
		t.Fatalf("variants mismatch (-want +got):\n%s", diff)
	}
	if res.Closing != DefaultClosing || !res.Defaulted {
		t.Fatalf("expected default closing and Defaulted, got %+v", res)
	}
	if res.Benefits != "kept" {
		t.Fatalf("benefits = %q", res.Benefits)
	}
}

func TestDefaultReturnsFreshSlice(t *testing.T) {
	d := Default()
	d.Variants[0] = "changed"
	if DefaultVariants[0] == "changed" {
		t.Fatal("Default must not expose the shared slice")
	}
}

func TestFindJSONCandidates(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"none", "no braces here", nil},
		{"single", `x {"a":1} y`, []string{`{"a":1}`}},
		{"nested", `{"a":{"b":2}}`, []string{`{"a":{"b":2}}`}},
		{"two", `{"a":1} and {"b":2}`, []string{`{"a":1}`, `{"b":2}`}},
		{"brace in string", `{"a":"}{"}`, []string{`{"a":"}{"}`}},
		{"escaped quote", `{"a":"say \"}\""}`, []string{`{"a":"say \"}\""}`}},
		{"stray quote in prose", `it's "great" {"a":1}`, []string{`{"a":1}`}},
		{"unbalanced", `{"a":1`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, findJSONCandidates(tt.in)); diff != "" {
				t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
