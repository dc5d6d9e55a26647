package domain

import "strings"

type Dimensions struct {
	L float64 `json:"L" yaml:"L" validate:"gt=0"`
	W float64 `json:"W" yaml:"W" validate:"gt=0"`
	H float64 `json:"H" yaml:"H" validate:"gt=0"`
}

type Areas struct {
	Roof  float64 `json:"roof,omitempty" yaml:"roof,omitempty" validate:"gte=0"`
	Walls float64 `json:"walls,omitempty" yaml:"walls,omitempty" validate:"gte=0"`
	Floor float64 `json:"floor,omitempty" yaml:"floor,omitempty" validate:"gte=0"`
}

type Materials struct {
	Cladding string   `json:"cladding" yaml:"cladding" validate:"required"`
	Members  []string `json:"members" yaml:"members"`
}

// CalcSummary is the calculator's snapshot of a shed configuration. The
// pipeline treats it as read-only.
type CalcSummary struct {
	Dimensions Dimensions `json:"dimensions" yaml:"dimensions"`
	Areas      Areas      `json:"areas" yaml:"areas"`
	Materials  Materials  `json:"materials" yaml:"materials"`
	Options    []string   `json:"options" yaml:"options"`
}

// MaterialList returns the cladding followed by the structural members,
// skipping blanks.
func (c CalcSummary) MaterialList() []string {
	out := make([]string, 0, 1+len(c.Materials.Members))
	if s := strings.TrimSpace(c.Materials.Cladding); s != "" {
		out = append(out, s)
	}
	for _, m := range c.Materials.Members {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Region struct {
	Suburb string `json:"suburb" yaml:"suburb"`
	State  string `json:"state" yaml:"state"`
}

func (r Region) String() string {
	switch {
	case r.Suburb == "" && r.State == "":
		return ""
	case r.State == "":
		return r.Suburb
	case r.Suburb == "":
		return r.State
	}
	return r.Suburb + ", " + r.State
}

type ComposeInput struct {
	CustomerNotes     string      `json:"customer_notes" yaml:"customer_notes" validate:"max=4000"`
	CalcSummary       CalcSummary `json:"calc_summary" yaml:"calc_summary"`
	Region            Region      `json:"region" yaml:"region"`
	PreferredProvider string      `json:"preferred_provider,omitempty" yaml:"preferred_provider,omitempty" validate:"omitempty,oneof=openai anthropic"`
}

// ScenarioContext is derived per request and never stored on its own.
type ScenarioContext struct {
	CustomerNotes     string   `json:"customer_notes"`
	Materials         []string `json:"materials"`
	Options           []string `json:"options"`
	DetectedScenarios []string `json:"detected_scenarios,omitempty"`
}

type KBSnippet struct {
	ID                 string   `json:"id" yaml:"id"`
	Topic              string   `json:"topic" yaml:"topic"`
	Competitor         string   `json:"competitor,omitempty" yaml:"competitor,omitempty"`
	MaterialTrigger    []string `json:"material_trigger,omitempty" yaml:"material_trigger,omitempty"`
	ScenarioTrigger    []string `json:"scenario_trigger,omitempty" yaml:"scenario_trigger,omitempty"`
	Text               string   `json:"text" yaml:"text"`
	CompetitorContrast string   `json:"competitor_contrast,omitempty" yaml:"competitor_contrast,omitempty"`
	CascadeTo          []string `json:"cascade_to,omitempty" yaml:"cascade_to,omitempty"`
	DataSource         string   `json:"data_source,omitempty" yaml:"data_source,omitempty"`
	Tags               []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type ComposeMeta struct {
	RequestID    string   `json:"request_id,omitempty"`
	SnippetsUsed []string `json:"snippets_used"`
	FeedbackUsed bool     `json:"feedback_used"`
	FeedbackIDs  []string `json:"feedback_ids"`
	FallbackUsed bool     `json:"fallback_used"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type ComposeOutput struct {
	Meta       ComposeMeta `json:"meta"`
	Benefits   string      `json:"benefits"`
	Comparison string      `json:"comparison"`
	Objections string      `json:"objections"`
	Variants   []string    `json:"variants"`
	Closing    string      `json:"closing"`
}

// Preview returns the text used for audit previews and feedback snippets:
// the benefits section when present, otherwise the joined variants.
func (o ComposeOutput) Preview() string {
	if strings.TrimSpace(o.Benefits) != "" {
		return o.Benefits
	}
	return strings.Join(o.Variants, "\n")
}
