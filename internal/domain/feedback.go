package domain

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities critical=4 down to low=1. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", fmt.Errorf("unknown priority %q (want critical, high, medium or low)", s)
	}
	return p, nil
}

type FeedbackEntry struct {
	ID                     string          `json:"id"`
	Timestamp              time.Time       `json:"timestamp"`
	InputHash              string          `json:"input_hash"`
	ScenarioContext        ScenarioContext `json:"scenario_context"`
	GeneratedOutputSnippet string          `json:"generated_output_snippet"`
	UserFeedback           string          `json:"user_feedback"`
	AppliedRules           []string        `json:"applied_rules"`
	Priority               Priority        `json:"priority"`
	Active                 bool            `json:"active"`
	AppliesToScenarios     []string        `json:"applies_to_scenarios"`
}

type GlobalOverride struct {
	ID       string   `json:"id,omitempty"`
	Rule     string   `json:"rule"`
	Priority Priority `json:"priority"`
	Active   bool     `json:"active"`
}

type AuditEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	InputsHash    string    `json:"inputs_hash"`
	CustomerNotes string    `json:"customer_notes"`
	Materials     []string  `json:"materials"`
	Options       []string  `json:"options"`
	Region        string    `json:"region"`
	SnippetsUsed  []string  `json:"snippets_used"`
	FeedbackUsed  bool      `json:"feedback_used"`
	FeedbackIDs   []string  `json:"feedback_ids"`
	FallbackUsed  bool      `json:"fallback_used"`
	Provider      string    `json:"provider,omitempty"`
	OutputPreview string    `json:"output_preview"`
}
