package knowledge

import (
	"strings"

	"salescomposer/internal/domain"
)

// Select returns the benefits whose triggers fit sc, followed by the
// comparisons for competitor and every generic comparison. The result is
// deduplicated by id, first occurrence winning, and capped at the library
// limit.
func (l *Library) Select(sc domain.ScenarioContext, competitor string) []domain.KBSnippet {
	materials := make([]string, 0, len(sc.Materials))
	for _, m := range sc.Materials {
		materials = append(materials, strings.ToLower(m))
	}

	var picked []domain.KBSnippet
	for _, b := range l.benefits {
		if materialMatch(b.MaterialTrigger, materials) || scenarioMatch(b.ScenarioTrigger, sc.DetectedScenarios) {
			picked = append(picked, b)
		}
	}
	if competitor != "" {
		for _, c := range l.comparisons {
			if c.Competitor == competitor || c.Competitor == GenericCompetitor {
				picked = append(picked, c)
			}
		}
	}

	seen := make(map[string]struct{}, len(picked))
	out := make([]domain.KBSnippet, 0, min(len(picked), l.limit))
	for _, s := range picked {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
		if len(out) == l.limit {
			break
		}
	}
	return out
}

// materialMatch reports whether any trigger is a substring of any material.
// materials must already be lowercased.
func materialMatch(triggers, materials []string) bool {
	for _, t := range triggers {
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		for _, m := range materials {
			if strings.Contains(m, t) {
				return true
			}
		}
	}
	return false
}

func scenarioMatch(triggers, tags []string) bool {
	for _, t := range triggers {
		if t == "" {
			continue
		}
		for _, tag := range tags {
			if strings.Contains(tag, t) || strings.Contains(t, tag) {
				return true
			}
		}
	}
	return false
}

// IDs lists snippet ids in order.
func IDs(snippets []domain.KBSnippet) []string {
	out := make([]string, 0, len(snippets))
	for _, s := range snippets {
		out = append(out, s.ID)
	}
	return out
}
