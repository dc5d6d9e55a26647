package feedback

import (
	"regexp"
	"strings"

	"salescomposer/internal/domain"
)

// extractor inspects the raw and lowercased feedback text and optionally
// yields one rule.
type extractor func(raw, lower string) (string, bool)

func fixed(re *regexp.Regexp, rule string) extractor {
	return func(_, lower string) (string, bool) {
		return rule, re.MatchString(lower)
	}
}

var (
	reSimplify  = regexp.MustCompile(`(simpler|simple language|too technical)`)
	reShorten   = regexp.MustCompile(`(shorter|too long|concise)`)
	reMoreData  = regexp.MustCompile(`(more data|numbers|statistics)`)
	reCompare   = regexp.MustCompile(`(competitor|comparison)`)
	reCascade   = regexp.MustCompile(`cascade|depth|levels`)
	reLessDepth = regexp.MustCompile(`(less|shorter)`)
	reLeadWith  = regexp.MustCompile(`(?i)lead with\s+['"]?([^'"]+)['"]?`)
	reAbsolute  = regexp.MustCompile(`(always|never)`)
	reLongevity = regexp.MustCompile(`(forever|25 years|longevity)`)
	reMulti     = regexp.MustCompile(`(4 product|multi-product|single product)`)
	reCritical  = regexp.MustCompile(`(never|always|critical|must)`)
	reHigh      = regexp.MustCompile(`(important|should|need)`)
	reMedium    = regexp.MustCompile(`(prefer|better)`)
)

// ruleLadder runs in order; every extractor is independent of the others.
var ruleLadder = []extractor{
	fixed(reSimplify, "Use simpler language, avoid technical jargon"),
	fixed(reShorten, "Reduce output length, be more concise"),
	fixed(reMoreData, "Include more specific data points and percentages"),
	fixed(reCompare, "Increase competitor comparison emphasis"),
	func(_, lower string) (string, bool) {
		if !reCascade.MatchString(lower) {
			return "", false
		}
		if reLessDepth.MatchString(lower) {
			return "Reduce cascade depth (max 3 levels)", true
		}
		return "Increase cascade depth (5+ levels)", true
	},
	func(raw, _ string) (string, bool) {
		m := reLeadWith.FindStringSubmatch(raw)
		if m == nil {
			return "", false
		}
		return "Lead all outputs with: " + m[1], true
	},
	func(raw, lower string) (string, bool) {
		return raw, reAbsolute.MatchString(lower)
	},
	fixed(reLongevity, `Emphasize longevity and "lasts forever" angle in first 2 bullets`),
	fixed(reMulti, "Lead with 4-product vs 1-product comparison"),
}

// ExtractRules turns free-text feedback into prompt rules. When nothing
// matches, the feedback itself becomes the only rule.
func ExtractRules(feedback string) []string {
	lower := strings.ToLower(feedback)
	var rules []string
	for _, ex := range ruleLadder {
		if rule, ok := ex(feedback, lower); ok {
			rules = append(rules, rule)
		}
	}
	if len(rules) == 0 {
		return []string{feedback}
	}
	return rules
}

// DeterminePriority grades feedback by how imperative its wording is.
func DeterminePriority(feedback string) domain.Priority {
	lower := strings.ToLower(feedback)
	switch {
	case reCritical.MatchString(lower):
		return domain.PriorityCritical
	case reHigh.MatchString(lower):
		return domain.PriorityHigh
	case reMedium.MatchString(lower):
		return domain.PriorityMedium
	}
	return domain.PriorityMedium
}
