// Package prompt renders the system and user messages for one composition.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"salescomposer/internal/domain"
)

const (
	DefaultTone = "Confident, practical, plain-spoken; talk like a tradie, not a brochure"

	// ContractKey names the JSON object the model must return.
	ContractKey = "composition"
)

var DefaultForbidden = []string{"cheap", "guarantee of savings", "greenwashing claims"}

type Prompt struct {
	System string
	User   string
}

type Inputs struct {
	Feedback      []domain.FeedbackEntry
	Overrides     []domain.GlobalOverride
	Snippets      []domain.KBSnippet
	Calc          domain.CalcSummary
	CustomerNotes string
}

type Builder struct {
	tone      string
	forbidden []string
}

func NewBuilder(tone string, forbidden []string) Builder {
	if strings.TrimSpace(tone) == "" {
		tone = DefaultTone
	}
	if len(forbidden) == 0 {
		forbidden = DefaultForbidden
	}
	return Builder{tone: tone, forbidden: forbidden}
}

// Build is pure: the same Inputs always produce the same Prompt. Feedback is
// rendered in the order given, which callers keep as priority order.
func (b Builder) Build(in Inputs) Prompt {
	var sb strings.Builder

	sb.WriteString("You are the YetiFoam Sales Benefits Composer.\n\n")

	sb.WriteString("=== CRITICAL OVERRIDES (HIGHEST PRIORITY) ===\n")
	if len(in.Feedback) > 0 {
		sb.WriteString("\nUSER FEEDBACK (APPLIES FIRST, OVERRIDES ALL OTHER RULES):\n")
		for _, fb := range in.Feedback {
			fmt.Fprintf(&sb, "\nFeedback %s | User said: %q\n", fb.ID, fb.UserFeedback)
			for _, rule := range fb.AppliedRules {
				fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(string(fb.Priority)), rule)
			}
		}
	}
	if len(in.Overrides) > 0 {
		sb.WriteString("\nGLOBAL OVERRIDES:\n")
		for _, o := range in.Overrides {
			fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(string(o.Priority)), o.Rule)
		}
	}
	if len(in.Feedback) == 0 && len(in.Overrides) == 0 {
		sb.WriteString("(none)\n")
	}
	sb.WriteString("=== END CRITICAL OVERRIDES ===\n\n")

	sb.WriteString("MISSION:\n")
	sb.WriteString("Transform the customer's shed details and notes into cascading benefit bullets with embedded competitor comparisons.\n\n")

	sb.WriteString("PRIMARY KNOWLEDGE BASE:\n")
	if len(in.Snippets) == 0 {
		sb.WriteString("(no matching snippets)\n")
	}
	for i, s := range in.Snippets {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, s.ID, s.Text)
		if s.CompetitorContrast != "" {
			fmt.Fprintf(&sb, "   Comparison: %s\n", s.CompetitorContrast)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("CUSTOMER SHED DETAILS:\n")
	sb.WriteString("- Materials: " + describeMaterials(in.Calc.Materials) + "\n")
	options := "full shed"
	if len(in.Calc.Options) > 0 {
		options = strings.Join(in.Calc.Options, ", ")
	}
	sb.WriteString("- Options: " + options + "\n")
	d := in.Calc.Dimensions
	fmt.Fprintf(&sb, "- Dimensions: %sm x %sm x %sm\n\n", num(d.L), num(d.W), num(d.H))

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Apply every critical override above before anything else.\n")
	sb.WriteString("2. Read the customer's situation as a whole, not keyword by keyword.\n")
	sb.WriteString("3. Build benefit cascades 3-6 levels deep.\n")
	sb.WriteString("4. Embed competitor comparisons inside the cascades.\n")
	sb.WriteString("5. Reference the thermal-bridging, structural and condensation triad where it applies.\n")
	sb.WriteString("6. Bullets only. No greeting, no sign-off.\n")
	sb.WriteString("7. Return only the JSON described below.\n\n")

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString(OutputContract)
	sb.WriteString("\n\n")

	sb.WriteString("TONE: " + b.tone + "\n")
	sb.WriteString("FORBIDDEN: " + strings.Join(b.forbidden, ", ") + "\n")
	sb.WriteString("BEGIN COMPOSITION.")

	return Prompt{
		System: sb.String(),
		User:   fmt.Sprintf("Customer notes: %q\nGenerate cascading benefit bullets now.", in.CustomerNotes),
	}
}

// OutputContract is the reply shape the response normalizer expects.
const OutputContract = `{
  "` + ContractKey + `": {
    "benefits": "<markdown bullets>",
    "comparison": "<competitor analysis>",
    "objections": "<rebuttal points>",
    "variants": ["<variant 1>", "<variant 2>"],
    "closing": "<one closing line>"
  }
}`

func describeMaterials(m domain.Materials) string {
	var members []string
	for _, s := range m.Members {
		if s = strings.TrimSpace(s); s != "" {
			members = append(members, s)
		}
	}
	cladding := strings.TrimSpace(m.Cladding)
	if len(members) == 0 {
		return cladding + " cladding"
	}
	return cladding + " cladding, " + strings.Join(members, ", ") + " framing"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
