package knowledge

import "strings"

const DefaultCascadeDepth = 5

// Cascade renders a chain of benefits starting at startID, following the first
// cascade_to link of each snippet. Each hop is indented one level further.
// Cycles and unknown ids end the chain.
func (l *Library) Cascade(startID string, maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = DefaultCascadeDepth
	}
	visited := make(map[string]bool)
	var b strings.Builder
	indent := ""
	for id := startID; id != "" && !visited[id] && len(visited) < maxDepth; {
		s, ok := l.byID[id]
		if !ok {
			break
		}
		visited[id] = true
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(indent + "• " + s.Text)
		if s.CompetitorContrast != "" {
			b.WriteString("\n" + indent + "  → " + s.CompetitorContrast)
		}
		indent += "  "
		id = ""
		if len(s.CascadeTo) > 0 {
			id = s.CascadeTo[0]
		}
	}
	return b.String()
}

// Template renders a stored cascade template by id.
func (l *Library) Template(id string) (string, bool) {
	for _, c := range l.cascades {
		if c.ID != id {
			continue
		}
		var b strings.Builder
		for _, step := range c.Chain {
			indent := strings.Repeat("  ", max(0, step.Level-1))
			b.WriteString(indent + "• " + step.Text + "\n")
			if step.Comparison != "" {
				b.WriteString(indent + "  → " + step.Comparison + "\n")
			}
			if step.Data != "" {
				b.WriteString(indent + "  → " + step.Data + "\n")
			}
		}
		return strings.TrimSpace(b.String()), true
	}
	return "", false
}
