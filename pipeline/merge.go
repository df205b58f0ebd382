package pipeline

import (
	"fmt"
	"strings"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/session"
)

// Merger builds the re-narration prompt from the current narrative state and
// the user's pending edits.
type Merger struct {
	System string
	Schema extract.Schema
}

// Merge returns a stage-1 prompt that carries the narrative, growth points and
// contributions, and lists every edit verbatim as a must-apply requirement.
// Merge is pure.
func (m Merger) Merge(narrative string, growthPoints []string, contributions []session.Contribution, edits []string) generator.Prompt {
	var b strings.Builder
	b.WriteString("Current narrative state:\n<current_narrative>\n")
	b.WriteString(narrative)
	b.WriteString("\n</current_narrative>\n\n")

	b.WriteString("<growth_points>\n")
	for _, g := range growthPoints {
		b.WriteString("- " + g + "\n")
	}
	b.WriteString("</growth_points>\n\n")

	b.WriteString("<ai_contributions>\n")
	for _, c := range contributions {
		b.WriteString("- " + formatContribution(c) + "\n")
	}
	b.WriteString("</ai_contributions>\n\n")

	b.WriteString("Edits requested by the author. Each one is a requirement: the new narrative must ")
	b.WriteString("reflect every edit, and an edit asking to keep something means it must be retained.\n")
	b.WriteString("<user_edits>\n")
	for i, e := range edits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	b.WriteString("</user_edits>\n\n")

	b.WriteString(outputInstructions(m.Schema))
	return generator.Prompt{Stage: m.Schema.Name, System: m.System, User: b.String()}
}

func formatContribution(c session.Contribution) string {
	if c.Rationale == "" {
		return c.Addition
	}
	return c.Addition + ": " + c.Rationale
}

// ParseContribution splits one contribution item into the addition and its
// rationale. The earliest colon, spaced dash or line break separates them;
// markdown emphasis around the addition is dropped.
func ParseContribution(item string) session.Contribution {
	item = strings.TrimSpace(item)
	cut := -1
	width := 0
	for _, sep := range []string{":** ", ": ", " \u2014 ", " - ", "\n"} {
		if i := strings.Index(item, sep); i > 0 && (cut < 0 || i < cut) {
			cut, width = i, len(sep)
		}
	}
	if cut < 0 {
		return session.Contribution{Addition: strings.Trim(item, "*_ ")}
	}
	return session.Contribution{
		Addition:  strings.Trim(strings.TrimSpace(item[:cut]), "*_ "),
		Rationale: strings.TrimSpace(strings.TrimLeft(item[cut+width:], "*_ ")),
	}
}

func parseContributions(items []string) []session.Contribution {
	out := make([]session.Contribution, 0, len(items))
	for _, it := range items {
		if c := ParseContribution(it); c.Addition != "" || c.Rationale != "" {
			out = append(out, c)
		}
	}
	return out
}
