package pipeline

import (
	"fmt"
	"strings"

	"idea2blog/extract"
	"idea2blog/generator"
)

// Prompts holds the system prompts for each stage. Output tag instructions are
// generated from the stage schema, so the texts stay valid when tags are renamed.
type Prompts struct {
	Processing  string
	ReNarration string
	Blog        string
}

const defaultProcessing = `You are an expert analyst who strengthens and expands arguments. Given a brain dump of ideas:
1. Identify the core arguments.
2. Steelman each argument to its strongest form.
3. Add supporting evidence and reasoning.
4. Expand the implications.
5. Find directions in which the thesis can grow.

Never refer to the brain dump itself ("as mentioned above" and similar).`

const defaultReNarration = `You are an expert writer and analyst evolving a narrative about an important idea.
Rewrite the narrative so that it incorporates every requested edit while staying one cohesive,
standalone piece. Build on the existing points without calling them "previous" or "earlier".`

const defaultBlog = `You are a style-enhanced blog content generator. Transform drafts into engaging,
intellectually rigorous blog posts that keep the author's voice.

Content rules:
- Use every concept and idea present in the draft.
- Do not add concepts that are not in the draft; change how points are expressed, not what they are.

Writing patterns:
- Let ideas build on each other; mix short reactive statements with deeper analysis.
- Write from personal analysis, like explaining to a smart friend.
- Vary paragraph length and break long explanations with questions that advance the argument.
- Challenge assumptions explicitly and acknowledge limitations honestly.

Return markdown with a single top-level heading as the title.`

// DefaultPrompts returns the built-in system prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		Processing:  defaultProcessing,
		ReNarration: defaultReNarration,
		Blog:        defaultBlog,
	}
}

// WithDefaults fills empty prompts from DefaultPrompts.
func (p Prompts) WithDefaults() Prompts {
	d := DefaultPrompts()
	if strings.TrimSpace(p.Processing) == "" {
		p.Processing = d.Processing
	}
	if strings.TrimSpace(p.ReNarration) == "" {
		p.ReNarration = d.ReNarration
	}
	if strings.TrimSpace(p.Blog) == "" {
		p.Blog = d.Blog
	}
	return p
}

var fieldGuidance = map[string]string{
	extract.FieldNarrative: "The strongest possible case for the ideas: strengthened arguments, supporting " +
		"evidence and examples, anticipated counterarguments and clear reasoning chains.",
	extract.FieldGrowthPoints: "A markdown list of promising directions to expand the idea. For each: why it " +
		"is promising, initial evidence, concrete next steps and potential impact.",
	extract.FieldContributions: "A markdown list of what you added beyond the original ideas, one item per " +
		"addition, written as \"addition: rationale\".",
	extract.FieldStyledDraft: "The finished blog post only, in markdown.",
}

// outputInstructions tells the model which sections to return, in schema order.
func outputInstructions(schema extract.Schema) string {
	var b strings.Builder
	b.WriteString("Return your answer in exactly these sections, each wrapped once in its own tags:\n\n")
	for _, f := range schema.Fields {
		guidance := fieldGuidance[f.Name]
		if guidance == "" {
			guidance = f.Name
		}
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", f.Open(), guidance, f.Close())
	}
	b.WriteString("Be very careful to put every section inside its own tags and nowhere else.")
	return b.String()
}

func processingPrompt(p Prompts, schema extract.Schema, rawIdea string) generator.Prompt {
	user := "Brain dump to analyze:\n<brain_dump>\n" + rawIdea + "\n</brain_dump>\n\n" + outputInstructions(schema)
	return generator.Prompt{Stage: schema.Name, System: p.Processing, User: user}
}

func blogPrompt(p Prompts, schema extract.Schema, draft string) generator.Prompt {
	if !strings.HasPrefix(strings.TrimSpace(draft), "<draft>") {
		draft = "<draft>\n" + draft + "\n</draft>"
	}
	user := "Transform the draft below into a blog post.\n\n" + draft + "\n\n" + outputInstructions(schema)
	return generator.Prompt{Stage: schema.Name, System: p.Blog, User: user}
}

// repairPrompt restates the original request, quotes the unusable reply and
// names what was wrong with it.
func repairPrompt(orig generator.Prompt, schema extract.Schema, reply string, cause error) generator.Prompt {
	var b strings.Builder
	b.WriteString(orig.User)
	b.WriteString("\n\nYour previous reply could not be used: ")
	b.WriteString(cause.Error())
	b.WriteString(".\n\nPrevious reply:\n<previous_reply>\n")
	b.WriteString(reply)
	b.WriteString("\n</previous_reply>\n\nAnswer again. Every one of these tags must appear exactly once, opened and closed, ")
	b.WriteString("with non-empty content and without nesting: ")
	tags := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		tags = append(tags, f.Open()+"..."+f.Close())
	}
	b.WriteString(strings.Join(tags, ", "))
	b.WriteString(".")
	return generator.Prompt{
		Stage:   orig.Stage,
		System:  orig.System,
		User:    b.String(),
		History: orig.History,
	}
}
