package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"idea2blog/extract"
)

// MockLLM is an offline stand-in for local runs; it never calls an external model.
// It answers every stage with the markers that stage's schema requires.
type MockLLM struct {
	Narration extract.Schema
	Blog      extract.Schema
}

const mockExcerptRunes = 280

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	excerpt := m.scrub(prompt.User)
	if r := []rune(excerpt); len(r) > mockExcerptRunes {
		excerpt = string(r[:mockExcerptRunes]) + "..."
	}

	var sb strings.Builder
	switch prompt.Stage {
	case m.Blog.Name:
		f := m.Blog.Fields[0]
		sb.WriteString(f.Open())
		sb.WriteString("\n# Mock blog post\n\nThis post was produced offline from the following draft:\n\n")
		sb.WriteString("```\n" + excerpt + "\n```\n")
		sb.WriteString(f.Close())
	case m.Narration.Name:
		bodies := map[string]string{
			extract.FieldNarrative:     "Mock narrative built from the prompt:\n\n```\n" + excerpt + "\n```",
			extract.FieldGrowthPoints:  "- Explore adjacent domains\n- Look for second-order effects",
			extract.FieldContributions: "- Added structure: grouped the ideas into one argument",
		}
		for _, f := range m.Narration.Fields {
			body := bodies[f.Name]
			if body == "" {
				body = "mock " + f.Name
			}
			sb.WriteString(f.Open() + "\n" + body + "\n" + f.Close() + "\n\n")
		}
	default:
		return "", Rejected(fmt.Errorf("mock llm: unknown stage %q", prompt.Stage))
	}
	return sb.String(), nil
}

// scrub drops schema markers from echoed prompt text so the reply stays parseable.
func (m MockLLM) scrub(text string) string {
	var pairs []string
	for _, f := range append(append([]extract.Field(nil), m.Narration.Fields...), m.Blog.Fields...) {
		pairs = append(pairs, f.Open(), "", f.Close(), "")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Reply is one scripted model answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedLLM replays queued replies in order and records every prompt it receives.
// When the queue is empty it falls back to Fallback, or fails with ErrModelRejected.
type ScriptedLLM struct {
	Fallback func(Prompt) (string, error)

	mu      sync.Mutex
	replies []Reply
	prompts []Prompt
}

func NewScriptedLLM(replies ...Reply) *ScriptedLLM {
	return &ScriptedLLM{replies: replies}
}

// Push queues more replies.
func (s *ScriptedLLM) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *ScriptedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		fallback := s.Fallback
		s.mu.Unlock()
		if fallback != nil {
			return fallback(prompt)
		}
		return "", Rejected(errors.New("scripted llm: no reply queued"))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Text, r.Err
}

// Prompts returns a copy of the prompts received so far.
func (s *ScriptedLLM) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.prompts...)
}

// Calls reports how many prompts were received.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
