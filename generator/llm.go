package generator

import (
	"context"
	"strings"
)

// LLMClient abstracts the generative model so providers can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMFunc adapts a function to LLMClient.
type LLMFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f LLMFunc) Complete(ctx context.Context, prompt Prompt) (string, error) { return f(ctx, prompt) }

// LLMSettings is the provider configuration shared by the concrete clients.
type LLMSettings struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt is the message set sent to the model for one call.
type Prompt struct {
	// Stage names the pipeline stage the call belongs to.
	Stage   string
	System  string
	User    string
	History []Message
}

// Message is one prior turn given to the model as context.
type Message struct {
	Role    string
	Content string
}

// Text renders the system and user parts as one string, as recorded in session history.
func (p Prompt) Text() string {
	if strings.TrimSpace(p.System) == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}
