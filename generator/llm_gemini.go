package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiLLM implements LLMClient with the Google GenAI SDK.
type GeminiLLM struct {
	client   *genai.Client
	model    string
	settings LLMSettings
}

// NewGeminiLLM creates a Gemini API client.
func NewGeminiLLM(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or GEMINI_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiLLM{client: client, model: model, settings: *cfg}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, h := range prompt.History {
		var role genai.Role = genai.RoleUser
		if h.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(h.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt.User, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.generationConfig(prompt.System))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.Code, err)
		}
		return "", Unavailable(err)
	}
	return resp.Text(), nil
}

func (g *GeminiLLM) generationConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.settings.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(g.settings.Temperature))
	}
	if g.settings.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(g.settings.TopP))
	}
	if g.settings.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(g.settings.TopK))
	}
	if g.settings.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(g.settings.MaxOutputTokens)
	}
	return cfg
}
