// Package config loads process configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/pipeline"
	"idea2blog/publisher"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "config/config.yaml"

// LLM providers.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderMock     = "mock"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm" envPrefix:"IDEA2BLOG_LLM_"`
	Gateway   GatewayConfig   `yaml:"gateway" envPrefix:"IDEA2BLOG_GATEWAY_"`
	Sessions  SessionsConfig  `yaml:"sessions" envPrefix:"IDEA2BLOG_SESSIONS_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"IDEA2BLOG_SERVER_"`
	Archive   ArchiveConfig   `yaml:"archive" envPrefix:"IDEA2BLOG_ARCHIVE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"IDEA2BLOG_TELEMETRY_"`
	Stages    StagesConfig    `yaml:"stages"`
	Prompts   PromptsConfig   `yaml:"prompts"`
}

// defaultModels is used when llm.model is empty.
var defaultModels = map[string]string{
	ProviderGemini:   "gemini-2.0-flash",
	ProviderOpenAI:   "gpt-4o-mini",
	ProviderDeepSeek: "deepseek-chat",
	ProviderMock:     "mock",
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string { return defaultModels[provider] }

type LLMConfig struct {
	Provider        string  `yaml:"provider" env:"PROVIDER"`
	Model           string  `yaml:"model" env:"MODEL"`
	APIKey          string  `yaml:"api_key" env:"API_KEY"`
	BaseURL         string  `yaml:"base_url" env:"BASE_URL"`
	Temperature     float64 `yaml:"temperature" env:"TEMPERATURE"`
	TopP            float64 `yaml:"top_p" env:"TOP_P"`
	TopK            int     `yaml:"top_k" env:"TOP_K"`
	MaxOutputTokens int     `yaml:"max_output_tokens" env:"MAX_OUTPUT_TOKENS"`
}

type GatewayConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

type SessionsConfig struct {
	TTL                 time.Duration `yaml:"ttl" env:"TTL"`
	SweepInterval       time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	HistoryContextTurns int           `yaml:"history_context_turns" env:"HISTORY_CONTEXT_TURNS"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

type ArchiveConfig struct {
	Kind string `yaml:"kind" env:"KIND"`
	Path string `yaml:"path" env:"PATH"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

// StagesConfig names the output tags of each stage.
type StagesConfig struct {
	Narration NarrationTags `yaml:"narration"`
	Blog      BlogTags      `yaml:"blog"`
}

type NarrationTags struct {
	Narrative     string `yaml:"narrative"`
	GrowthPoints  string `yaml:"growth_points"`
	Contributions string `yaml:"ai_contributions"`
}

type BlogTags struct {
	StyledDraft string `yaml:"styled_draft"`
}

// PromptsConfig overrides the built-in system prompts. Empty keeps the default.
type PromptsConfig struct {
	Processing  string `yaml:"processing"`
	ReNarration string `yaml:"renarration"`
	Blog        string `yaml:"blog"`
}

// providerKeys are the conventional per-provider key variables, used when
// no key is configured explicitly.
type providerKeys struct {
	Gemini   string `env:"GEMINI_API_KEY"`
	OpenAI   string `env:"OPENAI_API_KEY"`
	DeepSeek string `env:"DEEPSEEK_API_KEY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Temperature:     0.7,
			TopP:            0.95,
			TopK:            64,
			MaxOutputTokens: 8192,
		},
		Gateway: GatewayConfig{
			CallTimeout: 120 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
		},
		Sessions: SessionsConfig{
			TTL:                 2 * time.Hour,
			SweepInterval:       5 * time.Minute,
			HistoryContextTurns: 4,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 15 * time.Minute,
		},
		Archive: ArchiveConfig{Kind: publisher.ArchiveNone},
		Telemetry: TelemetryConfig{
			ServiceName: "idea2blog",
		},
		Stages: StagesConfig{
			Narration: NarrationTags{
				Narrative:     "connected_narrative",
				GrowthPoints:  "growth_points",
				Contributions: "ai_contributions",
			},
			Blog: BlogTags{StyledDraft: "styled_draft"},
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment; nil means the process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		var keys providerKeys
		if err := env.ParseWithOptions(&keys, opts); err != nil {
			return Config{}, fmt.Errorf("parse env: %w", err)
		}
		switch cfg.LLM.Provider {
		case ProviderGemini:
			cfg.LLM.APIKey = keys.Gemini
		case ProviderOpenAI:
			cfg.LLM.APIKey = keys.OpenAI
		case ProviderDeepSeek:
			cfg.LLM.APIKey = keys.DeepSeek
		}
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderGemini, ProviderOpenAI, ProviderDeepSeek:
		if c.LLM.APIKey == "" {
			add("llm.api_key is required for provider %s", c.LLM.Provider)
		}
		if c.LLM.Provider == ProviderDeepSeek && c.LLM.BaseURL == "" {
			add("llm.base_url is required for provider deepseek (OpenAI-compatible endpoint)")
		}
	default:
		add("llm.provider %q not supported", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		add("llm.top_p must be within [0, 1], got %v", c.LLM.TopP)
	}
	if c.LLM.TopK < 0 || c.LLM.MaxOutputTokens < 0 {
		add("llm.top_k and llm.max_output_tokens must not be negative")
	}

	if c.Gateway.MaxAttempts < 1 {
		add("gateway.max_attempts must be at least 1, got %d", c.Gateway.MaxAttempts)
	}
	if c.Gateway.CallTimeout <= 0 {
		add("gateway.call_timeout must be positive")
	}
	if c.Gateway.BaseDelay < 0 || c.Gateway.MaxDelay < c.Gateway.BaseDelay {
		add("gateway delays invalid: base_delay %s, max_delay %s", c.Gateway.BaseDelay, c.Gateway.MaxDelay)
	}

	if c.Sessions.TTL < 0 {
		add("sessions.ttl must not be negative")
	}
	if c.Sessions.TTL > 0 && c.Sessions.SweepInterval <= 0 {
		add("sessions.sweep_interval must be positive when sessions.ttl is set")
	}
	if c.Sessions.HistoryContextTurns < 0 {
		add("sessions.history_context_turns must not be negative")
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	if c.Server.RequestTimeout <= 0 {
		add("server.request_timeout must be positive")
	} else if bound := c.StageTimeBound(); c.Gateway.CallTimeout > 0 && c.Server.RequestTimeout < bound {
		add("server.request_timeout %s is shorter than the worst-case stage time %s", c.Server.RequestTimeout, bound)
	}

	switch strings.ToLower(c.Archive.Kind) {
	case "", publisher.ArchiveNone:
	case publisher.ArchiveJSON, publisher.ArchiveSQLite:
		if strings.TrimSpace(c.Archive.Path) == "" {
			add("archive.path is required for archive kind %s", c.Archive.Kind)
		}
	default:
		add("archive.kind %q not supported", c.Archive.Kind)
	}

	if _, _, err := c.Schemas(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Schemas builds the stage schemas from the configured tags.
func (c Config) Schemas() (narration, blog extract.Schema, err error) {
	n := c.Stages.Narration
	narration, err = extract.NarrationSchema(n.Narrative, n.GrowthPoints, n.Contributions)
	if err != nil {
		return extract.Schema{}, extract.Schema{}, fmt.Errorf("stages.narration: %w", err)
	}
	blog, err = extract.BlogSchema(c.Stages.Blog.StyledDraft)
	if err != nil {
		return extract.Schema{}, extract.Schema{}, fmt.Errorf("stages.blog: %w", err)
	}
	return narration, blog, nil
}

// StageTimeBound is the longest one stage can take: the first call and its
// repair, each with every gateway attempt timing out and the maximum backoff
// between attempts.
func (c Config) StageTimeBound() time.Duration {
	attempts := max(c.Gateway.MaxAttempts, 1)
	perInvoke := time.Duration(attempts)*c.Gateway.CallTimeout + time.Duration(attempts-1)*c.Gateway.MaxDelay
	return 2 * perInvoke
}

// LLMSettings converts the llm section, filling in the provider's default model.
func (c Config) LLMSettings() generator.LLMSettings {
	model := c.LLM.Model
	if model == "" {
		model = DefaultModel(c.LLM.Provider)
	}
	return generator.LLMSettings{
		Provider:        c.LLM.Provider,
		Model:           model,
		APIKey:          c.LLM.APIKey,
		BaseURL:         c.LLM.BaseURL,
		Temperature:     c.LLM.Temperature,
		TopP:            c.LLM.TopP,
		TopK:            c.LLM.TopK,
		MaxOutputTokens: c.LLM.MaxOutputTokens,
	}
}

func (c Config) GatewayConfig() generator.GatewayConfig {
	return generator.GatewayConfig{
		CallTimeout: c.Gateway.CallTimeout,
		MaxAttempts: c.Gateway.MaxAttempts,
		BaseDelay:   c.Gateway.BaseDelay,
		MaxDelay:    c.Gateway.MaxDelay,
	}
}

func (c Config) PipelinePrompts() pipeline.Prompts {
	return pipeline.Prompts{
		Processing:  c.Prompts.Processing,
		ReNarration: c.Prompts.ReNarration,
		Blog:        c.Prompts.Blog,
	}.WithDefaults()
}
