package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idea2blog/config"
	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/pipeline"
	"idea2blog/publisher"
	"idea2blog/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestBuildLLM(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.LLM.Provider = config.ProviderMock
	llm, err := buildLLM(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.APIKey = "sk-test"
	llm, err = buildLLM(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &generator.OpenAILLM{}, llm)

	cfg.LLM.Provider = config.ProviderDeepSeek
	_, err = buildLLM(ctx, cfg)
	assert.ErrorContains(t, err, "base_url")

	cfg.LLM.Provider = "claude"
	_, err = buildLLM(ctx, cfg)
	assert.ErrorContains(t, err, "not supported")
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: mock\ngateway:\n  max_attempts: 0\n")
	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "gateway.max_attempts")
}

func TestRunChat_FullSession(t *testing.T) {
	exports := filepath.Join(t.TempDir(), "exports")
	path := writeConfig(t, "llm:\n  provider: mock\narchive:\n  kind: json\n  path: "+exports+"\n")
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	in := strings.NewReader(strings.Join([]string{
		"remote work kills mentorship",
		"juniors learn by overhearing",
		"",
		"r",
		"keep the point about overhearing",
		"",
		"f",
		"q",
	}, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), a, in, &out))

	text := out.String()
	assert.Contains(t, text, "Connected narrative")
	assert.Contains(t, text, "Growth points")
	assert.Contains(t, text, "Blog post (revision 1)")
	assert.Contains(t, text, "Mock blog post")
	assert.Contains(t, text, "exported")

	files, err := filepath.Glob(filepath.Join(exports, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 1, a.store.Len())
}

func TestRunChat_EmptyInput(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = config.ProviderMock
	a, err := newApp(context.Background(), cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), a, strings.NewReader("\n\n"), &out))
	assert.Zero(t, a.store.Len())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "idea2blog dev\n", out.String())
}

func newScriptedApp(t *testing.T, llm generator.LLMClient) *app {
	t.Helper()
	gw, err := generator.NewGateway(llm, generator.GatewayConfig{
		CallTimeout: time.Second,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, nil)
	require.NoError(t, err)
	store := session.NewStore(session.Options{})
	orch, err := pipeline.New(pipeline.Options{
		Store:     store,
		Model:     gw,
		Narration: extract.DefaultNarrationSchema(),
		Blog:      extract.DefaultBlogSchema(),
	})
	require.NoError(t, err)
	return &app{store: store, orch: orch, pub: publisher.New(nil, nil), logger: zap.NewNop()}
}

func narrationReply(story string) string {
	return "<connected_narrative>" + story + "</connected_narrative>" +
		"<growth_points>- point X</growth_points><ai_contributions>- structure</ai_contributions>"
}

func TestRunChat_NarrateRetriesFailedReNarration(t *testing.T) {
	llm := generator.NewScriptedLLM(
		generator.Reply{Text: narrationReply("first story")},
		generator.Reply{Err: generator.Rejected(errors.New("400 bad request"))},
		generator.Reply{Text: narrationReply("second story")},
	)
	a := newScriptedApp(t, llm)

	in := strings.NewReader("idea\n\nr\nkeep point X\n\nn\nq\n")
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), a, in, &out))

	text := out.String()
	assert.Contains(t, text, "model_rejected")
	assert.Contains(t, text, "[n]arrate with edits")
	assert.Contains(t, text, "second story")
	assert.Equal(t, 3, llm.Calls())
}
