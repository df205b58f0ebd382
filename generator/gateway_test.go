package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idea2blog/extract"
)

func testGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CallTimeout: time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func newTestGateway(t *testing.T, client LLMClient, cfg GatewayConfig) *Gateway {
	t.Helper()
	gw, err := NewGateway(client, cfg, zap.NewNop())
	require.NoError(t, err)
	return gw
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	llm := NewScriptedLLM(
		Reply{Err: Unavailable(errors.New("503"))},
		Reply{Err: errors.New("connection reset")},
		Reply{Text: "<styled_draft>ok</styled_draft>"},
	)
	gw := newTestGateway(t, llm, testGatewayConfig())

	reply, err := gw.Invoke(context.Background(), extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "<styled_draft>ok</styled_draft>", reply)
	assert.Equal(t, 3, llm.Calls())
}

func TestGateway_TransientExhausted(t *testing.T) {
	llm := NewScriptedLLM(
		Reply{Err: Unavailable(errors.New("quota"))},
		Reply{Err: Unavailable(errors.New("quota"))},
		Reply{Err: Unavailable(errors.New("quota"))},
		Reply{Text: "never reached"},
	)
	gw := newTestGateway(t, llm, testGatewayConfig())

	_, err := gw.Invoke(context.Background(), extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.NotErrorIs(t, err, ErrModelRejected)
	assert.Equal(t, 3, llm.Calls())
}

func TestGateway_RejectedIsNotRetried(t *testing.T) {
	llm := NewScriptedLLM(
		Reply{Err: Rejected(errors.New("400 bad request"))},
		Reply{Text: "never reached"},
	)
	gw := newTestGateway(t, llm, testGatewayConfig())

	_, err := gw.Invoke(context.Background(), extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelRejected)
	assert.Contains(t, err.Error(), "400 bad request")
	assert.Equal(t, 1, llm.Calls())
}

func TestGateway_EmptyReplyIsTransient(t *testing.T) {
	llm := NewScriptedLLM(Reply{Text: "  "}, Reply{Text: "fine"})
	gw := newTestGateway(t, llm, testGatewayConfig())

	reply, err := gw.Invoke(context.Background(), extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "fine", reply)
	assert.Equal(t, 2, llm.Calls())
}

func TestGateway_PerCallTimeoutIsUnavailable(t *testing.T) {
	calls := 0
	slow := LLMFunc(func(ctx context.Context, _ Prompt) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testGatewayConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	gw := newTestGateway(t, slow, cfg)

	_, err := gw.Invoke(context.Background(), extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestGateway_CallerCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	llm := LLMFunc(func(ctx context.Context, _ Prompt) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})
	gw := newTestGateway(t, llm, testGatewayConfig())

	_, err := gw.Invoke(ctx, extract.DefaultBlogSchema(), Prompt{User: "draft"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGateway_StageDefaultsToSchemaName(t *testing.T) {
	llm := NewScriptedLLM(Reply{Text: "ok"})
	gw := newTestGateway(t, llm, testGatewayConfig())

	_, err := gw.Invoke(context.Background(), extract.DefaultNarrationSchema(), Prompt{User: "idea"})
	require.NoError(t, err)
	prompts := llm.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, extract.StageThoughtProcessing, prompts[0].Stage)
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway(nil, testGatewayConfig(), nil)
	assert.Error(t, err)

	cfg := testGatewayConfig()
	cfg.MaxAttempts = 0
	_, err = NewGateway(NewScriptedLLM(), cfg, nil)
	assert.Error(t, err)

	cfg = testGatewayConfig()
	cfg.CallTimeout = 0
	_, err = NewGateway(NewScriptedLLM(), cfg, nil)
	assert.Error(t, err)

	cfg = testGatewayConfig()
	cfg.MaxDelay = 0
	_, err = NewGateway(NewScriptedLLM(), cfg, nil)
	assert.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	for _, code := range []int{408, 409, 429, 500, 502, 503} {
		assert.ErrorIs(t, classifyStatus(code, base), ErrModelUnavailable, "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		assert.ErrorIs(t, classifyStatus(code, base), ErrModelRejected, "status %d", code)
	}
	assert.ErrorIs(t, classifyStatus(418, base), base)
}

func TestUnavailable_DoesNotDoubleWrap(t *testing.T) {
	err := Unavailable(errors.New("x"))
	assert.Same(t, err, Unavailable(err))
	assert.Nil(t, Unavailable(nil))
	assert.Nil(t, Rejected(nil))
}
