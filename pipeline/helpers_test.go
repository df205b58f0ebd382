package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/session"
)

func narrationReply(narrative string) string {
	return "<connected_narrative>\n" + narrative + "\n</connected_narrative>\n" +
		"<growth_points>\n- point X\n- point Y\n</growth_points>\n" +
		"<ai_contributions>\n- **Added evidence**: remote surveys on junior onboarding\n</ai_contributions>\n"
}

func blogReply(body string) string {
	return "Sure, here it is.\n<styled_draft>\n" + body + "\n</styled_draft>"
}

func newTestOrchestrator(t *testing.T, llm generator.LLMClient, historyTurns int) (*Orchestrator, *session.Store) {
	t.Helper()
	gw, err := generator.NewGateway(llm, generator.GatewayConfig{
		CallTimeout: 2 * time.Second,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	store := session.NewStore(session.Options{})
	o, err := New(Options{
		Store:        store,
		Model:        gw,
		Narration:    extract.DefaultNarrationSchema(),
		Blog:         extract.DefaultBlogSchema(),
		HistoryTurns: historyTurns,
	})
	require.NoError(t, err)
	return o, store
}
