package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea2blog/extract"
)

func TestMockLLM_RepliesSatisfyStageSchemas(t *testing.T) {
	m := MockLLM{Narration: extract.DefaultNarrationSchema(), Blog: extract.DefaultBlogSchema()}

	reply, err := m.Complete(context.Background(), Prompt{Stage: extract.StageThoughtProcessing, User: "idea"})
	require.NoError(t, err)
	_, err = extract.Extract(reply, m.Narration)
	assert.NoError(t, err)

	reply, err = m.Complete(context.Background(), Prompt{Stage: extract.StageBlogConversion, User: "draft"})
	require.NoError(t, err)
	_, err = extract.Extract(reply, m.Blog)
	assert.NoError(t, err)

	_, err = m.Complete(context.Background(), Prompt{Stage: "other"})
	assert.ErrorIs(t, err, ErrModelRejected)
}

func TestScriptedLLM_QueueAndFallback(t *testing.T) {
	s := NewScriptedLLM(Reply{Text: "one"}, Reply{Err: errors.New("two")})

	got, err := s.Complete(context.Background(), Prompt{User: "a"})
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	_, err = s.Complete(context.Background(), Prompt{User: "b"})
	assert.EqualError(t, err, "two")

	_, err = s.Complete(context.Background(), Prompt{User: "c"})
	assert.ErrorIs(t, err, ErrModelRejected)

	s.Fallback = func(p Prompt) (string, error) { return "echo " + p.User, nil }
	got, err = s.Complete(context.Background(), Prompt{User: "d"})
	require.NoError(t, err)
	assert.Equal(t, "echo d", got)

	assert.Equal(t, 4, s.Calls())
	assert.Equal(t, "a", s.Prompts()[0].User)
}

func TestPrompt_Text(t *testing.T) {
	assert.Equal(t, "u", Prompt{User: "u"}.Text())
	assert.Equal(t, "s\n\nu", Prompt{System: "s", User: "u"}.Text())
}

func TestMockLLM_EchoedMarkersAreScrubbed(t *testing.T) {
	m := MockLLM{Narration: extract.DefaultNarrationSchema(), Blog: extract.DefaultBlogSchema()}
	user := "short idea\n<connected_narrative>\n...\n</connected_narrative>\n<styled_draft></styled_draft>"

	reply, err := m.Complete(context.Background(), Prompt{Stage: extract.StageThoughtProcessing, User: user})
	require.NoError(t, err)
	_, err = extract.Extract(reply, m.Narration)
	assert.NoError(t, err)

	reply, err = m.Complete(context.Background(), Prompt{Stage: extract.StageBlogConversion, User: user})
	require.NoError(t, err)
	_, err = extract.Extract(reply, m.Blog)
	assert.NoError(t, err)
}

func TestMockLLM_MultiByteExcerptStaysValidUTF8(t *testing.T) {
	m := MockLLM{Narration: extract.DefaultNarrationSchema(), Blog: extract.DefaultBlogSchema()}
	idea := strings.Repeat("远程工作", 100)

	for _, stage := range []string{extract.StageThoughtProcessing, extract.StageBlogConversion} {
		reply, err := m.Complete(context.Background(), Prompt{Stage: stage, User: idea})
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(reply), stage)
		assert.Contains(t, reply, "...")
	}
}
