package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItems_BulletList(t *testing.T) {
	items := Items("- Hybrid onboarding programs\n- Async code review as mentorship\n")
	assert.Equal(t, []string{"Hybrid onboarding programs", "Async code review as mentorship"}, items)
}

func TestItems_OrderedListWithNestedContent(t *testing.T) {
	text := "Some intro sentence.\n\n1. **Education** - apprenticeship models\n   - why it matters\n2. **Healthcare** - residency programs\n"
	items := Items(text)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], "**Education** - apprenticeship models")
	assert.Contains(t, items[0], "why it matters")
	assert.Equal(t, "**Healthcare** - residency programs", items[1])
}

func TestItems_HeadedSections(t *testing.T) {
	text := "Preamble.\n\n### One\nbody one\n\n### Two\nbody two\n"
	items := Items(text)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], "One")
	assert.Contains(t, items[0], "body one")
	assert.NotContains(t, items[0], "Two")
	assert.Contains(t, items[1], "body two")
}

func TestItems_ParagraphFallback(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta"}, Items("alpha\n\nbeta\n"))
}

func TestItems_Empty(t *testing.T) {
	assert.Empty(t, Items(""))
	assert.Empty(t, Items("   \n\n"))
}
