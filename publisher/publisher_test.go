package publisher

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea2blog/session"
)

const blogMarkdown = `Intro line before the title.

# Remote Work and *Mentorship*

It starts in the hallway. Juniors learn by overhearing seniors argue
about trade-offs.

## Why it matters

- fewer accidental lessons
- slower onboarding

| team | ramp-up |
|------|---------|
| A    | 3 weeks |
`

func TestRender(t *testing.T) {
	p := New(nil, nil)
	art, err := p.Render(blogMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "Remote Work and Mentorship", art.Title)
	assert.Equal(t, blogMarkdown, art.Markdown)
	assert.Contains(t, art.HTML, `Remote Work and <em>Mentorship</em></h1>`)
	assert.Contains(t, art.HTML, `<h2 id=`)
	assert.Contains(t, art.HTML, "<li>fewer accidental lessons</li>")
	assert.Contains(t, art.HTML, "<table>")
	assert.True(t, strings.HasPrefix(art.Digest, "Intro line before the title. It starts in the hallway."))
	assert.LessOrEqual(t, len([]rune(art.Digest)), digestLimit)
	assert.NotContains(t, art.Digest, "\n")
}

func TestRender_TitleFallbacks(t *testing.T) {
	p := New(nil, nil)

	art, err := p.Render("## Only a second level\n\nbody")
	require.NoError(t, err)
	assert.Equal(t, "Only a second level", art.Title)

	art, err = p.Render("No heading at all, just a paragraph.")
	require.NoError(t, err)
	assert.Equal(t, "No heading at all, just a paragraph.", art.Title)

	_, err = p.Render("  \n")
	assert.Error(t, err)
}

func TestDefaultDigest_RuneSafe(t *testing.T) {
	s := strings.Repeat("远程", 100)
	d := defaultDigest(s, 5)
	assert.Equal(t, "远程远程远", d)
	assert.Equal(t, "a b c", defaultDigest("a\n\n b\tc", 120))
}

func finalizedSession() session.Session {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return session.Session{
		ID:                 "sess-1",
		State:              session.Finalized,
		RawIdea:            "I think remote work kills mentorship",
		ConnectedNarrative: "story",
		FinalBlog:          "# Title\n\nBody text.",
		Blogs: []session.BlogRevision{
			{Draft: "old", StyledDraft: "# Old\n\nOld body.", CreatedAt: now},
			{Draft: "story", StyledDraft: "# Title\n\nBody text.", CreatedAt: now.Add(time.Hour)},
		},
		History: []session.HistoryEntry{
			{Stage: "thought_processing", Prompt: "p", Reply: "r", Attempts: 1, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Hour),
	}
}

func TestExport_WithoutArchive(t *testing.T) {
	p := New(nil, nil)
	assert.False(t, p.HasArchive())
	_, err := p.Export(context.Background(), finalizedSession())
	assert.ErrorIs(t, err, ErrNoArchive)
	_, err = p.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNoArchive)
}

func TestExport_JSONArchiveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	archive, err := OpenArchive(ArchiveJSON, dir)
	require.NoError(t, err)
	defer archive.Close()

	p := New(archive, nil)
	s := finalizedSession()
	rec, err := p.Export(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, rec.Article)
	assert.Equal(t, "Title", rec.Article.Title)
	assert.FileExists(t, filepath.Join(dir, "sess-1.json"))

	got, err := p.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.Finalized, got.Session.State)
	assert.Equal(t, s.RawIdea, got.Session.RawIdea)
	assert.Len(t, got.Session.Blogs, 2)
	assert.Equal(t, rec.Article.HTML, got.Article.HTML)

	_, err = archive.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, archive.Save(context.Background(), Record{SessionID: "../escape"}))
}

func countRevisions(t *testing.T, a *SQLiteArchive, sessionID string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.QueryRow(`SELECT COUNT(*) FROM blog_revisions WHERE session_id = ?`, sessionID).Scan(&n))
	return n
}

func TestExport_SQLiteArchive(t *testing.T) {
	archive, err := OpenSQLiteArchive(filepath.Join(t.TempDir(), "exports.db"))
	require.NoError(t, err)
	defer archive.Close()

	p := New(archive, nil)
	s := finalizedSession()
	_, err = p.Export(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 2, countRevisions(t, archive, s.ID))

	// A second export replaces the first.
	s.Blogs = s.Blogs[:1]
	s.FinalBlog = ""
	s.State = session.Refining
	_, err = p.Export(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, countRevisions(t, archive, s.ID))

	got, err := p.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Refining, got.Session.State)
	require.NotNil(t, got.Article)
	assert.Equal(t, "Old", got.Article.Title)

	_, err = archive.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExport_SessionWithoutBlog(t *testing.T) {
	archive, err := NewJSONArchive(t.TempDir())
	require.NoError(t, err)

	p := New(archive, nil)
	rec, err := p.Export(context.Background(), session.Session{ID: "s2", State: session.Narrated, RawIdea: "idea"})
	require.NoError(t, err)
	assert.Nil(t, rec.Article)
}

func TestOpenArchive(t *testing.T) {
	a, err := OpenArchive("none", "")
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = OpenArchive("s3", "x")
	assert.Error(t, err)

	_, err = OpenArchive(ArchiveSQLite, " ")
	assert.Error(t, err)
}
