// Package publisher turns a finalized blog into a publishable article and
// exports session snapshots to an archive.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"idea2blog/session"
)

// ErrNoArchive is returned by Export when no archive is configured.
var ErrNoArchive = errors.New("no archive configured")

const digestLimit = 120

// Article is a rendered blog post.
type Article struct {
	Title    string `json:"title"`
	Digest   string `json:"digest"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// Record is what an archive stores for one session.
type Record struct {
	SessionID  string          `json:"session_id"`
	Article    *Article        `json:"article,omitempty"`
	Session    session.Session `json:"session"`
	ExportedAt time.Time       `json:"exported_at"`
}

// Publisher renders blogs and exports sessions. A nil archive disables Export.
type Publisher struct {
	md      goldmark.Markdown
	archive Archive
	logger  *zap.Logger
	now     func() time.Time
}

func New(archive Archive, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		archive: archive,
		logger:  logger.Named("publisher"),
		now:     time.Now,
	}
}

// HasArchive reports whether Export can succeed.
func (p *Publisher) HasArchive() bool { return p.archive != nil }

// Render converts blog markdown to HTML and derives its title and digest.
// The title is the first level-1 heading, else the first heading, else the
// start of the first paragraph.
func (p *Publisher) Render(markdown string) (Article, error) {
	if strings.TrimSpace(markdown) == "" {
		return Article{}, errors.New("render: empty markdown")
	}
	src := []byte(markdown)
	doc := p.md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, doc); err != nil {
		return Article{}, fmt.Errorf("render markdown: %w", err)
	}

	title, body := outline(doc, src)
	if title == "" {
		title = truncate(body, 64)
	}
	return Article{
		Title:    title,
		Digest:   defaultDigest(body, digestLimit),
		Markdown: markdown,
		HTML:     buf.String(),
	}, nil
}

// Export renders the session's current blog, if any, and saves the snapshot.
func (p *Publisher) Export(ctx context.Context, s session.Session) (Record, error) {
	if p.archive == nil {
		return Record{}, ErrNoArchive
	}
	rec := Record{SessionID: s.ID, Session: s, ExportedAt: p.now().UTC()}
	if blog := latestBlog(s); blog != "" {
		art, err := p.Render(blog)
		if err != nil {
			return Record{}, err
		}
		rec.Article = &art
	}
	if err := p.archive.Save(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("export session %s: %w", s.ID, err)
	}
	p.logger.Info("session exported",
		zap.String("session_id", s.ID),
		zap.String("state", s.State.String()),
		zap.Int("history", len(s.History)),
		zap.Bool("has_article", rec.Article != nil))
	return rec, nil
}

// Load returns the last exported record of a session.
func (p *Publisher) Load(ctx context.Context, sessionID string) (Record, error) {
	if p.archive == nil {
		return Record{}, ErrNoArchive
	}
	return p.archive.Load(ctx, sessionID)
}

func latestBlog(s session.Session) string {
	if s.FinalBlog != "" {
		return s.FinalBlog
	}
	if n := len(s.Blogs); n > 0 {
		return s.Blogs[n-1].StyledDraft
	}
	return ""
}

// outline returns the title heading text and the paragraph text of doc.
func outline(doc ast.Node, src []byte) (string, string) {
	var title string
	titleLevel := 0
	var paragraphs []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			if title == "" || (n.Level == 1 && titleLevel != 1) {
				title = plainText(n, src)
				titleLevel = n.Level
			}
		case *ast.Paragraph:
			paragraphs = append(paragraphs, plainText(n, src))
		}
	}
	return title, strings.Join(paragraphs, " ")
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func defaultDigest(s string, limit int) string {
	return truncate(strings.Join(strings.Fields(s), " "), limit)
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit]))
}
