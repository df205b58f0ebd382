package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// Items splits a markdown section into its top-level entries.
//
// Headed sections win over lists, lists win over paragraphs:
//   - when the text has top-level headings, each heading plus the blocks under
//     it is one item and any preamble is dropped;
//   - otherwise, when it has top-level lists, each list item (with its nested
//     content) is one item;
//   - otherwise each top-level block is one item.
//
// Item text is the raw markdown of the entry without its list marker.
func Items(text string) []string {
	src := []byte(text)
	doc := markdown.Parser().Parse(gmtext.NewReader(src))

	var headings, lists, blocks bool
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.Kind() {
		case ast.KindHeading:
			headings = true
		case ast.KindList:
			lists = true
		}
		blocks = true
	}
	if !blocks {
		return nil
	}

	var items []string
	add := func(nodes ...ast.Node) {
		if s := rawText(src, nodes...); s != "" {
			items = append(items, s)
		}
	}

	switch {
	case headings:
		var section []ast.Node
		for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
			if n.Kind() == ast.KindHeading {
				if len(section) > 0 {
					add(section...)
				}
				section = []ast.Node{n}
				continue
			}
			if section != nil {
				section = append(section, n)
			}
		}
		if len(section) > 0 {
			add(section...)
		}
	case lists:
		for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
			if n.Kind() != ast.KindList {
				continue
			}
			for li := n.FirstChild(); li != nil; li = li.NextSibling() {
				add(li)
			}
		}
	default:
		for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
			add(n)
		}
	}
	return items
}

// rawText returns the source text spanned by the block descendants of nodes.
func rawText(src []byte, nodes ...ast.Node) string {
	start, stop := -1, -1
	for _, node := range nodes {
		_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering || n.Type() != ast.TypeBlock {
				return ast.WalkContinue, nil
			}
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if start < 0 || seg.Start < start {
					start = seg.Start
				}
				if seg.Stop > stop {
					stop = seg.Stop
				}
			}
			return ast.WalkContinue, nil
		})
	}
	if start < 0 || stop <= start {
		return ""
	}
	return strings.TrimSpace(string(src[start:stop]))
}
