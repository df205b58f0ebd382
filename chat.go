package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"idea2blog/pipeline"
	"idea2blog/session"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Refine an idea interactively in the terminal",
	Long: `Reads a brain dump from the terminal, shows the connected narrative and
growth points, then loops on refine / finalize / quit. The session is exported
to the configured archive on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chat drives one session through the orchestrator from a line-oriented terminal.
type chat struct {
	app      *app
	in       *bufio.Scanner
	out      io.Writer
	renderer *glamour.TermRenderer
	id       string
	state    session.State
}

func runChat(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	c := &chat{app: a, in: sc, out: out, renderer: renderer}

	idea, ok := c.readBlock("Brain dump (end with an empty line):")
	if !ok {
		return nil
	}
	view, err := a.orch.SubmitIdea(ctx, idea)
	c.id, c.state = view.SessionID, view.State
	if err != nil {
		if c.id == "" {
			return err
		}
		c.printErr(err)
	} else {
		c.showNarrative(view)
	}
	defer c.export(ctx)

	for {
		cmd, ok := c.readLine(c.menu())
		if !ok {
			return nil
		}
		switch strings.ToLower(cmd) {
		case "r", "refine":
			c.refine(ctx)
		case "f", "finalize":
			c.finalize(ctx)
		case "n", "narrate", "retry":
			c.narrate(ctx)
		case "q", "quit", "exit":
			return nil
		case "":
		default:
			fmt.Fprintln(c.out, hintStyle.Render("unknown command "+cmd))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *chat) menu() string {
	switch c.state {
	case session.Submitted:
		return "[n]arrate again, [q]uit >"
	case session.Refining:
		return "[r]efine, [n]arrate with edits, [f]inalize, [q]uit >"
	default:
		return "[r]efine, [f]inalize, [q]uit >"
	}
}

// narrate retries stage 1 from Submitted, or merges pending edits from Refining.
func (c *chat) narrate(ctx context.Context) {
	var (
		view pipeline.NarratedView
		err  error
	)
	switch c.state {
	case session.Submitted:
		view, err = c.app.orch.Narrate(ctx, c.id)
	case session.Refining:
		view, err = c.app.orch.ReNarrate(ctx, c.id)
	default:
		fmt.Fprintln(c.out, hintStyle.Render("nothing to narrate; use refine to add an edit"))
		return
	}
	if err != nil {
		c.printErr(err)
		return
	}
	c.state = view.State
	c.showNarrative(view)
}

func (c *chat) refine(ctx context.Context) {
	edit, ok := c.readBlock("Your edit (end with an empty line):")
	if !ok {
		return
	}
	view, err := c.app.orch.AddRefinementEdit(ctx, c.id, edit)
	if err != nil {
		c.printErr(err)
		return
	}
	c.state = view.State
	view, err = c.app.orch.ReNarrate(ctx, c.id)
	if err != nil {
		c.printErr(err)
		return
	}
	c.state = view.State
	c.showNarrative(view)
}

func (c *chat) finalize(ctx context.Context) {
	blog, err := c.app.orch.FinalizeBlog(ctx, c.id)
	if err != nil {
		c.printErr(err)
		return
	}
	c.state = session.Finalized
	c.section(fmt.Sprintf("Blog post (revision %d)", blog.Revision))
	c.markdown(blog.BlogPost)
}

func (c *chat) export(ctx context.Context) {
	if !c.app.pub.HasArchive() || c.id == "" {
		return
	}
	snap, err := c.app.orch.View(context.WithoutCancel(ctx), c.id)
	if err != nil {
		c.printErr(err)
		return
	}
	if _, err := c.app.pub.Export(context.WithoutCancel(ctx), snap); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintln(c.out, hintStyle.Render("session "+c.id+" exported"))
}

func (c *chat) showNarrative(v pipeline.NarratedView) {
	c.section("Connected narrative")
	c.markdown(v.ConnectedNarrative)

	var sb strings.Builder
	for _, g := range v.GrowthPoints {
		sb.WriteString("- " + g + "\n")
	}
	c.section("Growth points")
	c.markdown(sb.String())

	sb.Reset()
	for _, ct := range v.AIContributions {
		if ct.Rationale == "" {
			sb.WriteString("- " + ct.Addition + "\n")
			continue
		}
		sb.WriteString("- **" + ct.Addition + "**: " + ct.Rationale + "\n")
	}
	c.section("AI contributions")
	c.markdown(sb.String())
}

func (c *chat) section(title string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, headerStyle.Render("== "+title+" =="))
}

func (c *chat) markdown(md string) {
	rendered, err := c.renderer.Render(md)
	if err != nil {
		c.app.logger.Debug("markdown render failed", zap.Error(err))
		rendered = md
	}
	fmt.Fprintln(c.out, rendered)
}

func (c *chat) printErr(err error) {
	kind := pipeline.KindOf(err)
	msg := fmt.Sprintf("%s: %v", kind, err)
	if kind == pipeline.KindModelUnavailable || kind == pipeline.KindSessionBusy {
		msg += " (try again)"
	}
	fmt.Fprintln(c.out, errorStyle.Render(msg))
}

func (c *chat) readLine(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt+" ")
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// readBlock reads lines until an empty one. It reports false on EOF with nothing read.
func (c *chat) readBlock(prompt string) (string, bool) {
	fmt.Fprintln(c.out, prompt)
	var lines []string
	for c.in.Scan() {
		line := c.in.Text()
		if strings.TrimSpace(line) == "" {
			if len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
