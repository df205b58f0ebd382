// Package pipeline drives a session through the two model stages: turning a
// raw idea into a connected narrative, and turning that narrative into a blog.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/session"
)

// Model is the gateway the orchestrator calls; *generator.Gateway implements it.
type Model interface {
	Invoke(ctx context.Context, schema extract.Schema, prompt generator.Prompt) (string, error)
}

// Options wires an Orchestrator.
type Options struct {
	Store     *session.Store
	Model     Model
	Narration extract.Schema
	Blog      extract.Schema
	Prompts   Prompts
	// HistoryTurns is how many past stage calls are sent as context. Zero sends none.
	HistoryTurns int
	Logger       *zap.Logger
}

// Orchestrator runs pipeline operations. Every operation holds the session's
// lock for its whole duration, model calls included, so operations on one
// session are serialized while different sessions proceed in parallel.
type Orchestrator struct {
	store        *session.Store
	model        Model
	narration    extract.Schema
	blog         extract.Schema
	prompts      Prompts
	merger       Merger
	historyTurns int
	logger       *zap.Logger
}

// NarratedView is the caller-facing result of the narrative operations.
type NarratedView struct {
	SessionID          string                 `json:"session_id"`
	State              session.State          `json:"state"`
	ConnectedNarrative string                 `json:"connected_narrative"`
	GrowthPoints       []string               `json:"growth_points"`
	AIContributions    []session.Contribution `json:"ai_contributions"`
	UserEdits          []string               `json:"user_edits"`
}

// BlogView is the result of FinalizeBlog.
type BlogView struct {
	SessionID string `json:"session_id"`
	BlogPost  string `json:"blog_post"`
	Revision  int    `json:"revision"`
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Model == nil {
		return nil, errors.New("model is required")
	}
	if len(opts.Narration.Fields) == 0 || len(opts.Blog.Fields) == 0 {
		return nil, errors.New("narration and blog schemas are required")
	}
	for _, name := range []string{extract.FieldNarrative, extract.FieldGrowthPoints, extract.FieldContributions} {
		if _, ok := opts.Narration.Field(name); !ok {
			return nil, fmt.Errorf("narration schema %s lacks the %s field", opts.Narration.Name, name)
		}
	}
	if _, ok := opts.Blog.Field(extract.FieldStyledDraft); !ok {
		return nil, fmt.Errorf("blog schema %s lacks the %s field", opts.Blog.Name, extract.FieldStyledDraft)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	prompts := opts.Prompts.WithDefaults()
	return &Orchestrator{
		store:        opts.Store,
		model:        opts.Model,
		narration:    opts.Narration,
		blog:         opts.Blog,
		prompts:      prompts,
		merger:       Merger{System: prompts.ReNarration, Schema: opts.Narration},
		historyTurns: opts.HistoryTurns,
		logger:       opts.Logger.Named("pipeline"),
	}, nil
}

func opError(op session.Op, id string, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: string(op), SessionID: id, Err: err}
}

// SubmitIdea creates a session and runs the narrative stage on it. When the
// stage fails the session stays Submitted; the returned view still carries
// its id so the caller can retry with Narrate.
func (o *Orchestrator) SubmitIdea(ctx context.Context, rawIdea string) (NarratedView, error) {
	h, err := o.store.Create(rawIdea)
	if err != nil {
		return NarratedView{}, &StageError{Stage: "submit_idea", Err: err}
	}
	defer h.Release()

	view, err := o.narrate(ctx, h, session.OpNarrate)
	if err != nil {
		return NarratedView{SessionID: h.ID(), State: h.State()}, err
	}
	return view, nil
}

// Narrate retries the narrative stage for a session still in Submitted.
func (o *Orchestrator) Narrate(ctx context.Context, id string) (NarratedView, error) {
	h, err := o.store.Acquire(ctx, id)
	if err != nil {
		return NarratedView{}, opError(session.OpNarrate, id, err)
	}
	defer h.Release()
	return o.narrate(ctx, h, session.OpNarrate)
}

// AddRefinementEdit records a user edit. No model call is made.
func (o *Orchestrator) AddRefinementEdit(ctx context.Context, id, edit string) (NarratedView, error) {
	h, err := o.store.Acquire(ctx, id)
	if err != nil {
		return NarratedView{}, opError(session.OpAddEdit, id, err)
	}
	defer h.Release()

	if err := h.AddEdit(edit); err != nil {
		return NarratedView{}, opError(session.OpAddEdit, id, err)
	}
	o.logger.Info("refinement edit added",
		zap.String("session_id", id),
		zap.Int("pending_edits", len(h.Session().UserEdits)))
	return narratedView(h.Session()), nil
}

// ReNarrate merges the pending edits into a new narrative.
func (o *Orchestrator) ReNarrate(ctx context.Context, id string) (NarratedView, error) {
	h, err := o.store.Acquire(ctx, id)
	if err != nil {
		return NarratedView{}, opError(session.OpReNarrate, id, err)
	}
	defer h.Release()
	return o.narrate(ctx, h, session.OpReNarrate)
}

func (o *Orchestrator) narrate(ctx context.Context, h *session.Handle, op session.Op) (NarratedView, error) {
	if err := h.Check(op); err != nil {
		return NarratedView{}, opError(op, h.ID(), err)
	}
	s := h.Session()
	var prompt generator.Prompt
	if op == session.OpReNarrate {
		prompt = o.merger.Merge(s.ConnectedNarrative, s.GrowthPoints, s.AIContributions, s.UserEdits)
	} else {
		prompt = processingPrompt(o.prompts, o.narration, s.RawIdea)
	}
	prompt.History = historyContext(s.History, o.historyTurns)

	res, err := o.runStage(ctx, s.ID, o.narration, prompt)
	if err != nil {
		return NarratedView{}, err
	}
	n := session.Narration{
		Narrative:     res.fields.Get(extract.FieldNarrative),
		GrowthPoints:  extract.Items(res.fields.Get(extract.FieldGrowthPoints)),
		Contributions: parseContributions(extract.Items(res.fields.Get(extract.FieldContributions))),
	}
	if err := h.CompleteNarration(op, n, res.record); err != nil {
		return NarratedView{}, opError(op, s.ID, err)
	}
	o.logger.Info("narrative updated",
		zap.String("session_id", s.ID),
		zap.String("op", string(op)),
		zap.Int("growth_points", len(n.GrowthPoints)),
		zap.Int("contributions", len(n.Contributions)),
		zap.Bool("repaired", res.record.Repaired))
	return narratedView(h.Session()), nil
}

// FinalizeBlog converts the current narrative into a styled blog post.
func (o *Orchestrator) FinalizeBlog(ctx context.Context, id string) (BlogView, error) {
	h, err := o.store.Acquire(ctx, id)
	if err != nil {
		return BlogView{}, opError(session.OpFinalize, id, err)
	}
	defer h.Release()

	if err := h.Check(session.OpFinalize); err != nil {
		return BlogView{}, opError(session.OpFinalize, id, err)
	}
	s := h.Session()
	prompt := blogPrompt(o.prompts, o.blog, s.ConnectedNarrative)
	prompt.History = historyContext(s.History, o.historyTurns)

	res, err := o.runStage(ctx, id, o.blog, prompt)
	if err != nil {
		return BlogView{}, err
	}
	blog := res.fields.Get(extract.FieldStyledDraft)
	if err := h.CompleteBlog(s.ConnectedNarrative, blog, res.record); err != nil {
		return BlogView{}, opError(session.OpFinalize, id, err)
	}
	revision := len(h.Session().Blogs)
	o.logger.Info("blog finalized",
		zap.String("session_id", id),
		zap.Int("revision", revision),
		zap.Int("unmerged_edits", len(s.UserEdits)),
		zap.Bool("repaired", res.record.Repaired))
	return BlogView{SessionID: id, BlogPost: blog, Revision: revision}, nil
}

// View returns a snapshot of the session.
func (o *Orchestrator) View(ctx context.Context, id string) (session.Session, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return session.Session{}, &StageError{Stage: "view", SessionID: id, Err: err}
	}
	return s, nil
}

// Delete removes the session after any in-flight operation on it completes.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.store.Delete(ctx, id); err != nil {
		return &StageError{Stage: "delete", SessionID: id, Err: err}
	}
	return nil
}

func narratedView(s session.Session) NarratedView {
	return NarratedView{
		SessionID:          s.ID,
		State:              s.State,
		ConnectedNarrative: s.ConnectedNarrative,
		GrowthPoints:       s.GrowthPoints,
		AIContributions:    s.AIContributions,
		UserEdits:          s.UserEdits,
	}
}
