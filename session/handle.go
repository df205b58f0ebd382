package session

import (
	"fmt"
	"strings"
	"time"
)

// Handle is exclusive access to one session. It is not safe for concurrent
// use and must be released exactly once; extra Release calls are no-ops.
type Handle struct {
	store    *Store
	e        *entry
	released bool
}

func (h *Handle) ID() string { return h.e.sess.ID }

func (h *Handle) State() State { return h.e.sess.State }

// Session returns a deep copy of the current state.
func (h *Handle) Session() Session { return h.e.sess.clone() }

// Check returns a *TransitionError if op may not run in the current state.
func (h *Handle) Check(op Op) error {
	if h.released {
		return errReleased
	}
	if !Allowed(h.e.sess.State, op) {
		return &TransitionError{State: h.e.sess.State, Op: op}
	}
	return nil
}

// AddEdit appends a user edit and moves the session to Refining. Adding an
// edit to a Finalized session clears its current blog; earlier revisions
// stay in Blogs.
func (h *Handle) AddEdit(edit string) error {
	if err := h.Check(OpAddEdit); err != nil {
		return err
	}
	if strings.TrimSpace(edit) == "" {
		return ErrInvalidInput
	}
	s := h.e.sess
	if s.State == Finalized {
		s.FinalBlog = ""
	}
	s.UserEdits = append(s.UserEdits, edit)
	s.State = Refining
	s.UpdatedAt = h.store.now()
	return nil
}

// CompleteNarration stores a stage-1 result for OpNarrate or OpReNarrate.
// A re-narration consumes all pending edits.
func (h *Handle) CompleteNarration(op Op, n Narration, rec HistoryEntry) error {
	if op != OpNarrate && op != OpReNarrate {
		return fmt.Errorf("complete narration: unexpected op %q", op)
	}
	if err := h.Check(op); err != nil {
		return err
	}
	s := h.e.sess
	if op == OpReNarrate && len(s.UserEdits) == 0 {
		return &TransitionError{State: s.State, Op: op}
	}
	if strings.TrimSpace(n.Narrative) == "" {
		return fmt.Errorf("%w: narrative", ErrEmptyResult)
	}
	now := h.store.now()
	s.ConnectedNarrative = n.Narrative
	s.GrowthPoints = append([]string(nil), n.GrowthPoints...)
	s.AIContributions = append([]Contribution(nil), n.Contributions...)
	if op == OpReNarrate {
		s.UserEdits = nil
	}
	s.State = Narrated
	h.appendHistory(rec, now)
	return nil
}

// CompleteBlog stores a finalized blog. Edits still pending when the blog
// was produced are recorded on the revision and cleared.
func (h *Handle) CompleteBlog(draft, blog string, rec HistoryEntry) error {
	if err := h.Check(OpFinalize); err != nil {
		return err
	}
	if strings.TrimSpace(blog) == "" {
		return fmt.Errorf("%w: blog", ErrEmptyResult)
	}
	now := h.store.now()
	s := h.e.sess
	s.Blogs = append(s.Blogs, BlogRevision{
		Draft:         draft,
		StyledDraft:   blog,
		UnmergedEdits: s.UserEdits,
		CreatedAt:     now,
	})
	s.UserEdits = nil
	s.FinalBlog = blog
	s.State = Finalized
	h.appendHistory(rec, now)
	return nil
}

func (h *Handle) appendHistory(rec HistoryEntry, now time.Time) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	h.e.sess.History = append(h.e.sess.History, rec)
	h.e.sess.UpdatedAt = now
}

// Release unlocks the session.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.e.touch(h.store.now())
	h.e.sem.Release(1)
}
