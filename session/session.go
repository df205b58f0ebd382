// Package session owns the lifecycle state of every idea-to-blog conversion.
//
// Sessions live in a Store. All reads and writes go through a Handle, which
// holds the session's exclusive lock; the mutation methods on Handle are the
// only code that changes a Session and they enforce the state machine:
//
//	Submitted -> Narrated -> Refining -> Narrated ... -> Finalized
//	                 \___________\________________________/
//	Finalized -> Refining (further edits after seeing the blog)
package session

import (
	"fmt"
	"time"
)

// State is a session's position in the pipeline.
type State int

const (
	Submitted State = iota + 1
	Narrated
	Refining
	Finalized
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Narrated:
		return "narrated"
	case Refining:
		return "refining"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Submitted, Narrated, Refining, Finalized} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Op names an operation that is subject to the state machine.
type Op string

const (
	OpNarrate   Op = "narrate"
	OpAddEdit   Op = "add_refinement_edit"
	OpReNarrate Op = "renarrate"
	OpFinalize  Op = "finalize_blog"
)

var transitions = map[Op][]State{
	OpNarrate:   {Submitted},
	OpAddEdit:   {Narrated, Refining, Finalized},
	OpReNarrate: {Refining},
	OpFinalize:  {Narrated, Refining, Finalized},
}

// Allowed reports whether op may run while a session is in state.
func Allowed(state State, op Op) bool {
	for _, s := range transitions[op] {
		if s == state {
			return true
		}
	}
	return false
}

// Contribution is one piece of content the model added, with its reason.
type Contribution struct {
	Addition  string `json:"addition"`
	Rationale string `json:"rationale,omitempty"`
}

// Narration is the result of a successful stage-1 call.
type Narration struct {
	Narrative     string
	GrowthPoints  []string
	Contributions []Contribution
}

// HistoryEntry records one successful stage call. Entries are never modified.
type HistoryEntry struct {
	Stage     string    `json:"stage"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
	Attempts  int       `json:"attempts"`
	Repaired  bool      `json:"repaired"`
	CreatedAt time.Time `json:"created_at"`
}

// BlogRevision is one finalized blog, kept across re-finalizations.
type BlogRevision struct {
	Draft         string    `json:"draft"`
	StyledDraft   string    `json:"styled_draft"`
	UnmergedEdits []string  `json:"unmerged_edits,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session is a point-in-time copy of one conversion's state.
type Session struct {
	ID                 string         `json:"id"`
	State              State          `json:"state"`
	RawIdea            string         `json:"raw_idea"`
	ConnectedNarrative string         `json:"connected_narrative,omitempty"`
	GrowthPoints       []string       `json:"growth_points,omitempty"`
	AIContributions    []Contribution `json:"ai_contributions,omitempty"`
	UserEdits          []string       `json:"user_edits,omitempty"`
	FinalBlog          string         `json:"final_blog,omitempty"`
	Blogs              []BlogRevision `json:"blogs,omitempty"`
	History            []HistoryEntry `json:"history"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (s *Session) clone() Session {
	c := *s
	c.GrowthPoints = append([]string(nil), s.GrowthPoints...)
	c.AIContributions = append([]Contribution(nil), s.AIContributions...)
	c.UserEdits = append([]string(nil), s.UserEdits...)
	c.History = append(make([]HistoryEntry, 0, len(s.History)), s.History...)
	c.Blogs = make([]BlogRevision, len(s.Blogs))
	for i, b := range s.Blogs {
		b.UnmergedEdits = append([]string(nil), b.UnmergedEdits...)
		c.Blogs[i] = b
	}
	return c
}
