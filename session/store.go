package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Options configures a Store. Zero values select defaults.
type Options struct {
	// TTL is how long a session may sit idle before the sweeper evicts it.
	// Zero disables eviction.
	TTL    time.Duration
	Now    func() time.Time
	NewID  func() string
	Logger *zap.Logger
}

// Store keeps sessions in memory. Each session has its own lock so that
// operations on different sessions never wait on each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type entry struct {
	sem      *semaphore.Weighted
	lastUsed atomic.Int64

	// guarded by sem
	sess    *Session
	evicted bool
}

func (e *entry) touch(t time.Time) { e.lastUsed.Store(t.UnixNano()) }

func NewStore(opts Options) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      opts.TTL,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("sessions")
	return s
}

// Create registers a new Submitted session and returns it already locked.
// The caller must Release the handle.
func (s *Store) Create(rawIdea string) (*Handle, error) {
	if strings.TrimSpace(rawIdea) == "" {
		return nil, ErrInvalidInput
	}
	now := s.now()
	e := &entry{sem: semaphore.NewWeighted(1)}
	e.sem.TryAcquire(1)
	e.touch(now)
	e.sess = &Session{
		ID:        s.newID(),
		State:     Submitted,
		RawIdea:   rawIdea,
		History:   []HistoryEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[e.sess.ID] = e
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session_id", e.sess.ID))
	return &Handle{store: s, e: e}, nil
}

// Acquire waits for the session's lock. It returns ErrSessionNotFound if the
// session does not exist or was removed while waiting, and ErrLockWait
// wrapping the context error if ctx ends first.
func (s *Store) Acquire(ctx context.Context, id string) (*Handle, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLockWait, id, err)
	}
	if e.evicted {
		e.sem.Release(1)
		return nil, notFound(id)
	}
	e.touch(s.now())
	return &Handle{store: s, e: e}, nil
}

// Get returns a snapshot of the session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	h, err := s.Acquire(ctx, id)
	if err != nil {
		return Session{}, err
	}
	defer h.Release()
	return h.Session(), nil
}

// Delete removes a session once any in-flight operation on it has finished.
func (s *Store) Delete(ctx context.Context, id string) error {
	h, err := s.Acquire(ctx, id)
	if err != nil {
		return err
	}
	s.remove(id, h.e)
	h.Release()
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// remove must be called with e's lock held.
func (s *Store) remove(id string, e *entry) {
	e.evicted = true
	s.mu.Lock()
	if s.sessions[id] == e {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictExpired removes sessions idle for longer than the TTL and returns how
// many were removed. Sessions whose lock is held are in use and are skipped.
func (s *Store) EvictExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()

	s.mu.RLock()
	candidates := make(map[string]*entry)
	for id, e := range s.sessions {
		if e.lastUsed.Load() < cutoff {
			candidates[id] = e
		}
	}
	s.mu.RUnlock()

	evicted := 0
	for id, e := range candidates {
		if !e.sem.TryAcquire(1) {
			continue
		}
		if !e.evicted && e.lastUsed.Load() < cutoff {
			s.remove(id, e)
			evicted++
			s.logger.Info("session evicted", zap.String("session_id", id), zap.Duration("ttl", s.ttl))
		}
		e.sem.Release(1)
	}
	return evicted
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.EvictExpired(); n > 0 {
				s.logger.Debug("sweep finished", zap.Int("evicted", n), zap.Int("remaining", s.Len()))
			}
		}
	}
}
