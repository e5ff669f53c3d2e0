package agent

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// Registry owns one Session per conversation id. Sessions live in memory
// only and are lost on restart.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	deps     Deps
	maxIdle  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry returns a registry whose sessions idle longer than maxIdle are
// dropped on the next lookup. maxIdle <= 0 keeps sessions forever.
func NewRegistry(cfg Config, deps Deps, maxIdle time.Duration) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{
		sessions: map[string]*Session{},
		cfg:      cfg,
		deps:     deps,
		maxIdle:  maxIdle,
		now:      deps.Now,
		logger:   deps.Logger.Named("registry"),
	}
}

// Get returns the session for conversationID, creating it on first use.
func (r *Registry) Get(conversationID string) (*Session, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, ucp.Validation("session", "conversation id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	s := NewSession(id, r.cfg, r.deps)
	r.sessions[id] = s
	r.logger.Debug("session created", zap.String("conversation_id", id))
	return s, nil
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(conversationID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[conversationID]
	return s, ok
}

func (r *Registry) Drop(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) sweepLocked() {
	if r.maxIdle <= 0 {
		return
	}
	cutoff := r.now().Add(-r.maxIdle)
	for id, s := range r.sessions {
		// TryLock skips sessions with an operation in flight.
		if !s.mu.TryLock() {
			continue
		}
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			r.logger.Info("idle session dropped", zap.String("conversation_id", id))
		}
	}
}
