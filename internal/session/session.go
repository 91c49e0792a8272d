// Package session keeps signed-in sessions server-side and tells subscribers
// when one goes away, so every open view of it can react.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/model"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

type EventKind string

const (
	SignedIn  EventKind = "signed-in"
	SignedOut EventKind = "signed-out"
	Expired   EventKind = "expired"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"-"`
	UserID    string    `json:"userId"`
}

// Persister is the optional durable copy of the store.
type Persister interface {
	SaveSession(ctx context.Context, s *model.Session) error
	LoadSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	RevokeUserSessions(ctx context.Context, userID string) error
}

// purger is implemented by persisters that can drop dead rows in bulk.
type purger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

type subscriber struct {
	sessionID string
	ch        chan Event
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	subs     map[int]*subscriber
	nextSub  int

	ttl time.Duration
	db  Persister
	log zerolog.Logger
	now func() time.Time
}

// New returns a store. db may be nil for memory-only sessions.
func New(ttl time.Duration, db Persister, log zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*model.Session),
		subs:     make(map[int]*subscriber),
		ttl:      ttl,
		db:       db,
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Create(ctx context.Context, token string, role model.Role, userID, userName string) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		ID:        auth.NewSessionID(),
		Token:     token,
		Role:      role,
		UserID:    userID,
		UserName:  userName,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if s.db != nil {
		if err := s.db.SaveSession(ctx, sess); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.notify(Event{Kind: SignedIn, SessionID: sess.ID, UserID: userID})
	cp := *sess
	return &cp, nil
}

// Get returns a copy of the session, falling back to the persister after a restart.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		if s.db == nil {
			return nil, ErrNotFound
		}
		loaded, err := s.db.LoadSession(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.sessions[id] = loaded
		s.mu.Unlock()
		sess = loaded
	}

	if sess.Expired(s.now()) {
		s.expire(ctx, sess)
		return nil, ErrExpired
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.DeleteSession(ctx, id); err != nil {
			return err
		}
	}
	if !ok {
		return ErrNotFound
	}
	s.notify(Event{Kind: SignedOut, SessionID: id, UserID: sess.UserID})
	return nil
}

// DestroyUser signs a user out of every session.
func (s *Store) DestroyUser(ctx context.Context, userID string) error {
	var gone []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			gone = append(gone, id)
		}
	}
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.RevokeUserSessions(ctx, userID); err != nil {
			return err
		}
	}
	for _, id := range gone {
		s.notify(Event{Kind: SignedOut, SessionID: id, UserID: userID})
	}
	return nil
}

func (s *Store) expire(ctx context.Context, sess *model.Session) {
	s.mu.Lock()
	_, ok := s.sessions[sess.ID]
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	if !ok {
		return
	}
	if s.db != nil {
		if err := s.db.DeleteSession(ctx, sess.ID); err != nil {
			s.log.Warn().Err(err).Msg("drop expired session")
		}
	}
	s.notify(Event{Kind: Expired, SessionID: sess.ID, UserID: sess.UserID})
}

// Sweep drops every expired session and returns how many went.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.now()
	var stale []*model.Session
	s.mu.RLock()
	for _, sess := range s.sessions {
		if sess.Expired(now) {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()
	for _, sess := range stale {
		s.expire(ctx, sess)
	}
	return len(stale)
}

// Run sweeps on an interval until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(ctx); n > 0 {
				s.log.Debug().Int("count", n).Msg("expired sessions swept")
			}
			if p, ok := s.db.(purger); ok {
				if n, err := p.PurgeSessions(ctx); err != nil {
					s.log.Warn().Err(err).Msg("purge stored sessions")
				} else if n > 0 {
					s.log.Debug().Int64("count", n).Msg("stored sessions purged")
				}
			}
		}
	}
}

// Subscribe delivers events for one session, or for all when sessionID is empty.
// Slow subscribers miss events rather than block the store.
func (s *Store) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{sessionID: sessionID, ch: make(chan Event, 8)}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.sessionID != "" && sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			s.log.Warn().Str("kind", string(ev.Kind)).Msg("session subscriber full, event dropped")
		}
	}
}
