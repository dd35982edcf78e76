// Package store holds the process-wide session state: the bearer token, the signed-in user and
// the one-way rehydration flag. It is the single source of truth every other component reads.
package store

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"

	"gig-marketplace/client/internal/session/codec"
	"gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/session/repository"
)

// ErrInvalidAuth is returned by SetAuth when the token or user is missing.
var ErrInvalidAuth = errors.New("session: token and user must both be set")

// Listener is called after every state change with the new state.
// Listeners run synchronously on the mutating goroutine and must not call SetAuth or ClearAuth.
type Listener func(domain.Session)

// Store is the session store. Create it with New; the zero value is not usable.
type Store struct {
	repo  repository.Repository
	codec *codec.Codec

	mu        sync.RWMutex
	state     domain.Session
	mutated   bool // SetAuth/ClearAuth ran; a late rehydration must not overwrite it
	listeners map[uint64]Listener
	nextID    uint64

	// deliverMu orders apply+notify so subscribers see changes in mutation order.
	deliverMu sync.Mutex
	// persistMu orders writes to the repository; each write stores the latest state.
	persistMu sync.Mutex

	rehydrateOnce sync.Once
}

// New returns an empty, not-yet-rehydrated store persisting through repo with c.
// A nil codec stores plain JSON.
func New(repo repository.Repository, c *codec.Codec) *Store {
	if c == nil {
		c = &codec.Codec{}
	}
	return &Store{
		repo:      repo,
		codec:     c,
		listeners: make(map[uint64]Listener),
	}
}

// GetState returns a snapshot of the current state.
func (s *Store) GetState() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// SetAuth sets token and user together, notifies subscribers, then persists the session.
// Persistence failures are logged; the in-memory session stays authoritative.
func (s *Store) SetAuth(ctx context.Context, token string, user *domain.UserProfile) error {
	if token == "" || user == nil {
		return ErrInvalidAuth
	}
	user = user.Clone()
	s.mutate(func(st *domain.Session) {
		st.Token = token
		st.User = user
	})
	s.persist(ctx)
	return nil
}

// ClearAuth signs out: nulls token and user, notifies subscribers, and clears the persisted session.
func (s *Store) ClearAuth(ctx context.Context) {
	s.mutate(func(st *domain.Session) {
		st.Token = ""
		st.User = nil
	})
	s.persist(ctx)
}

// Subscribe registers l and returns a function that removes it. Calling the returned
// function more than once is safe.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Rehydrate loads the persisted session once. Load and decode failures are logged and treated as
// "no session"; Rehydrated becomes true regardless, exactly once. Later calls are no-ops.
func (s *Store) Rehydrate(ctx context.Context) {
	s.rehydrateOnce.Do(func() {
		rec := s.load(ctx)
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		s.mu.Lock()
		if !s.mutated && !rec.Empty() {
			s.state.Token = rec.Token
			s.state.User = rec.User
		}
		s.state.Rehydrated = true
		snap := s.state.Clone()
		s.mu.Unlock()
		s.notify(snap)
	})
}

// RehydrateAsync runs Rehydrate on a new goroutine and returns immediately.
func (s *Store) RehydrateAsync(ctx context.Context) {
	go s.Rehydrate(ctx)
}

func (s *Store) mutate(fn func(*domain.Session)) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	fn(&s.state)
	s.mutated = true
	snap := s.state.Clone()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) notify(snap domain.Session) {
	s.mu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.mu.RUnlock()
	for _, l := range ls {
		l(snap.Clone())
	}
}

func (s *Store) load(ctx context.Context) domain.Record {
	if s.repo == nil {
		return domain.Record{}
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	blob, err := s.repo.Load(ctx)
	if err != nil {
		log.Printf("session: rehydrate: load failed, starting signed out: %v", err)
		return domain.Record{}
	}
	if blob == nil {
		return domain.Record{}
	}
	rec, err := s.codec.Decode(blob)
	if err != nil {
		log.Printf("session: rehydrate: discarding persisted session: %v", err)
		return domain.Record{}
	}
	return rec
}

func (s *Store) persist(ctx context.Context) {
	if s.repo == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.GetState()
	if !snap.Authenticated() {
		if err := s.repo.Clear(ctx); err != nil {
			log.Printf("session: clear persisted session failed: %v", err)
		}
		return
	}
	blob, err := s.codec.Encode(domain.Record{Token: snap.Token, User: snap.User})
	if err != nil {
		log.Printf("session: encode failed: %v", err)
		return
	}
	if err := s.repo.Save(ctx, blob); err != nil {
		log.Printf("session: persist failed: %v", err)
	}
}
