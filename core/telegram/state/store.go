package state

import (
	"context"
	"sync"
)

// Store keeps one session value of type S per user identity. Sessions are
// never dropped; callers reset them by saving a new value, so counters the
// value carries across resets stay monotonic.
type Store[S any] struct {
	mu       sync.Mutex
	sessions map[int64]*slot[S]
	fresh    func() S
}

type slot[S any] struct {
	// lock is a one-slot semaphore so waiters can give up on ctx cancellation.
	lock  chan struct{}
	value S
	set   bool
}

// NewStore creates an empty Store. fresh builds the value returned for users
// without a session; it may be nil, in which case the zero value is used.
func NewStore[S any](fresh func() S) *Store[S] {
	if fresh == nil {
		fresh = func() S {
			var zero S
			return zero
		}
	}
	return &Store[S]{
		sessions: make(map[int64]*slot[S]),
		fresh:    fresh,
	}
}

func (s *Store[S]) slotFor(userID int64) *slot[S] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.sessions[userID]
	if !ok {
		sl = &slot[S]{lock: make(chan struct{}, 1)}
		s.sessions[userID] = sl
	}
	return sl
}

// Get returns a snapshot of the user's session, or a fresh value if none exists.
func (s *Store[S]) Get(userID int64) S {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.sessions[userID]; ok && sl.set {
		return sl.value
	}
	return s.fresh()
}

// Set replaces the user's session without taking the user lock.
// Use Lock or Update for read-modify-write sequences.
func (s *Store[S]) Set(userID int64, value S) {
	sl := s.slotFor(userID)
	s.mu.Lock()
	sl.value = value
	sl.set = true
	s.mu.Unlock()
}

// Count returns the number of stored sessions matching pred.
func (s *Store[S]) Count(pred func(S) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.sessions {
		if !sl.set {
			continue
		}
		if pred == nil || pred(sl.value) {
			n++
		}
	}
	return n
}

// Lock acquires the user's lock and returns a transaction over the session.
// It blocks until the lock is free or ctx is done.
func (s *Store[S]) Lock(ctx context.Context, userID int64) (*Tx[S], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sl := s.slotFor(userID)
	select {
	case sl.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx[S]{store: s, slot: sl}, nil
}

// Update runs fn on the user's session inside the user's critical section and
// stores the result unless fn returns an error.
func (s *Store[S]) Update(ctx context.Context, userID int64, fn func(*S) error) error {
	tx, err := s.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer tx.Unlock()
	cur := tx.Session()
	if err := fn(&cur); err != nil {
		return err
	}
	tx.Save(cur)
	return nil
}

// Tx is an exclusive handle on one user's session.
type Tx[S any] struct {
	store *Store[S]
	slot  *slot[S]
	once  sync.Once
}

// Session returns the current session value.
func (t *Tx[S]) Session() S {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.slot.set {
		return t.slot.value
	}
	return t.store.fresh()
}

// Save stores value as the user's session.
func (t *Tx[S]) Save(value S) {
	t.store.mu.Lock()
	t.slot.value = value
	t.slot.set = true
	t.store.mu.Unlock()
}

// Unlock releases the user's lock. Calling it more than once is a no-op.
func (t *Tx[S]) Unlock() {
	t.once.Do(func() { <-t.slot.lock })
}
