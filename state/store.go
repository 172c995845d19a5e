package state

import (
	"context"
	"sync"

	"chatdesk/eventbus"
	"chatdesk/events"
	"chatdesk/internal/logger"
)

// Tx exposes the containers inside one critical section of the Store.
type Tx struct {
	Catalog  *Catalog
	Timeline *Timeline
	Registry *Registry
}

// Store is the single owned state container. Every read and write of the
// catalog, timeline, registry and busy counter goes through it, and no
// network I/O happens while its lock is held.
//
// After each successful mutation a StateChanged event carrying the full
// snapshot is published. Snapshots carry a monotonically increasing revision
// so a consumer can drop one that arrives after a newer one.
type Store struct {
	mu       sync.Mutex
	catalog  Catalog
	timeline Timeline
	registry Registry
	busy     int
	revision uint64

	bus eventbus.EventBus
}

// NewStore creates an empty store. bus may be nil.
func NewStore(defaultModel string, bus eventbus.EventBus) *Store {
	return &Store{
		registry: NewRegistry(defaultModel),
		bus:      bus,
	}
}

// Read runs fn under the lock. fn must not mutate.
func (s *Store) Read(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tx())
}

// Update runs fn under the lock and publishes a snapshot if fn succeeds.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	if err := fn(s.tx()); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// UpdateIfCurrent applies fn only if sessionID is still the current session.
// It reports whether fn ran. This is the guard against completions of
// operations issued for a session the user has since left.
func (s *Store) UpdateIfCurrent(sessionID string, fn func(tx *Tx) error) (bool, error) {
	s.mu.Lock()
	if s.catalog.CurrentID() != sessionID {
		s.mu.Unlock()
		return false, nil
	}
	if err := fn(s.tx()); err != nil {
		s.mu.Unlock()
		return true, err
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true, nil
}

// Begin marks one user-initiated operation as pending. The returned func
// clears it and must be called exactly once, typically via defer.
func (s *Store) Begin() (end func()) {
	s.mu.Lock()
	s.busy++
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy--
			snap := s.commitLocked()
			s.mu.Unlock()
			s.publish(snap)
		})
	}
}

func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

func (s *Store) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.CurrentID()
}

func (s *Store) Snapshot() events.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) tx() *Tx {
	return &Tx{Catalog: &s.catalog, Timeline: &s.timeline, Registry: &s.registry}
}

func (s *Store) commitLocked() events.Snapshot {
	s.revision++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() events.Snapshot {
	return events.Snapshot{
		Revision:         s.revision,
		Sessions:         s.catalog.Sessions(),
		CurrentSessionID: s.catalog.CurrentID(),
		Messages:         s.timeline.Messages(),
		Models:           s.registry.Models(),
		SelectedModel:    s.registry.Selected(),
		Busy:             s.busy > 0,
	}
}

func (s *Store) publish(snap events.Snapshot) {
	if s.bus == nil {
		return
	}
	if err := eventbus.PublishDomainEvent(context.Background(), s.bus, events.NewStateChanged(snap)); err != nil {
		logger.DebugWithFields("state snapshot not published", logger.Fields{
			"revision": snap.Revision,
			"error":    err.Error(),
		})
	}
}
