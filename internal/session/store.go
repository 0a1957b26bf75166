// Package session owns live sessions and serializes every change to a
// session key through a transaction.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/state"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

// ErrNoSession is returned by Tx helpers that need a session when none exists.
var ErrNoSession = errors.New("no session for key")

// ErrPurgeIncomplete is returned by Update when a finished session was
// committed but its save slots could not be deleted. The default slot is
// overwritten with the finished session so restore refuses it.
var ErrPurgeIncomplete = errors.New("finished session's slots were not purged")

// Store holds live sessions in memory, backed by slot storage.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*state.Session
	locks    map[string]*keyLock

	slots  storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// keyLock is a capacity-1 channel so acquisition can honour ctx.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for save and update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store persisting slots to slots.
func NewStore(slots storage.Storage, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*state.Session),
		locks:    make(map[string]*keyLock),
		slots:    slots,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slots returns the backing slot storage.
func (s *Store) Slots() storage.Storage {
	return s.slots
}

func (s *Store) acquire(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

// Update runs fn against a private copy of the session for key while
// holding that key's lock. If fn returns an error nothing is committed.
// Otherwise the copy becomes the live session; an active session is
// autosaved to the default slot and a terminal one is dropped from
// memory with all of its slots purged. The returned session is a
// snapshot the caller may keep; it comes with ErrPurgeIncomplete when the
// commit stood but the purge did not.
func (s *Store) Update(ctx context.Context, key string, fn func(*Tx) error) (*state.Session, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx := &Tx{ctx: ctx, store: s, key: key}
	s.mu.Lock()
	live := s.sessions[key]
	s.mu.Unlock()
	if live != nil {
		if tx.session, err = live.Clone(); err != nil {
			return nil, err
		}
	}

	if err := fn(tx); err != nil {
		return nil, err
	}
	return s.commit(ctx, tx)
}

func (s *Store) commit(ctx context.Context, tx *Tx) (*state.Session, error) {
	next := tx.session
	if next == nil {
		if tx.discarded {
			s.mu.Lock()
			delete(s.sessions, tx.key)
			s.mu.Unlock()
		}
		return nil, nil
	}

	next.UpdatedAt = s.now()
	snapshot, err := next.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot session: %w", err)
	}

	s.mu.Lock()
	if next.Active {
		s.sessions[tx.key] = next
	} else {
		delete(s.sessions, tx.key)
	}
	s.mu.Unlock()

	if !next.Active {
		return snapshot, s.purge(ctx, tx.key, next)
	}

	if err := s.slots.SaveSlot(ctx, &storage.SaveSlot{
		Key:     tx.key,
		Name:    storage.DefaultSlot,
		SavedAt: s.now(),
		Session: next,
	}); err != nil {
		s.logger.Error("Autosave failed", "session_key", tx.key, "error", err)
	}
	return snapshot, nil
}

// purge deletes every slot of a finished session, retrying once.
func (s *Store) purge(ctx context.Context, key string, finished *state.Session) error {
	n, err := s.slots.DeleteAllSlots(ctx, key)
	if err != nil {
		s.logger.Warn("Slot purge failed, retrying", "session_key", key, "error", err)
		n, err = s.slots.DeleteAllSlots(ctx, key)
	}
	if err == nil {
		s.logger.Info("Session finished, slots purged", "session_key", key, "slots", n)
		return nil
	}

	s.logger.Error("Failed to purge slots for finished session", "session_key", key, "error", err)
	if serr := s.slots.SaveSlot(ctx, &storage.SaveSlot{
		Key:     key,
		Name:    storage.DefaultSlot,
		SavedAt: s.now(),
		Session: finished,
	}); serr != nil {
		s.logger.Error("Failed to overwrite autosave of finished session", "session_key", key, "error", serr)
	}
	return fmt.Errorf("%w: %v", ErrPurgeIncomplete, err)
}

// Snapshot returns a copy of the live session for key, or nil.
func (s *Store) Snapshot(key string) (*state.Session, error) {
	s.mu.Lock()
	live := s.sessions[key]
	s.mu.Unlock()
	if live == nil {
		return nil, nil
	}
	return live.Clone()
}

// View calls fn with the live session for key, which may be nil.
// fn must not modify the session.
func (s *Store) View(key string, fn func(*state.Session) error) error {
	s.mu.Lock()
	live := s.sessions[key]
	s.mu.Unlock()
	return fn(live)
}

// Keys returns the keys of sessions held in memory.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Tx is the working view of one key inside Update.
type Tx struct {
	ctx       context.Context
	store     *Store
	key       string
	session   *state.Session
	discarded bool
}

// Key is the session key the transaction is bound to.
func (tx *Tx) Key() string {
	return tx.key
}

// Session is the working copy, or nil when the key has no live session.
func (tx *Tx) Session() *state.Session {
	return tx.session
}

// Now is the store clock.
func (tx *Tx) Now() time.Time {
	return tx.store.now()
}

// Replace swaps in a whole new session, e.g. after start or restore.
func (tx *Tx) Replace(s *state.Session) {
	tx.session = s
	tx.discarded = false
}

// Discard drops the live session from memory on commit. Slots are kept.
func (tx *Tx) Discard() {
	tx.session = nil
	tx.discarded = true
}

// SaveSlot writes the working copy to a named slot.
func (tx *Tx) SaveSlot(name string) error {
	if err := storage.ValidateSlotName(name); err != nil {
		return err
	}
	if tx.session == nil {
		return ErrNoSession
	}
	return tx.store.slots.SaveSlot(tx.ctx, &storage.SaveSlot{
		Key:     tx.key,
		Name:    name,
		SavedAt: tx.store.now(),
		Session: tx.session,
	})
}

// LoadSlot reads a slot for this key. It fails with storage.ErrSlotNotFound,
// storage.ErrSlotInactive or storage.ErrCorruptSlot as appropriate.
func (tx *Tx) LoadSlot(name string) (*state.Session, error) {
	if err := storage.ValidateSlotName(name); err != nil {
		return nil, err
	}
	slot, err := tx.store.slots.LoadSlot(tx.ctx, tx.key, name)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, storage.ErrSlotNotFound
	}
	if !slot.Session.Active {
		return nil, storage.ErrSlotInactive
	}
	return slot.Session, nil
}

// ListSlots lists this key's save slots.
func (tx *Tx) ListSlots() ([]storage.SlotInfo, error) {
	return tx.store.slots.ListSlots(tx.ctx, tx.key)
}

// HasActiveSave reports whether the default slot holds an active session.
// A corrupt default slot counts as no save.
func (tx *Tx) HasActiveSave() (bool, error) {
	_, err := tx.LoadSlot(storage.DefaultSlot)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrSlotNotFound), errors.Is(err, storage.ErrSlotInactive):
		return false, nil
	case errors.Is(err, storage.ErrCorruptSlot):
		tx.store.logger.Warn("Default slot is corrupt", "session_key", tx.key, "error", err)
		return false, nil
	}
	return false, err
}
