package library

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the Store.
// This allows the store to log without depending on a specific logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Persister reads and writes the full store snapshot.
type Persister interface {
	// Load returns the stored snapshot. found is false when nothing has been stored yet.
	Load(ctx context.Context) (snap Snapshot, found bool, err error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error
}

// Options configures Open.
type Options struct {
	// Persister mirrors the store. Nil keeps everything in memory only.
	Persister Persister
	// Logger defaults to a no-op logger.
	Logger Logger
	// Clock supplies default loan and return dates. Defaults to time.Now.
	Clock func() time.Time
	// Seed fills an empty backing store with the sample records.
	Seed bool
}

// state holds the three collections. It is only touched under Store.mu.
type state struct {
	books   *collection[Book]
	members *collection[Member]
	loans   *collection[Loan]
}

// Store owns the book, member and loan collections.
//
// All public methods are thread-safe. Mutations are serialised by one lock,
// which makes check-and-insert atomic and keeps the persisted snapshot in
// step with memory.
type Store struct {
	mu        sync.RWMutex
	st        state
	persister Persister
	logger    Logger
	clock     func() time.Time

	notifyMu  sync.RWMutex
	notifiers []Notifier

	creates   atomic.Int64
	updates   atomic.Int64
	deletes   atomic.Int64
	rejected  atomic.Int64
	saveFails atomic.Int64
}

// Open loads the store from opts.Persister, seeding it first when the
// backing store is empty and opts.Seed is set.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{
		persister: opts.Persister,
		logger:    opts.Logger,
		clock:     opts.Clock,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	var snap Snapshot
	found := false
	if s.persister != nil {
		var err error
		snap, found, err = s.persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading store: %w", err)
		}
	}

	seeded := false
	if !found && opts.Seed {
		snap = SeedSnapshot()
		seeded = true
	}

	st, err := buildState(snap)
	if err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}
	s.st = st

	if seeded && s.persister != nil {
		if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
			return nil, fmt.Errorf("saving seed data: %w", err)
		}
	}

	s.logger.Info("library store opened",
		"books", st.books.len(),
		"members", st.members.len(),
		"loans", st.loans.len(),
		"seeded", seeded,
	)
	return s, nil
}

// buildState validates a snapshot and turns it into collections.
// Loan references are not checked: books and members may be deleted after
// a loan was created.
func buildState(snap Snapshot) (state, error) {
	books, err := loadRecords(Books, snap.Books)
	if err != nil {
		return state{}, err
	}
	members, err := loadRecords(Members, snap.Members)
	if err != nil {
		return state{}, err
	}
	loans, err := loadRecords(Loans, snap.Loans)
	if err != nil {
		return state{}, err
	}
	return state{books: books, members: members, loans: loans}, nil
}

func loadRecords[E any](k *Kind[E], records []E) (*collection[E], error) {
	c := newCollection(k.key, make([]E, 0, len(records)))
	for _, r := range records {
		e, err := k.normalize(k.clone(r))
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", k.Name, k.key(r), err)
		}
		if c.contains(k.key(e)) {
			return nil, keyError(ErrExists, k.Name, k.key(e))
		}
		c.insert(e)
	}
	return c, nil
}

// AddNotifier registers n to receive every successful change.
func (s *Store) AddNotifier(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Books returns the book table.
func (s *Store) Books() Table[Book] {
	return TableOf(s, Books)
}

// Members returns the member table.
func (s *Store) Members() Table[Member] {
	return TableOf(s, Members)
}

// Loans returns the loan table.
func (s *Store) Loans() Table[Loan] {
	return TableOf(s, Loans)
}

// Snapshot returns a copy of every record, each kind in its canonical order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Books:   s.st.books.sorted(Books.less, Books.clone, nil),
		Members: s.st.members.sorted(Members.less, Members.clone, nil),
		Loans:   s.st.loans.sorted(Loans.less, Loans.clone, nil),
	}
}

// Import replaces the whole store with snap and persists it.
// On any error the previous content is kept.
func (s *Store) Import(ctx context.Context, snap Snapshot) error {
	st, err := buildState(snap)
	if err != nil {
		s.rejected.Add(1)
		return err
	}

	s.mu.Lock()
	prev := s.st
	s.st = st
	if err := s.persistLocked(ctx); err != nil {
		s.st = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("library store imported",
		"books", st.books.len(),
		"members", st.members.len(),
		"loans", st.loans.len(),
	)
	s.notify(Change{Kind: StoreKind, Action: ActionImported, At: s.now()})
	return nil
}

// Stats returns record counts and mutation counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	onLoan := 0
	for _, l := range s.st.loans.items {
		if l.Status == StatusOnLoan {
			onLoan++
		}
	}
	stats := Stats{
		Books:   s.st.books.len(),
		Members: s.st.members.len(),
		Loans:   s.st.loans.len(),
		OnLoan:  onLoan,
	}
	s.mu.RUnlock()

	stats.Creates = s.creates.Load()
	stats.Updates = s.updates.Load()
	stats.Deletes = s.deletes.Load()
	stats.Rejected = s.rejected.Load()
	stats.SaveFails = s.saveFails.Load()
	return stats
}

// HealthCheck verifies the backing store can be read.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if _, _, err := s.persister.Load(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// Close releases the persister if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.persister.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

// persistLocked writes the current snapshot. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
		s.saveFails.Add(1)
		s.logger.Error("persisting library store failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) notify(c Change) {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		n.Notify(c)
	}
}
