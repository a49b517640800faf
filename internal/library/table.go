package library

import (
	"context"
)

// Table is the typed view of one collection in a Store.
// It is a small value; copying it is cheap and safe.
type Table[E any] struct {
	store *Store
	kind  *Kind[E]
}

// TableOf returns the table for kind k in s.
func TableOf[E any](s *Store, k *Kind[E]) Table[E] {
	return Table[E]{store: s, kind: k}
}

// Kind returns the descriptor of the table's entity kind.
func (t Table[E]) Kind() *Kind[E] {
	return t.kind
}

func (t Table[E]) records() *collection[E] {
	return t.kind.records(&t.store.st)
}

// All returns every record in canonical order. Never nil.
func (t Table[E]) All() []E {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.records().sorted(t.kind.less, t.kind.clone, nil)
}

// Search returns the records whose search field contains q, ignoring case,
// in canonical order. An empty q returns everything.
func (t Table[E]) Search(q string) []E {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.records().sorted(t.kind.less, t.kind.clone, func(e E) bool {
		return t.kind.Matches(e, q)
	})
}

// Get returns the record with primary key id, or ErrNotFound.
func (t Table[E]) Get(id int) (E, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	c := t.records()
	i := c.index(id)
	if i < 0 {
		var zero E
		return zero, keyError(ErrNotFound, t.kind.Name, id)
	}
	return t.kind.clone(c.items[i]), nil
}

// Count returns the number of records.
func (t Table[E]) Count() int {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.records().len()
}

// CreateFrom validates a creation payload and creates the record.
func (t Table[E]) CreateFrom(ctx context.Context, p Payload) (E, error) {
	e, err := t.kind.decode(p, t.store.now())
	if err != nil {
		t.store.rejected.Add(1)
		var zero E
		return zero, err
	}
	return t.Create(ctx, e)
}

// Create validates e, checks that its key is free and its references exist,
// then inserts and persists it. All of this happens under the store lock.
func (t Table[E]) Create(ctx context.Context, e E) (E, error) {
	created, err := t.create(ctx, e)
	if err != nil {
		var zero E
		return zero, err
	}
	t.store.creates.Add(1)
	t.store.logger.Info(t.kind.Name+" created", "id", t.kind.key(created))
	t.store.notify(Change{Kind: t.kind.Name, Action: ActionCreated, ID: t.kind.key(created), Record: t.kind.clone(created), At: t.store.now()})
	return created, nil
}

func (t Table[E]) create(ctx context.Context, e E) (E, error) {
	var zero E
	e, err := t.kind.normalize(t.kind.clone(e))
	if err != nil {
		t.store.rejected.Add(1)
		return zero, err
	}
	id := t.kind.key(e)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	c := t.records()
	if c.contains(id) {
		t.store.rejected.Add(1)
		return zero, keyError(ErrExists, t.kind.Name, id)
	}
	if t.kind.references != nil {
		if err := t.kind.references(&t.store.st, e, nil); err != nil {
			t.store.rejected.Add(1)
			return zero, err
		}
	}

	c.insert(e)
	if err := t.store.persistLocked(ctx); err != nil {
		c.removeAt(c.len() - 1)
		return zero, err
	}
	return t.kind.clone(e), nil
}

// Patch builds a delta from p and applies it. See Update.
func (t Table[E]) Patch(ctx context.Context, id int, p Payload) (E, error) {
	d, err := t.kind.BuildDelta(p)
	if err != nil {
		t.store.rejected.Add(1)
		var zero E
		return zero, err
	}
	return t.Update(ctx, id, d)
}

// Update applies d to the record with key id and persists the result.
// An empty delta fails with ErrNoChanges before the store is touched;
// a missing record fails with ErrNotFound.
func (t Table[E]) Update(ctx context.Context, id int, d Delta) (E, error) {
	var zero E
	if len(d) == 0 {
		t.store.rejected.Add(1)
		return zero, ErrNoChanges
	}
	updated, err := t.update(ctx, id, d)
	if err != nil {
		return zero, err
	}
	t.store.updates.Add(1)
	t.store.logger.Info(t.kind.Name+" updated", "id", id, "fields", d.Fields())
	t.store.notify(Change{Kind: t.kind.Name, Action: ActionUpdated, ID: id, Record: t.kind.clone(updated), Fields: d.Fields(), At: t.store.now()})
	return updated, nil
}

func (t Table[E]) update(ctx context.Context, id int, d Delta) (E, error) {
	var zero E
	now := t.store.now()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	c := t.records()
	i := c.index(id)
	if i < 0 {
		return zero, keyError(ErrNotFound, t.kind.Name, id)
	}

	old := c.items[i]
	next := t.kind.clone(old)
	t.kind.apply(&next, d, now)
	next, err := t.kind.normalize(next)
	if err != nil {
		t.store.rejected.Add(1)
		return zero, err
	}
	if t.kind.references != nil {
		if err := t.kind.references(&t.store.st, next, d); err != nil {
			t.store.rejected.Add(1)
			return zero, err
		}
	}

	c.replace(i, next)
	if err := t.store.persistLocked(ctx); err != nil {
		c.replace(i, old)
		return zero, err
	}
	return t.kind.clone(next), nil
}

// Delete removes the record with key id and persists the result.
// A missing record fails with ErrNotFound, so a repeated delete is reported.
func (t Table[E]) Delete(ctx context.Context, id int) error {
	removed, err := t.delete(ctx, id)
	if err != nil {
		return err
	}
	t.store.deletes.Add(1)
	t.store.logger.Info(t.kind.Name+" deleted", "id", id)
	t.store.notify(Change{Kind: t.kind.Name, Action: ActionDeleted, ID: id, Record: t.kind.clone(removed), At: t.store.now()})
	return nil
}

func (t Table[E]) delete(ctx context.Context, id int) (E, error) {
	var zero E

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	c := t.records()
	i := c.index(id)
	if i < 0 {
		return zero, keyError(ErrNotFound, t.kind.Name, id)
	}

	removed := c.removeAt(i)
	if err := t.store.persistLocked(ctx); err != nil {
		c.insertAt(i, removed)
		return zero, err
	}
	return removed, nil
}
