package library

import "time"

// Action names a kind of change.
type Action string

// Change actions.
const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionImported Action = "imported"
)

// StoreKind is the Change.Kind of changes that affect the whole store.
const StoreKind = "store"

// Change describes one successful mutation.
// Record is a copy of the record after the change, or the removed record for deletes.
type Change struct {
	Kind   string    `json:"kind"`
	Action Action    `json:"action"`
	ID     int       `json:"id,omitempty"`
	Record any       `json:"record,omitempty"`
	Fields []string  `json:"fields,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier receives changes after they are persisted.
// Notify is called synchronously from the mutating goroutine and must not block.
type Notifier interface {
	Notify(c Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Change)

// Notify calls f(c).
func (f NotifierFunc) Notify(c Change) {
	f(c)
}
