package library

import (
	"encoding/json"
	"sort"
	"time"
)

// Delta holds the decoded values of a partial update, keyed by attribute name.
// Only allow-listed, non-empty fields ever appear in it.
type Delta map[string]any

// Fields returns the attribute names in d, sorted.
func (d Delta) Fields() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d Delta) text(field string) (string, bool) {
	v, ok := d[field].(string)
	return v, ok
}

func (d Delta) flag(field string) (bool, bool) {
	v, ok := d[field].(bool)
	return v, ok
}

func (d Delta) id(field string) (int, bool) {
	v, ok := d[field].(int)
	return v, ok
}

func (d Delta) status(field string) (LoanStatus, bool) {
	v, ok := d[field].(LoanStatus)
	return v, ok
}

func (d Delta) instant(field string) (time.Time, bool) {
	v, ok := d[field].(time.Time)
	return v, ok
}

// fieldDecoder turns one raw attribute into a delta value.
// skip reports a value that is present but carries no change (an empty string).
type fieldDecoder func(field string, raw json.RawMessage) (value any, skip bool, err error)

func textField(field string, raw json.RawMessage) (any, bool, error) {
	s, err := decodeText(field, raw)
	if err != nil {
		return nil, false, err
	}
	return s, s == "", nil
}

func boolField(field string, raw json.RawMessage) (any, bool, error) {
	b, err := decodeBool(field, raw)
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}

func idField(field string, raw json.RawMessage) (any, bool, error) {
	if s, err := decodeText(field, raw); err == nil && s == "" {
		return nil, true, nil
	}
	n, err := decodeID(field, raw)
	if err != nil {
		return nil, false, err
	}
	return n, false, nil
}

func statusField(field string, raw json.RawMessage) (any, bool, error) {
	if s, err := decodeText(field, raw); err == nil && s == "" {
		return nil, true, nil
	}
	st, err := decodeStatus(field, raw)
	if err != nil {
		return nil, false, err
	}
	return st, false, nil
}

func timeField(field string, raw json.RawMessage) (any, bool, error) {
	if s, err := decodeText(field, raw); err == nil && s == "" {
		return nil, true, nil
	}
	t, err := decodeTime(field, raw)
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}

// BuildDelta picks the mutable attributes out of p. Unknown attributes and
// the primary key are ignored; empty strings and nulls are skipped.
// It returns ErrNoChanges when nothing is left.
func (k *Kind[E]) BuildDelta(p Payload) (Delta, error) {
	d := make(Delta)
	for _, field := range k.MutableFields() {
		raw, ok := p.lookup(field)
		if !ok {
			continue
		}
		v, skip, err := k.mutable[field](field, raw)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		d[field] = v
	}
	if len(d) == 0 {
		return nil, ErrNoChanges
	}
	return d, nil
}

// MutableFields returns the attributes a partial update may change, sorted.
func (k *Kind[E]) MutableFields() []string {
	names := make([]string, 0, len(k.mutable))
	for name := range k.mutable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
