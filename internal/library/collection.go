package library

import (
	"sort"
	"strings"
)

// collection is an unordered slice of records with linear lookups.
// It is not safe for concurrent use; the Store lock protects it.
type collection[E any] struct {
	items []E
	key   func(E) int
}

func newCollection[E any](key func(E) int, items []E) *collection[E] {
	return &collection[E]{items: items, key: key}
}

// index returns the position of the record with id, or -1.
func (c *collection[E]) index(id int) int {
	for i, e := range c.items {
		if c.key(e) == id {
			return i
		}
	}
	return -1
}

func (c *collection[E]) contains(id int) bool {
	return c.index(id) >= 0
}

func (c *collection[E]) insert(e E) {
	c.items = append(c.items, e)
}

func (c *collection[E]) replace(i int, e E) {
	c.items[i] = e
}

// removeAt deletes position i, keeping the order of the rest.
func (c *collection[E]) removeAt(i int) E {
	e := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return e
}

// insertAt puts e back at position i. Used to undo removeAt.
func (c *collection[E]) insertAt(i int, e E) {
	c.items = append(c.items, e)
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = e
}

func (c *collection[E]) len() int {
	return len(c.items)
}

// sorted returns cloned records matching keep, in order.
// A nil keep selects everything.
func (c *collection[E]) sorted(less func(a, b E) bool, clone func(E) E, keep func(E) bool) []E {
	out := make([]E, 0, len(c.items))
	for _, e := range c.items {
		if keep == nil || keep(e) {
			out = append(out, clone(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// containsFold reports whether needle, already lower-cased, occurs in s ignoring case.
func containsFold(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}
