// Package library implements the book, member and loan collections.
//
// A Store owns all three collections and guards them with one lock. Each
// collection is reached through a Table, a typed view driven by a Kind
// descriptor (primary key, sort order, search field, mutable fields).
// The same generic code therefore serves every entity kind.
//
// # Operations
//
//   - All and Search return sorted copies
//   - Get looks a record up by primary key
//   - Create validates, checks uniqueness and loan references, inserts and
//     persists as one critical section
//   - Update merges a Delta built by Kind.BuildDelta
//   - Delete removes a record and reports ErrNotFound if it was absent
//
// Every mutation rewrites the full snapshot through a Persister before it
// returns. If the write fails the in-memory change is undone and ErrPersist
// is returned.
//
// # Usage
//
//	store, err := library.Open(ctx, library.Options{
//	    Persister: library.NewFilePersister("./data/library.json"),
//	    Seed:      true,
//	})
//	if err != nil {
//	    return err
//	}
//	book, err := store.Books().Create(ctx, library.Book{BookID: 1, Title: "Dune", Author: "Herbert", Available: true})
package library
