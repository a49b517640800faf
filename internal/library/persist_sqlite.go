package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/database"
)

// SQLitePersister keeps the collections in the books, members and loans
// tables created by the library migrations. Each save replaces all three
// tables inside one transaction.
type SQLitePersister struct {
	db *database.DB
}

// NewSQLitePersister creates a persister over a migrated database.
func NewSQLitePersister(db *database.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

const initializedKey = "initialized"

// Load reads every table. found is false until the first Save.
func (p *SQLitePersister) Load(ctx context.Context) (Snapshot, bool, error) {
	var marker string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", initializedKey).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("reading store marker: %w", err)
	}

	snap := Snapshot{}
	if snap.Books, err = p.loadBooks(ctx); err != nil {
		return Snapshot{}, false, err
	}
	if snap.Members, err = p.loadMembers(ctx); err != nil {
		return Snapshot{}, false, err
	}
	if snap.Loans, err = p.loadLoans(ctx); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (p *SQLitePersister) loadBooks(ctx context.Context) ([]Book, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT book_id, title, author, available FROM books ORDER BY book_id")
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.BookID, &b.Title, &b.Author, &b.Available); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating books: %w", err)
	}
	return books, nil
}

func (p *SQLitePersister) loadMembers(ctx context.Context) ([]Member, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT member_id, first_name, last_name, address FROM members ORDER BY member_id")
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.MemberID, &m.FirstName, &m.LastName, &m.Address); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating members: %w", err)
	}
	return members, nil
}

func (p *SQLitePersister) loadLoans(ctx context.Context) ([]Loan, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT loan_id, book_id, member_id, status, loan_date, return_date FROM loans ORDER BY loan_id")
	if err != nil {
		return nil, fmt.Errorf("querying loans: %w", err)
	}
	defer rows.Close()

	loans := []Loan{}
	for rows.Next() {
		var l Loan
		var status, loanDate string
		var returnDate sql.NullString
		if err := rows.Scan(&l.LoanID, &l.BookID, &l.MemberID, &status, &loanDate, &returnDate); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		l.Status = LoanStatus(status)
		if l.LoanDate, err = time.Parse(time.RFC3339Nano, loanDate); err != nil {
			return nil, fmt.Errorf("loan %d: parsing loan_date: %w", l.LoanID, err)
		}
		if returnDate.Valid {
			t, err := time.Parse(time.RFC3339Nano, returnDate.String)
			if err != nil {
				return nil, fmt.Errorf("loan %d: parsing return_date: %w", l.LoanID, err)
			}
			l.ReturnDate = &t
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loans: %w", err)
	}
	return loans, nil
}

// Save replaces all three tables with snap.
func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, table := range []string{"loans", "members", "books"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { //nolint:gosec // Fixed table names
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, b := range snap.Books {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO books (book_id, title, author, available) VALUES (?, ?, ?, ?)",
			b.BookID, b.Title, b.Author, b.Available,
		); err != nil {
			return fmt.Errorf("inserting book %d: %w", b.BookID, err)
		}
	}
	for _, m := range snap.Members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO members (member_id, first_name, last_name, address) VALUES (?, ?, ?, ?)",
			m.MemberID, m.FirstName, m.LastName, m.Address,
		); err != nil {
			return fmt.Errorf("inserting member %d: %w", m.MemberID, err)
		}
	}
	for _, l := range snap.Loans {
		var returnDate *string
		if l.ReturnDate != nil {
			s := l.ReturnDate.UTC().Format(time.RFC3339Nano)
			returnDate = &s
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO loans (loan_id, book_id, member_id, status, loan_date, return_date) VALUES (?, ?, ?, ?, ?, ?)",
			l.LoanID, l.BookID, l.MemberID, string(l.Status), l.LoanDate.UTC().Format(time.RFC3339Nano), returnDate,
		); err != nil {
			return fmt.Errorf("inserting loan %d: %w", l.LoanID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		initializedKey, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("writing store marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}
