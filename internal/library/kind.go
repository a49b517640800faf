package library

import (
	"strconv"
	"strings"
	"time"
)

// Kind describes one entity kind to the generic store: how records are keyed,
// ordered, searched, validated and partially updated.
type Kind[E any] struct {
	// Name is the singular resource name, e.g. "book".
	Name string
	// KeyField is the JSON attribute holding the primary key.
	KeyField string

	key        func(E) int
	less       func(a, b E) bool
	matches    func(e E, needle string) bool
	clone      func(E) E
	decode     func(p Payload, now time.Time) (E, error)
	normalize  func(E) (E, error)
	mutable    map[string]fieldDecoder
	apply      func(e *E, d Delta, now time.Time)
	references func(st *state, e E, changed Delta) error
	records    func(st *state) *collection[E]
}

// Key returns the primary key of e.
func (k *Kind[E]) Key(e E) int {
	return k.key(e)
}

// Decode validates a creation payload and returns the normalised record.
func (k *Kind[E]) Decode(p Payload, now time.Time) (E, error) {
	return k.decode(p, now)
}

// Matches reports whether e matches the search query q, ignoring case.
// An empty query matches everything.
func (k *Kind[E]) Matches(e E, q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	return k.matches(e, strings.ToLower(q))
}

func same[E any](e E) E { return e }

// Books describes Book records: keyed by bookId, ordered by title, searched by title.
var Books = &Kind[Book]{
	Name:     "book",
	KeyField: "bookId",
	key:      func(b Book) int { return b.BookID },
	less: func(a, b Book) bool {
		at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
		if at != bt {
			return at < bt
		}
		return a.BookID < b.BookID
	},
	matches:   func(b Book, needle string) bool { return containsFold(b.Title, needle) },
	clone:     same[Book],
	decode:    func(p Payload, _ time.Time) (Book, error) { return ValidateBook(p) },
	normalize: normalizeBook,
	mutable: map[string]fieldDecoder{
		"title":     textField,
		"author":    textField,
		"available": boolField,
	},
	apply: func(b *Book, d Delta, _ time.Time) {
		if v, ok := d.text("title"); ok {
			b.Title = v
		}
		if v, ok := d.text("author"); ok {
			b.Author = v
		}
		if v, ok := d.flag("available"); ok {
			b.Available = v
		}
	},
	records: func(st *state) *collection[Book] { return st.books },
}

// Members describes Member records: keyed and ordered by memberId, searched by first or last name.
var Members = &Kind[Member]{
	Name:     "member",
	KeyField: "memberId",
	key:      func(m Member) int { return m.MemberID },
	less:     func(a, b Member) bool { return a.MemberID < b.MemberID },
	matches: func(m Member, needle string) bool {
		return containsFold(m.FirstName, needle) || containsFold(m.LastName, needle)
	},
	clone:     same[Member],
	decode:    func(p Payload, _ time.Time) (Member, error) { return ValidateMember(p) },
	normalize: normalizeMember,
	mutable: map[string]fieldDecoder{
		"firstName": textField,
		"lastName":  textField,
		"address":   textField,
	},
	apply: func(m *Member, d Delta, _ time.Time) {
		if v, ok := d.text("firstName"); ok {
			m.FirstName = v
		}
		if v, ok := d.text("lastName"); ok {
			m.LastName = v
		}
		if v, ok := d.text("address"); ok {
			m.Address = v
		}
	},
	records: func(st *state) *collection[Member] { return st.members },
}

// Loans describes Loan records: keyed and ordered by loanId, searched by status.
// A loan must reference an existing book and member.
var Loans = &Kind[Loan]{
	Name:      "loan",
	KeyField:  "loanId",
	key:       func(l Loan) int { return l.LoanID },
	less:      func(a, b Loan) bool { return a.LoanID < b.LoanID },
	matches:   func(l Loan, needle string) bool { return containsFold(string(l.Status), needle) },
	clone:     Loan.Clone,
	decode:    ValidateLoan,
	normalize: normalizeLoan,
	mutable: map[string]fieldDecoder{
		"bookId":     idField,
		"memberId":   idField,
		"status":     statusField,
		"returnDate": timeField,
	},
	apply:      applyLoan,
	references: loanReferences,
	records:    func(st *state) *collection[Loan] { return st.loans },
}

// applyLoan keeps status and returnDate consistent: returning a loan stamps
// the return date, reopening it clears the date, and a bare returnDate marks
// the loan returned.
func applyLoan(l *Loan, d Delta, now time.Time) {
	if v, ok := d.id("bookId"); ok {
		l.BookID = v
	}
	if v, ok := d.id("memberId"); ok {
		l.MemberID = v
	}

	status, hasStatus := d.status("status")
	returned, hasDate := d.instant("returnDate")

	switch {
	case hasStatus && status == StatusOnLoan:
		l.Status = StatusOnLoan
		l.ReturnDate = nil
		if hasDate {
			// Left for normalizeLoan to reject.
			l.ReturnDate = &returned
		}
	case hasStatus && status == StatusReturned:
		l.Status = StatusReturned
		if hasDate {
			l.ReturnDate = &returned
		} else if l.ReturnDate == nil {
			t := now.UTC()
			l.ReturnDate = &t
		}
	case hasDate:
		l.Status = StatusReturned
		l.ReturnDate = &returned
	}
}

// loanReferences checks the book and member a loan points at. With a non-nil
// changed delta only the references it touches are checked, so a loan whose
// book was deleted later can still be returned.
func loanReferences(st *state, l Loan, changed Delta) error {
	checkBook, checkMember := true, true
	if changed != nil {
		_, checkBook = changed["bookId"]
		_, checkMember = changed["memberId"]
	}
	if checkBook && !st.books.contains(l.BookID) {
		return &FieldError{Field: "bookId", Reason: "unknown book " + strconv.Itoa(l.BookID), Err: ErrUnknownBook}
	}
	if checkMember && !st.members.contains(l.MemberID) {
		return &FieldError{Field: "memberId", Reason: "unknown member " + strconv.Itoa(l.MemberID), Err: ErrUnknownMember}
	}
	return nil
}
