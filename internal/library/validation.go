package library

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation constants.
const (
	maxTextLength = 256
	maxID         = math.MaxInt32
	dateLayout    = "2006-01-02"
)

// Payload is a decoded JSON request body keyed by attribute name.
// Values stay raw so each field can be checked against its own type rule.
type Payload map[string]json.RawMessage

// ParsePayload decodes a JSON object into a Payload.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &FieldError{Field: "body", Reason: "must be a JSON object", Err: ErrInvalid}
	}
	if p == nil {
		return nil, &FieldError{Field: "body", Reason: "must be a JSON object", Err: ErrInvalid}
	}
	return p, nil
}

// lookup returns the raw value for field. JSON null counts as absent.
func (p Payload) lookup(field string) (json.RawMessage, bool) {
	raw, ok := p[field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// ParseID parses a primary key given as text, e.g. a path parameter.
func ParseID(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > maxID {
		return 0, invalidField(field, "must be a positive integer")
	}
	return n, nil
}

// decodeID accepts a JSON number or a numeric string.
func decodeID(field string, raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, invalidField(field, "must be a positive integer")
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t < 1 || t > maxID {
			return 0, invalidField(field, "must be a positive integer")
		}
		return int(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, missingField(field)
		}
		return ParseID(field, t)
	default:
		return 0, invalidField(field, "must be a positive integer")
	}
}

// decodeText returns the trimmed string. An empty result is not an error here;
// callers decide whether empty means missing or skipped.
func decodeText(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalidField(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxTextLength {
		return "", invalidField(field, "must be at most 256 characters")
	}
	return s, nil
}

// decodeBool accepts a JSON boolean or the strings "true" and "false".
func decodeBool(field string, raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, invalidField(field, "must be a boolean")
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, invalidField(field, "must be a boolean")
		}
		return b, nil
	default:
		return false, invalidField(field, "must be a boolean")
	}
}

// decodeTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func decodeTime(field string, raw json.RawMessage) (time.Time, error) {
	s, err := decodeText(field, raw)
	if err != nil {
		return time.Time{}, invalidField(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if s == "" {
		return time.Time{}, missingField(field)
	}
	return parseTime(field, s)
}

func parseTime(field, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, invalidField(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// decodeStatus accepts a loan status in any letter case.
func decodeStatus(field string, raw json.RawMessage) (LoanStatus, error) {
	s, err := decodeText(field, raw)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", missingField(field)
	}
	status := LoanStatus(strings.ToLower(s))
	if !validStatus(status) {
		return "", invalidField(field, `must be "on-loan" or "returned"`)
	}
	return status, nil
}

func validStatus(s LoanStatus) bool {
	for _, v := range AllLoanStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// requiredID reads a mandatory positive integer.
func requiredID(p Payload, field string) (int, error) {
	raw, ok := p.lookup(field)
	if !ok {
		return 0, missingField(field)
	}
	return decodeID(field, raw)
}

// requiredText reads a mandatory string that must be non-empty after trimming.
func requiredText(p Payload, field string) (string, error) {
	raw, ok := p.lookup(field)
	if !ok {
		return "", missingField(field)
	}
	s, err := decodeText(field, raw)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", missingField(field)
	}
	return s, nil
}

// checkText validates a string already held in a typed record.
func checkText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", missingField(field)
	}
	if utf8.RuneCountInString(s) > maxTextLength {
		return "", invalidField(field, "must be at most 256 characters")
	}
	return s, nil
}

func checkID(field string, id int) error {
	if id < 1 || id > maxID {
		return invalidField(field, "must be a positive integer")
	}
	return nil
}

// ValidateBook checks a payload for book creation and returns the normalised record.
// available defaults to true.
func ValidateBook(p Payload) (Book, error) {
	var b Book
	var err error
	if b.BookID, err = requiredID(p, "bookId"); err != nil {
		return Book{}, err
	}
	if b.Title, err = requiredText(p, "title"); err != nil {
		return Book{}, err
	}
	if b.Author, err = requiredText(p, "author"); err != nil {
		return Book{}, err
	}
	b.Available = true
	if raw, ok := p.lookup("available"); ok {
		if b.Available, err = decodeBool("available", raw); err != nil {
			return Book{}, err
		}
	}
	return b, nil
}

// ValidateMember checks a payload for member creation and returns the normalised record.
func ValidateMember(p Payload) (Member, error) {
	var m Member
	var err error
	if m.MemberID, err = requiredID(p, "memberId"); err != nil {
		return Member{}, err
	}
	if m.FirstName, err = requiredText(p, "firstName"); err != nil {
		return Member{}, err
	}
	if m.LastName, err = requiredText(p, "lastName"); err != nil {
		return Member{}, err
	}
	if m.Address, err = requiredText(p, "address"); err != nil {
		return Member{}, err
	}
	return m, nil
}

// ValidateLoan checks a payload for loan creation and returns the normalised record.
// References to book and member are checked by the store, which holds the lock.
//
// Defaults: loanDate is now; status is "returned" when a returnDate is given,
// otherwise "on-loan"; a returned loan without returnDate is stamped with now.
func ValidateLoan(p Payload, now time.Time) (Loan, error) {
	var l Loan
	var err error
	if l.LoanID, err = requiredID(p, "loanId"); err != nil {
		return Loan{}, err
	}
	if l.BookID, err = requiredID(p, "bookId"); err != nil {
		return Loan{}, err
	}
	if l.MemberID, err = requiredID(p, "memberId"); err != nil {
		return Loan{}, err
	}

	l.LoanDate = now.UTC()
	if raw, ok := p.lookup("loanDate"); ok {
		if l.LoanDate, err = decodeTime("loanDate", raw); err != nil {
			return Loan{}, err
		}
	}
	if raw, ok := p.lookup("returnDate"); ok {
		t, err := decodeTime("returnDate", raw)
		if err != nil {
			return Loan{}, err
		}
		l.ReturnDate = &t
	}

	switch raw, ok := p.lookup("status"); {
	case ok:
		if l.Status, err = decodeStatus("status", raw); err != nil {
			return Loan{}, err
		}
	case l.ReturnDate != nil:
		l.Status = StatusReturned
	default:
		l.Status = StatusOnLoan
	}
	if l.Status == StatusReturned && l.ReturnDate == nil {
		t := now.UTC()
		l.ReturnDate = &t
	}

	return normalizeLoan(l)
}

func normalizeBook(b Book) (Book, error) {
	var err error
	if err = checkID("bookId", b.BookID); err != nil {
		return Book{}, err
	}
	if b.Title, err = checkText("title", b.Title); err != nil {
		return Book{}, err
	}
	if b.Author, err = checkText("author", b.Author); err != nil {
		return Book{}, err
	}
	return b, nil
}

func normalizeMember(m Member) (Member, error) {
	var err error
	if err = checkID("memberId", m.MemberID); err != nil {
		return Member{}, err
	}
	if m.FirstName, err = checkText("firstName", m.FirstName); err != nil {
		return Member{}, err
	}
	if m.LastName, err = checkText("lastName", m.LastName); err != nil {
		return Member{}, err
	}
	if m.Address, err = checkText("address", m.Address); err != nil {
		return Member{}, err
	}
	return m, nil
}

// normalizeLoan enforces: returned if and only if a return date is set,
// and the return date does not precede the loan date.
func normalizeLoan(l Loan) (Loan, error) {
	if err := checkID("loanId", l.LoanID); err != nil {
		return Loan{}, err
	}
	if err := checkID("bookId", l.BookID); err != nil {
		return Loan{}, err
	}
	if err := checkID("memberId", l.MemberID); err != nil {
		return Loan{}, err
	}
	if !validStatus(l.Status) {
		return Loan{}, invalidField("status", `must be "on-loan" or "returned"`)
	}
	if l.LoanDate.IsZero() {
		return Loan{}, missingField("loanDate")
	}
	switch {
	case l.Status == StatusOnLoan && l.ReturnDate != nil:
		return Loan{}, invalidField("returnDate", "must be empty while the book is on loan")
	case l.Status == StatusReturned && l.ReturnDate == nil:
		return Loan{}, missingField("returnDate")
	case l.ReturnDate != nil && l.ReturnDate.Before(l.LoanDate):
		return Loan{}, invalidField("returnDate", "must not be before loanDate")
	}
	l.LoanDate = l.LoanDate.UTC()
	if l.ReturnDate != nil {
		t := l.ReturnDate.UTC()
		l.ReturnDate = &t
	}
	return l, nil
}
