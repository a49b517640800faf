package library

import "time"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

// Loan states.
const (
	StatusOnLoan   LoanStatus = "on-loan"
	StatusReturned LoanStatus = "returned"
)

// AllLoanStatuses returns every valid loan status.
func AllLoanStatuses() []LoanStatus {
	return []LoanStatus{StatusOnLoan, StatusReturned}
}

// Book is a title held by the library.
type Book struct {
	BookID    int    `json:"bookId" jsonschema:"minimum=1"`
	Title     string `json:"title" jsonschema:"minLength=1,maxLength=256"`
	Author    string `json:"author" jsonschema:"minLength=1,maxLength=256"`
	Available bool   `json:"available"`
}

// Member is a registered library user.
type Member struct {
	MemberID  int    `json:"memberId" jsonschema:"minimum=1"`
	FirstName string `json:"firstName" jsonschema:"minLength=1,maxLength=256"`
	LastName  string `json:"lastName" jsonschema:"minLength=1,maxLength=256"`
	Address   string `json:"address" jsonschema:"minLength=1,maxLength=256"`
}

// Loan records a book lent to a member.
type Loan struct {
	LoanID     int        `json:"loanId" jsonschema:"minimum=1"`
	BookID     int        `json:"bookId" jsonschema:"minimum=1"`
	MemberID   int        `json:"memberId" jsonschema:"minimum=1"`
	Status     LoanStatus `json:"status" jsonschema:"enum=on-loan,enum=returned"`
	LoanDate   time.Time  `json:"loanDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// Clone returns a copy that shares no memory with l.
func (l Loan) Clone() Loan {
	if l.ReturnDate != nil {
		t := *l.ReturnDate
		l.ReturnDate = &t
	}
	return l
}

// Snapshot is the full content of the store, as written to the backing document.
type Snapshot struct {
	Books   []Book   `json:"books"`
	Members []Member `json:"members"`
	Loans   []Loan   `json:"loans"`
}

// Stats summarises store contents and activity.
type Stats struct {
	Books     int   `json:"books"`
	Members   int   `json:"members"`
	Loans     int   `json:"loans"`
	OnLoan    int   `json:"on_loan"`
	Creates   int64 `json:"creates"`
	Updates   int64 `json:"updates"`
	Deletes   int64 `json:"deletes"`
	Rejected  int64 `json:"rejected"`
	SaveFails int64 `json:"save_failures"`
}
