package publisher

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/library-core/internal/library"
)

// borrowedAction is the action carried by a Borrowing notice.
const borrowedAction = "borrowed"

// Event describes one change. Data is the record after the change, or the
// removed record for deletes.
type Event struct {
	URL    string    `json:"url"`
	Action string    `json:"action"`
	Data   any       `json:"data,omitempty"`
	Fields []string  `json:"fields,omitempty"`
	At     time.Time `json:"at"`
}

// Borrowing announces a new loan.
type Borrowing struct {
	LoanID   int    `json:"loanId"`
	BookID   int    `json:"bookId"`
	MemberID int    `json:"memberId"`
	Action   string `json:"action"`
}

// recordURL returns the API location of a record, or of the collection when id is 0.
func recordURL(baseURL, kind string, id int) string {
	base := strings.TrimRight(baseURL, "/") + "/api/" + kind
	if id <= 0 {
		return base
	}
	return fmt.Sprintf("%s/%d", base, id)
}

// newEvent converts a store change to its bus message.
func newEvent(baseURL string, c library.Change) Event {
	url := recordURL(baseURL, c.Kind, c.ID)
	if c.Kind == library.StoreKind {
		url = strings.TrimRight(baseURL, "/") + "/api/export"
	}
	return Event{
		URL:    url,
		Action: string(c.Action),
		Data:   c.Record,
		Fields: c.Fields,
		At:     c.At.UTC(),
	}
}

// borrowingFor returns the notice for a created loan. ok is false for any other change.
func borrowingFor(c library.Change) (Borrowing, bool) {
	if c.Action != library.ActionCreated {
		return Borrowing{}, false
	}
	loan, ok := c.Record.(library.Loan)
	if !ok {
		return Borrowing{}, false
	}
	return Borrowing{
		LoanID:   loan.LoanID,
		BookID:   loan.BookID,
		MemberID: loan.MemberID,
		Action:   borrowedAction,
	}, true
}
