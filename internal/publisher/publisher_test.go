package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/library-core/internal/library"
)

type message struct {
	topic   string
	payload []byte
	qos     byte
}

// fakeBus records published messages.
type fakeBus struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (b *fakeBus) Publish(topic string, payload []byte, qos byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, message{topic: topic, payload: payload, qos: qos})
	return nil
}

func (b *fakeBus) messages() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.msgs...)
}

func testOptions() Options {
	return Options{
		Topics:  mqtt.NewTopics("library"),
		QoS:     1,
		BaseURL: "http://localhost:8080",
	}
}

// drain runs the publisher over everything already queued.
func drain(p *Publisher) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
}

func TestPublishChange(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, testOptions())
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	p.Notify(library.Change{
		Kind:   "book",
		Action: library.ActionUpdated,
		ID:     12,
		Record: library.Book{BookID: 12, Title: "Faust", Author: "Goethe", Available: true},
		Fields: []string{"title"},
		At:     at,
	})
	drain(p)

	msgs := bus.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "library/book/updated" || msgs[0].qos != 1 {
		t.Errorf("topic=%q qos=%d", msgs[0].topic, msgs[0].qos)
	}

	var got struct {
		URL    string         `json:"url"`
		Action string         `json:"action"`
		Data   map[string]any `json:"data"`
		Fields []string       `json:"fields"`
	}
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.URL != "http://localhost:8080/api/book/12" || got.Action != "updated" {
		t.Errorf("event = %+v", got)
	}
	if got.Data["title"] != "Faust" || len(got.Fields) != 1 {
		t.Errorf("event data = %+v", got)
	}
}

func TestLoanCreatedPublishesBorrowing(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, testOptions())

	p.Notify(library.Change{
		Kind:   "loan",
		Action: library.ActionCreated,
		ID:     3,
		Record: library.Loan{LoanID: 3, BookID: 7, MemberID: 123456, Status: library.StatusOnLoan},
	})
	p.Notify(library.Change{
		Kind:   "loan",
		Action: library.ActionDeleted,
		ID:     3,
		Record: library.Loan{LoanID: 3, BookID: 7, MemberID: 123456},
	})
	drain(p)

	msgs := bus.messages()
	topics := make([]string, len(msgs))
	for i, m := range msgs {
		topics[i] = m.topic
	}
	want := []string{"library/loan/created", "library/borrow", "library/loan/deleted"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("topics = %v, want %v", topics, want)
		}
	}

	var b Borrowing
	if err := json.Unmarshal(msgs[1].payload, &b); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if b != (Borrowing{LoanID: 3, BookID: 7, MemberID: 123456, Action: "borrowed"}) {
		t.Errorf("borrowing = %+v", b)
	}
}

func TestImportEventPointsAtExport(t *testing.T) {
	event := newEvent("http://localhost:8080/", library.Change{Kind: library.StoreKind, Action: library.ActionImported})

	if event.URL != "http://localhost:8080/api/export" {
		t.Errorf("URL = %q", event.URL)
	}
}

func TestNotifyDropsWhenFull(t *testing.T) {
	bus := &fakeBus{}
	opts := testOptions()
	opts.Queue = 2
	p := New(bus, opts)

	for i := 1; i <= 5; i++ {
		p.Notify(library.Change{Kind: "member", Action: library.ActionCreated, ID: i})
	}
	drain(p)

	stats := p.Stats()
	if stats.Dropped != 3 || stats.Published != 2 {
		t.Errorf("stats = %+v, want 3 dropped and 2 published", stats)
	}
}

func TestPublishFailureIsCounted(t *testing.T) {
	bus := &fakeBus{err: errors.New("broker down")}
	p := New(bus, testOptions())

	p.Notify(library.Change{Kind: "book", Action: library.ActionDeleted, ID: 1})
	drain(p)

	if stats := p.Stats(); stats.Failed != 1 || stats.Published != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAnnounceLatest(t *testing.T) {
	bus := &fakeBus{}
	opts := testOptions()
	opts.Interval = 10 * time.Millisecond
	p := New(bus, opts)

	// Nothing is announced before the first change.
	p.announce()
	if n := len(bus.messages()); n != 0 {
		t.Fatalf("announced %d messages before any change", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Notify(library.Change{Kind: "member", Action: library.ActionCreated, ID: 5, Record: library.Member{MemberID: 5}})

	deadline := time.After(2 * time.Second)
	for {
		announced := 0
		for _, m := range bus.messages() {
			if m.topic == "library/announce" {
				announced++
			}
		}
		if announced >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected repeated announcements, got %d", announced)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRecordURL(t *testing.T) {
	tests := []struct {
		base string
		kind string
		id   int
		want string
	}{
		{"http://localhost:8080", "book", 1, "http://localhost:8080/api/book/1"},
		{"http://localhost:8080/", "loan", 0, "http://localhost:8080/api/loan"},
	}

	for _, tt := range tests {
		if got := recordURL(tt.base, tt.kind, tt.id); got != tt.want {
			t.Errorf("recordURL(%q, %q, %d) = %q, want %q", tt.base, tt.kind, tt.id, got, tt.want)
		}
	}
}
