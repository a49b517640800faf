package audit

import (
	"context"
	"time"
)

// defaultQueueSize is the buffer size of the recorder queue.
const defaultQueueSize = 256

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues audit entries and writes them with a single goroutine.
type Recorder struct {
	repo   Repository
	ch     chan *AuditLog
	logger Logger
}

// NewRecorder creates a recorder writing to repo. A nil logger discards messages.
func NewRecorder(repo Repository, queueSize int, logger Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		ch:     make(chan *AuditLog, queueSize),
		logger: logger,
	}
}

// Repository returns the underlying repository.
func (r *Recorder) Repository() Repository {
	return r.repo
}

// Record enqueues an entry. If the queue is full the entry is dropped and a
// warning is logged. Record on a nil Recorder does nothing.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil || entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_kind", entry.EntityKind,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// The request that produced the entry may be gone already.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_kind", entry.EntityKind,
			"error", err,
		)
	}
}

// PurgeOlderThan removes entries older than the given number of days.
// A non-positive retention keeps everything.
func (r *Recorder) PurgeOlderThan(ctx context.Context, days int, now time.Time) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	return r.repo.Purge(ctx, now.AddDate(0, 0, -days))
}
