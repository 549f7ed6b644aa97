package audit

import (
	"context"
	"sync"

	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/logging"
)

// DefaultBufferSize is the capacity of the Recorder queue. Entries beyond
// it are dropped so requests never wait on the audit table.
const DefaultBufferSize = 256

// Recorder queues audit entries and writes them serially from a single
// goroutine. It implements auth.EventRecorder.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	ch     chan *AuditLog
	done   chan struct{}
	once   sync.Once
}

// NewRecorder creates a Recorder writing to repo. Call Run to start it.
func NewRecorder(repo Repository, logger *logging.Logger, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, size),
		done:   make(chan struct{}),
	}
}

// Record enqueues entry without blocking. A full queue drops the entry.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil {
		return
	}
	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// RecordEvent implements auth.EventRecorder.
func (r *Recorder) RecordEvent(_ context.Context, event auth.Event) {
	r.Record(&AuditLog{
		Action:     event.Action,
		EntityType: "user",
		EntityID:   event.UserID,
		UserID:     event.UserID,
		Source:     SourceAuth,
		Details:    event.Details,
	})
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })
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

// Done is closed once Run has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) write(entry *AuditLog) {
	// Detached from the request so a finished request does not cancel the write.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
