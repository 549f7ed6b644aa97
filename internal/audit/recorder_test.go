package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarati/amarati-core/internal/auth"
)

type memRepo struct {
	mu   sync.Mutex
	logs []AuditLog
	err  error
}

func (m *memRepo) Create(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memRepo) List(_ context.Context, _ Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ListResult{Logs: append([]AuditLog(nil), m.logs...), Total: len(m.logs)}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestRecorder_RecordEvent(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go rec.Run(ctx)

	var recorder auth.EventRecorder = rec
	recorder.RecordEvent(ctx, auth.Event{
		Action:  auth.EventLogin,
		UserID:  "usr-1",
		Details: map[string]any{"email": "a@example.com"},
	})

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-rec.Done()

	got := repo.logs[0]
	assert.Equal(t, auth.EventLogin, got.Action)
	assert.Equal(t, "user", got.EntityType)
	assert.Equal(t, "usr-1", got.UserID)
	assert.Equal(t, SourceAuth, got.Source)
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil, 16)

	for range 10 {
		rec.Record(&AuditLog{Action: "property.create", EntityType: "property"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 10, repo.count())
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil, 2)

	for range 5 {
		rec.Record(&AuditLog{Action: "login"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 2, repo.count())
}

func TestRecorder_WriteErrorDoesNotStop(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, nil, 4)
	rec.Record(&AuditLog{Action: "login"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	select {
	case <-rec.Done():
	default:
		t.Fatal("Done() not closed after Run returned")
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Record(&AuditLog{Action: "login"})
}
