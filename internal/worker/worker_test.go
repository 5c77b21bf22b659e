package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clipforge/internal/adapters/jobstore/jsonfile"
	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

type memQueue struct {
	mu      sync.Mutex
	ids     []string
	popErrs int
	pushed  []string
}

func (q *memQueue) Push(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	q.pushed = append(q.pushed, id)
	return nil
}

func (q *memQueue) Pop(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.popErrs > 0 {
		q.popErrs--
		return "", errors.New("connection reset")
	}
	if len(q.ids) == 0 {
		return "", nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *memQueue) Ping(context.Context) error { return nil }
func (q *memQueue) Close() error               { return nil }

type recordingProcessor struct {
	mu     sync.Mutex
	seen   []string
	jobIDs []string
	stopAt int
	cancel context.CancelFunc
}

func (p *recordingProcessor) ProcessJob(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, id)
	if v, ok := ctx.Value(logger.JobIDKey).(string); ok {
		p.jobIDs = append(p.jobIDs, v)
	}
	if len(p.seen) == p.stopAt {
		p.cancel()
	}
	if id == "bad" {
		return errors.New("boom")
	}
	return nil
}

func openStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	s, err := jsonfile.Open(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func req() v1.VideoRequest {
	return v1.VideoRequest{Title: "t", Category: "c", Format: "1:1", Style: "Anime", Voice: "Zara", Script: "s"}
}

func TestRunProcessesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &memQueue{ids: []string{"a", "bad", "c"}, popErrs: 1}
	proc := &recordingProcessor{stopAt: 3, cancel: cancel}

	err := Run(ctx, Deps{
		Jobs:       openStore(t),
		Queue:      q,
		Processor:  proc,
		Log:        logger.Discard(),
		RetryDelay: time.Millisecond,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	want := []string{"a", "bad", "c"}
	for i, id := range want {
		if proc.seen[i] != id || proc.jobIDs[i] != id {
			t.Errorf("job %d: seen %s ctx %s, want %s", i, proc.seen[i], proc.jobIDs[i], id)
		}
	}
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Now()
	for _, id := range []string{"stale", "waiting", "done"} {
		if err := store.Create(ctx, models.NewJob(id, req(), now)); err != nil {
			t.Fatal(err)
		}
		now = now.Add(time.Second)
	}
	if _, err := store.Claim(ctx, "stale"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Claim(ctx, "done"); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete(ctx, "done", &models.Video{ID: 1}); err != nil {
		t.Fatal(err)
	}

	q := &memQueue{}
	n, err := Recover(ctx, store, q, logger.Discard())
	if err != nil || n != 1 {
		t.Fatalf("Recover: %d %v", n, err)
	}
	job, _ := store.Get(ctx, "stale")
	if job.Status != models.JobQueued {
		t.Errorf("stale job should be queued, got %s", job.Status)
	}
	if len(q.pushed) != 2 || q.pushed[0] != "stale" || q.pushed[1] != "waiting" {
		t.Errorf("unexpected pushes %v", q.pushed)
	}
}

func TestCleanupOldJobs(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	if err := store.Create(ctx, models.NewJob("old", req(), time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Claim(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	if err := store.Fail(ctx, "old", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, models.NewJob("queued", req(), time.Now())); err != nil {
		t.Fatal(err)
	}

	n, err := CleanupOldJobs(ctx, store, 7, time.Now())
	if err != nil || n != 0 {
		t.Fatalf("fresh jobs should survive: %d %v", n, err)
	}
	n, err = CleanupOldJobs(ctx, store, 7, time.Now().Add(8*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one deleted job, got %d %v", n, err)
	}
	if _, err := store.Get(ctx, "queued"); err != nil {
		t.Errorf("unfinished jobs must never be deleted: %v", err)
	}
	if _, err := CleanupOldJobs(ctx, store, 0, time.Now()); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNewCleanupScheduler(t *testing.T) {
	c, err := NewCleanupScheduler(openStore(t), 7, "", logger.Discard())
	if err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("expected one entry, got %d", len(c.Entries()))
	}
	if _, err := NewCleanupScheduler(openStore(t), 7, "every tuesday", logger.Discard()); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
