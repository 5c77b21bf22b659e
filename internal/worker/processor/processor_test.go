package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/adapters/jobstore/jsonfile"
	"clipforge/internal/adapters/storage/localfs"
	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	"clipforge/internal/pipeline"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

func validRequest() v1.VideoRequest {
	return v1.VideoRequest{
		Title:    "Ancient Egypt: Rise & Fall",
		Category: "History",
		Format:   "9:16",
		Style:    "Anime",
		Voice:    "Zara",
		Script:   "The pyramids stand tall under the desert sun.",
	}
}

func openStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	s, err := jsonfile.Open(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func createJob(t *testing.T, s *jsonfile.Store, id string, req v1.VideoRequest) {
	t.Helper()
	if err := s.Create(context.Background(), models.NewJob(id, req, time.Now())); err != nil {
		t.Fatal(err)
	}
}

type fakeRunner struct {
	err      error
	cancel   context.CancelFunc
	workDir  string
	reported []int
}

func (f *fakeRunner) Run(ctx context.Context, st *pipeline.State, rep pipeline.Reporter) error {
	f.workDir = st.WorkDir
	for _, p := range []int{15, 30} {
		if err := rep.Report(ctx, p, "step"); err != nil {
			return err
		}
		f.reported = append(f.reported, p)
	}
	if f.cancel != nil {
		f.cancel()
		return apperrors.Stage("images", ctx.Err())
	}
	if f.err != nil {
		return apperrors.Stage("narration", f.err)
	}
	st.Result = &models.Video{ID: 1, Title: st.Request.Title, Path: "videos/x.mp4"}
	return nil
}

func TestProcessJobSuccess(t *testing.T) {
	store := openStore(t)
	createJob(t, store, "job-1", validRequest())
	runner := &fakeRunner{}
	work := t.TempDir()

	p := New(Deps{Jobs: store, Pipeline: runner, WorkDir: work, MaxScriptLength: 1500, Log: logger.Discard()})
	if err := p.ProcessJob(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != models.JobCompleted || job.Progress != 100 || job.Result == nil || job.Result.ID != 1 {
		t.Errorf("unexpected job %+v", job)
	}
	if runner.workDir != filepath.Join(work, "job-1") {
		t.Errorf("unexpected work dir %s", runner.workDir)
	}
	if _, err := os.Stat(runner.workDir); !os.IsNotExist(err) {
		t.Error("work dir should be removed")
	}
}

// flakyCompleteStore fails the first failures Complete calls.
type flakyCompleteStore struct {
	*jsonfile.Store
	failures int
	calls    int
	ctxErr   error
}

func (s *flakyCompleteStore) Complete(ctx context.Context, id string, v *models.Video) error {
	s.calls++
	s.ctxErr = ctx.Err()
	if s.calls <= s.failures {
		return errors.New("connection reset by peer")
	}
	return s.Store.Complete(ctx, id, v)
}

func TestProcessJobRetriesCompletion(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		wantStatus models.JobStatus
		wantCalls  int
	}{
		{"transient failure", 2, models.JobCompleted, 3},
		{"persistent failure", 5, models.JobProcessing, completeAttempts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyCompleteStore{Store: openStore(t), failures: tt.failures}
			createJob(t, store.Store, "job-1", validRequest())

			p := New(Deps{Jobs: store, Pipeline: &fakeRunner{}, WorkDir: t.TempDir(), Log: logger.Discard()})
			p.completeDelay = time.Millisecond
			err := p.ProcessJob(context.Background(), "job-1")
			if (err == nil) != (tt.wantStatus == models.JobCompleted) {
				t.Errorf("unexpected error %v", err)
			}
			job, _ := store.Get(context.Background(), "job-1")
			if job.Status != tt.wantStatus || store.calls != tt.wantCalls {
				t.Errorf("status %s after %d calls, want %s after %d", job.Status, store.calls, tt.wantStatus, tt.wantCalls)
			}
		})
	}
}

// cancelAfterRun cancels the job context once the stages are done, as a
// shutdown landing between the last stage and the completion write would.
type cancelAfterRun struct {
	fakeRunner
	cancel context.CancelFunc
}

func (r *cancelAfterRun) Run(ctx context.Context, st *pipeline.State, rep pipeline.Reporter) error {
	err := r.fakeRunner.Run(ctx, st, rep)
	r.cancel()
	return err
}

func TestProcessJobCompletesAfterCancel(t *testing.T) {
	store := &flakyCompleteStore{Store: openStore(t)}
	createJob(t, store.Store, "job-1", validRequest())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(Deps{Jobs: store, Pipeline: &cancelAfterRun{cancel: cancel}, WorkDir: t.TempDir(), Log: logger.Discard()})
	if err := p.ProcessJob(ctx, "job-1"); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if store.ctxErr != nil {
		t.Errorf("completion used a canceled context: %v", store.ctxErr)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != models.JobCompleted {
		t.Errorf("expected completed, got %s", job.Status)
	}
}

func TestProcessJobFailure(t *testing.T) {
	store := openStore(t)
	createJob(t, store, "job-1", validRequest())
	runner := &fakeRunner{err: apperrors.Upstream("elevenlabs", errors.New("quota exceeded"))}
	work := t.TempDir()

	p := New(Deps{Jobs: store, Pipeline: runner, WorkDir: work, KeepWorkFiles: true, Log: logger.Discard()})
	if err := p.ProcessJob(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != models.JobFailed || !strings.Contains(job.Error, "quota exceeded") {
		t.Errorf("unexpected job %+v", job)
	}
	if !strings.HasPrefix(job.Message, "Error: ") {
		t.Errorf("unexpected message %q", job.Message)
	}
	if job.Progress != 30 {
		t.Errorf("progress should stay at the last reported stage, got %d", job.Progress)
	}
	if _, err := os.Stat(runner.workDir); err != nil {
		t.Error("work dir should be kept when KeepWorkFiles is set")
	}
}

func TestProcessJobInvalidPayload(t *testing.T) {
	store := openStore(t)
	req := validRequest()
	req.Script = strings.Repeat("a", 20)
	createJob(t, store, "job-1", req)

	runner := &fakeRunner{}
	p := New(Deps{Jobs: store, Pipeline: runner, WorkDir: t.TempDir(), MaxScriptLength: 10, Log: logger.Discard()})
	err := p.ProcessJob(context.Background(), "job-1")
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if runner.reported != nil {
		t.Error("pipeline should not run")
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != models.JobFailed || !strings.Contains(job.Error, "Script too long") {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestProcessJobSkipsUnclaimable(t *testing.T) {
	store := openStore(t)
	createJob(t, store, "job-1", validRequest())
	if _, err := store.Claim(context.Background(), "job-1"); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	p := New(Deps{Jobs: store, Pipeline: runner, WorkDir: t.TempDir(), Log: logger.Discard()})
	for _, id := range []string{"job-1", "missing"} {
		if err := p.ProcessJob(context.Background(), id); err != nil {
			t.Errorf("%s: expected skip, got %v", id, err)
		}
	}
	if runner.reported != nil {
		t.Error("pipeline should not run for unclaimable jobs")
	}
}

func TestProcessJobInterruptedIsRequeued(t *testing.T) {
	store := openStore(t)
	createJob(t, store, "job-1", validRequest())

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{cancel: cancel}
	p := New(Deps{Jobs: store, Pipeline: runner, WorkDir: t.TempDir(), Log: logger.Discard()})
	if err := p.ProcessJob(ctx, "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != models.JobQueued {
		t.Errorf("interrupted job should be queued again, got %s", job.Status)
	}
	ids, _ := store.QueuedIDs(context.Background())
	if len(ids) != 1 || ids[0] != "job-1" {
		t.Errorf("unexpected queue %v", ids)
	}
}

type fakeThumbs struct{ err error }

func (f fakeThumbs) Thumbnail(_ context.Context, _ string, _ float64, dir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(dir, "thumbnail.jpg")
	return p, os.WriteFile(p, []byte("jpg"), 0o644)
}

func TestOutputHandlerPersist(t *testing.T) {
	store := openStore(t)
	root := t.TempDir()
	sp := localfs.New(root)
	work := t.TempDir()
	video := filepath.Join(work, "final.mp4")
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	oh := NewOutputHandler(store, sp, fakeThumbs{}, logger.Discard())
	st := &pipeline.State{JobID: "3f2a9c1e-aaaa-bbbb", Request: validRequest(), WorkDir: work, VideoPath: video, AudioDuration: 42.5}

	v, err := oh.Persist(context.Background(), st)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if v.ID == 0 || v.Path != "videos/ancient-egypt-rise-fall-3f2a9c1e.mp4" || v.ThumbnailPath != "thumbnails/ancient-egypt-rise-fall-3f2a9c1e.jpg" {
		t.Errorf("unexpected video %+v", v)
	}
	if v.Duration != 42.5 || v.Status != models.VideoStatusCompleted || v.StorageProvider != "localfs" {
		t.Errorf("unexpected video %+v", v)
	}
	if b, err := os.ReadFile(filepath.Join(root, v.Path)); err != nil || string(b) != "mp4" {
		t.Errorf("video not uploaded: %v", err)
	}
	if n, _ := store.CountVideos(context.Background()); n != 1 {
		t.Errorf("expected one library record, got %d", n)
	}
}

func TestOutputHandlerWithoutThumbnail(t *testing.T) {
	store := openStore(t)
	work := t.TempDir()
	video := filepath.Join(work, "final.mp4")
	_ = os.WriteFile(video, []byte("mp4"), 0o644)

	oh := NewOutputHandler(store, localfs.New(t.TempDir()), fakeThumbs{err: errors.New("ffmpeg exited 1")}, logger.Discard())
	v, err := oh.Persist(context.Background(), &pipeline.State{JobID: "j", Request: validRequest(), WorkDir: work, VideoPath: video})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if v.ThumbnailPath != "" {
		t.Errorf("expected no thumbnail, got %s", v.ThumbnailPath)
	}
}

func TestOutputHandlerMissingVideo(t *testing.T) {
	oh := NewOutputHandler(openStore(t), localfs.New(t.TempDir()), nil, logger.Discard())
	if _, err := oh.Persist(context.Background(), &pipeline.State{JobID: "j", Request: validRequest()}); err == nil {
		t.Error("expected error without a rendered video")
	}
	st := &pipeline.State{JobID: "j", Request: validRequest(), VideoPath: filepath.Join(t.TempDir(), "nope.mp4")}
	if _, err := oh.Persist(context.Background(), st); err == nil {
		t.Error("expected error for a missing file")
	}
}
