// Package jsonfile keeps jobs and the video library in a single JSON document
// on disk. It suits single-host setups without PostgreSQL; every call reads
// the document, applies one change and rewrites it atomically. An advisory
// lock on a sibling ".lock" file serializes the API and worker processes.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

type document struct {
	Jobs        map[string]*models.Job `json:"jobs"`
	Queue       []string               `json:"queue"`
	Videos      []models.Video         `json:"videos"`
	NextVideoID int64                  `json:"next_video_id"`
}

type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

// Open creates the document (and its directory) when missing.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  func() time.Time { return time.Now().UTC() },
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.Wrap(err, "jsonfile.open", "create store directory")
	}
	err := s.locked(s.lock.Lock, func() error {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return s.save(emptyDocument())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// locked runs fn holding mu and the file lock taken by acquire.
func (s *Store) locked(acquire func() error, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := acquire(); err != nil {
		return apperrors.Wrap(err, "jsonfile.lock", "lock store")
	}
	defer s.lock.Unlock()
	return fn()
}

func emptyDocument() *document {
	return &document{Jobs: map[string]*models.Job{}, Queue: []string{}, Videos: []models.Video{}}
}

func (s *Store) load() (*document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyDocument(), nil
		}
		return nil, apperrors.Wrap(err, "jsonfile.load", "read store")
	}
	doc := emptyDocument()
	if len(strings.TrimSpace(string(b))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, apperrors.Wrap(err, "jsonfile.load", "decode store")
	}
	if doc.Jobs == nil {
		doc.Jobs = map[string]*models.Job{}
	}
	return doc, nil
}

func (s *Store) save(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "jsonfile.save", "encode store")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return apperrors.Wrap(err, "jsonfile.save", "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, "jsonfile.save", "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, "jsonfile.save", "close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperrors.Wrap(err, "jsonfile.save", "replace store")
	}
	return nil
}

// view runs fn against a fresh read of the document under a shared lock.
func (s *Store) view(fn func(*document) error) error {
	return s.locked(s.lock.RLock, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

// update runs fn and persists the document when fn succeeds. The exclusive
// lock spans the read and the rename so no other process writes in between.
func (s *Store) update(fn func(*document) error) error {
	return s.locked(s.lock.Lock, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return s.save(doc)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.view(func(*document) error { return nil })
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

// ---- jobs ----

func (s *Store) Create(ctx context.Context, j *models.Job) error {
	return s.update(func(d *document) error {
		if _, ok := d.Jobs[j.ID]; ok {
			return apperrors.Conflict("job already exists").WithField("job_id", j.ID)
		}
		cp := *j
		d.Jobs[j.ID] = &cp
		d.Queue = append(d.Queue, j.ID)
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	var out *models.Job
	err := s.view(func(d *document) error {
		j, ok := d.Jobs[id]
		if !ok {
			return apperrors.NotFound("job", id)
		}
		cp := *j
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) List(ctx context.Context, f models.JobFilter) ([]models.Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	out := []models.Job{}
	err := s.view(func(d *document) error {
		for _, j := range d.Jobs {
			if f.Status == "" || j.Status == f.Status {
				out = append(out, *j)
			}
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *Store) Counts(ctx context.Context) (models.JobCounts, error) {
	counts := models.JobCounts{}
	err := s.view(func(d *document) error {
		for _, j := range d.Jobs {
			counts[j.Status]++
		}
		return nil
	})
	return counts, err
}

// queued walks the queue order and returns jobs still waiting.
func (d *document) queued() []*models.Job {
	var out []*models.Job
	for _, id := range d.Queue {
		if j, ok := d.Jobs[id]; ok && j.Status == models.JobQueued {
			out = append(out, j)
		}
	}
	return out
}

func (s *Store) NextQueued(ctx context.Context) (*models.Job, error) {
	var out *models.Job
	err := s.view(func(d *document) error {
		if q := d.queued(); len(q) > 0 {
			cp := *q[0]
			out = &cp
		}
		return nil
	})
	return out, err
}

func (s *Store) QueuedIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.view(func(d *document) error {
		for _, j := range d.queued() {
			ids = append(ids, j.ID)
		}
		return nil
	})
	return ids, err
}

func (s *Store) QueuePosition(ctx context.Context, id string) (int, error) {
	pos := -1
	err := s.view(func(d *document) error {
		for i, j := range d.queued() {
			if j.ID == id {
				pos = i
				break
			}
		}
		return nil
	})
	return pos, err
}

// transition loads job id and checks it is in want before fn mutates it.
func (s *Store) transition(id string, want models.JobStatus, fn func(d *document, j *models.Job)) error {
	return s.update(func(d *document) error {
		j, ok := d.Jobs[id]
		if !ok {
			return apperrors.NotFound("job", id)
		}
		if j.Status != want {
			return apperrors.Conflict("job is not "+string(want)).
				WithField("job_id", id).
				WithField("status", string(j.Status))
		}
		fn(d, j)
		return nil
	})
}

func (s *Store) Claim(ctx context.Context, id string) (*models.Job, error) {
	var out *models.Job
	err := s.transition(id, models.JobQueued, func(d *document, j *models.Job) {
		now := s.now()
		j.Status = models.JobProcessing
		j.Progress = models.ProgressStarted
		j.Message = models.MessageStarted
		j.StartedAt = &now
		d.dequeue(id)
		cp := *j
		out = &cp
	})
	return out, err
}

func (s *Store) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	return s.transition(id, models.JobProcessing, func(_ *document, j *models.Job) {
		if progress > j.Progress {
			j.Progress = progress
		}
		j.Message = message
	})
}

func (s *Store) Complete(ctx context.Context, id string, result *models.Video) error {
	return s.transition(id, models.JobProcessing, func(_ *document, j *models.Job) {
		now := s.now()
		j.Status = models.JobCompleted
		j.Progress = models.ProgressDone
		j.Message = models.MessageCompleted
		j.CompletedAt = &now
		j.Result = result
	})
}

func (s *Store) Fail(ctx context.Context, id string, errMsg string) error {
	errMsg = models.TruncateError(errMsg)
	return s.transition(id, models.JobProcessing, func(_ *document, j *models.Job) {
		now := s.now()
		j.Status = models.JobFailed
		j.Message = models.FailureMessage(errMsg)
		j.Error = errMsg
		j.CompletedAt = &now
	})
}

// Requeue puts a processing job back at the head of the queue.
func (s *Store) Requeue(ctx context.Context, id string) error {
	return s.transition(id, models.JobProcessing, func(d *document, j *models.Job) {
		j.Status = models.JobQueued
		j.Progress = 0
		j.Message = models.MessageQueued
		j.StartedAt = nil
		d.dequeue(id)
		d.Queue = append([]string{id}, d.Queue...)
	})
}

func (s *Store) StaleProcessing(ctx context.Context) ([]models.Job, error) {
	out := []models.Job{}
	err := s.view(func(d *document) error {
		for _, j := range d.Jobs {
			if j.Status == models.JobProcessing {
				out = append(out, *j)
			}
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, err
}

func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := s.update(func(d *document) error {
		for id, j := range d.Jobs {
			if j.Status.Finished() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
				delete(d.Jobs, id)
				d.dequeue(id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (d *document) dequeue(id string) {
	out := d.Queue[:0]
	for _, qid := range d.Queue {
		if qid != id {
			out = append(out, qid)
		}
	}
	d.Queue = out
}

// ---- videos ----

func (s *Store) CreateVideo(ctx context.Context, v *models.Video) error {
	return s.update(func(d *document) error {
		d.NextVideoID++
		v.ID = d.NextVideoID
		if v.CreatedAt.IsZero() {
			v.CreatedAt = s.now()
		}
		if v.Status == "" {
			v.Status = models.VideoStatusCompleted
		}
		d.Videos = append(d.Videos, *v)
		return nil
	})
}

func (s *Store) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	var out *models.Video
	err := s.view(func(d *document) error {
		for i := range d.Videos {
			if d.Videos[i].ID == id {
				v := d.Videos[i]
				out = &v
				return nil
			}
		}
		return apperrors.NotFound("video", strconv.FormatInt(id, 10))
	})
	return out, err
}

// newestFirst returns a copy of the library ordered by creation time, newest first.
func (d *document) newestFirst() []models.Video {
	out := append([]models.Video(nil), d.Videos...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func page(vs []models.Video, offset, limit int) []models.Video {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(vs) {
		return []models.Video{}
	}
	vs = vs[offset:]
	if limit > 0 && len(vs) > limit {
		vs = vs[:limit]
	}
	return vs
}

func (s *Store) ListVideos(ctx context.Context, f models.VideoFilter) ([]models.Video, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []models.Video
	err := s.view(func(d *document) error {
		out = page(d.newestFirst(), f.Offset, limit)
		return nil
	})
	return out, err
}

func (s *Store) SearchVideos(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 100
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Video{}
	err := s.view(func(d *document) error {
		for _, v := range d.newestFirst() {
			if strings.Contains(strings.ToLower(v.Title), q) || strings.Contains(strings.ToLower(v.Category), q) {
				out = append(out, v)
			}
		}
		return nil
	})
	return page(out, 0, limit), err
}

func (s *Store) CountVideos(ctx context.Context) (int, error) {
	n := 0
	err := s.view(func(d *document) error {
		n = len(d.Videos)
		return nil
	})
	return n, err
}

func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	return s.update(func(d *document) error {
		for i := range d.Videos {
			if d.Videos[i].ID == id {
				d.Videos = append(d.Videos[:i], d.Videos[i+1:]...)
				return nil
			}
		}
		return apperrors.NotFound("video", strconv.FormatInt(id, 10))
	})
}
