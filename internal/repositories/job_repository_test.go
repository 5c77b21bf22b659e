package repositories

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

type call struct {
	sql  string
	args []any
}

// fakeRow scans vals into the destinations by assignment; a nil value leaves
// the destination untouched.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) || r.vals[i] == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

// fakeDB answers QueryRow from rows in order and Exec with execTag/execErr.
type fakeDB struct {
	calls   []call
	rows    []fakeRow
	execTag string
	execErr error
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, call{sql, args})
	return pgconn.NewCommandTag(db.execTag), db.execErr
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, call{sql, args})
	return nil, &pgconn.PgError{Code: pgUndefinedTable}
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, call{sql, args})
	if len(db.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	r := db.rows[0]
	db.rows = db.rows[1:]
	return r
}

func squash(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func jobRow(t *testing.T, id string, status models.JobStatus) fakeRow {
	t.Helper()
	data, err := json.Marshal(v1.VideoRequest{Title: "Ancient Egypt", Format: "9:16"})
	if err != nil {
		t.Fatal(err)
	}
	started := time.Now()
	return fakeRow{vals: []any{
		id, string(status), models.ProgressStarted, models.MessageStarted, data, nil,
		"", started.Add(-time.Minute), &started, nil,
	}}
}

func TestClaimIsConditionalOnQueued(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{jobRow(t, "job-1", models.JobProcessing)}}
	j, err := NewJobRepository(db).Claim(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != models.JobProcessing || j.VideoData.Title != "Ancient Egypt" || j.StartedAt == nil {
		t.Errorf("unexpected job %+v", j)
	}

	sql := squash(db.calls[0].sql)
	for _, want := range []string{
		"UPDATE jobs SET status='processing'",
		"WHERE id=$1 AND status='queued'",
		"RETURNING " + jobColumns,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("claim SQL missing %q:\n%s", want, sql)
		}
	}
	if db.calls[0].args[0] != "job-1" {
		t.Errorf("unexpected args %v", db.calls[0].args)
	}
}

func TestClaimExplainsMiss(t *testing.T) {
	tests := []struct {
		name string
		rows []fakeRow
		want func(error) bool
	}{
		{"already processing", []fakeRow{{err: pgx.ErrNoRows}, {vals: []any{"processing"}}}, apperrors.IsConflict},
		{"unknown job", nil, apperrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{rows: tt.rows}
			_, err := NewJobRepository(db).Claim(context.Background(), "job-1")
			if !tt.want(err) {
				t.Errorf("unexpected error %v", err)
			}
			if len(db.calls) != 2 || !strings.Contains(db.calls[1].sql, "SELECT status FROM jobs WHERE id=$1") {
				t.Errorf("expected a status lookup after the miss, got %+v", db.calls)
			}
		})
	}
}

func TestQueuePositionOrdersByCreatedAtThenID(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{vals: []any{2}}, {vals: []any{true}}}}
	pos, err := NewJobRepository(db).QueuePosition(context.Background(), "job-3")
	if err != nil {
		t.Fatal(err)
	}
	if pos != 2 {
		t.Errorf("expected position 2, got %d", pos)
	}
	sql := squash(db.calls[0].sql)
	for _, want := range []string{
		"j.id=$1 AND j.status='queued' AND q.status='queued'",
		"(q.created_at, q.id) < (j.created_at, j.id)",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("position SQL missing %q:\n%s", want, sql)
		}
	}

	db = &fakeDB{rows: []fakeRow{{vals: []any{0}}, {vals: []any{false}}}}
	if pos, _ := NewJobRepository(db).QueuePosition(context.Background(), "done"); pos != -1 {
		t.Errorf("expected -1 for a job not queued, got %d", pos)
	}
}

func TestUpdateProgressOnlyTouchesProcessing(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 0", rows: []fakeRow{{vals: []any{"completed"}}}}
	err := NewJobRepository(db).UpdateProgress(context.Background(), "job-1", 40, "Generating images")
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if sql := squash(db.calls[0].sql); !strings.Contains(sql, "GREATEST(progress, $2)") || !strings.Contains(sql, "status='processing'") {
		t.Errorf("unexpected SQL %s", sql)
	}
}

func TestDatabaseErrorsAreClassified(t *testing.T) {
	repo := NewJobRepository(&fakeDB{execErr: &pgconn.PgError{Code: pgCheckViolation}})
	err := repo.Create(context.Background(), models.NewJob("job-1", v1.VideoRequest{}, time.Now()))
	if !apperrors.IsValidation(err) {
		t.Errorf("check violation should be a validation error, got %v", err)
	}

	repo = NewJobRepository(&fakeDB{execErr: &pgconn.PgError{Code: pgUniqueViolation}})
	err = repo.Create(context.Background(), models.NewJob("job-1", v1.VideoRequest{}, time.Now()))
	if !apperrors.IsConflict(err) {
		t.Errorf("duplicate id should conflict, got %v", err)
	}

	_, err = NewJobRepository(&fakeDB{}).List(context.Background(), models.JobFilter{})
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("missing table should be unavailable, got %v", err)
	}
}
