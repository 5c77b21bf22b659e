package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

type JobRepository struct {
	db DBTX
}

func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, status, progress, message, video_data, result, COALESCE(error, ''), created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j          models.Job
		status     string
		videoData  []byte
		resultJSON []byte
	)
	if err := row.Scan(&j.ID, &status, &j.Progress, &j.Message, &videoData, &resultJSON,
		&j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	if err := json.Unmarshal(videoData, &j.VideoData); err != nil {
		return nil, apperrors.Wrap(err, "jobs.scan", "corrupt video_data")
	}
	if len(resultJSON) > 0 {
		var v models.Video
		if err := json.Unmarshal(resultJSON, &v); err != nil {
			return nil, apperrors.Wrap(err, "jobs.scan", "corrupt result")
		}
		j.Result = &v
	}
	return &j, nil
}

func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	videoData, err := json.Marshal(j.VideoData)
	if err != nil {
		return apperrors.Wrap(err, "jobs.create", "encode video_data")
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO jobs (id, status, progress, message, video_data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, j.ID, string(j.Status), j.Progress, j.Message, videoData, j.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperrors.Conflict("job already exists").WithField("job_id", j.ID)
		}
		return wrapPG(err, "jobs.create", "insert job")
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound("job", id)
		}
		return nil, wrapPG(err, "jobs.get", "select job")
	}
	return j, nil
}

func (r *JobRepository) List(ctx context.Context, f models.JobFilter) ([]models.Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if f.Status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT `+jobColumns+` FROM jobs
			WHERE status=$1
			ORDER BY created_at DESC
			LIMIT $2`, string(f.Status), limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+jobColumns+` FROM jobs
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, wrapPG(err, "jobs.list", "select jobs")
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]models.Job, error) {
	defer rows.Close()
	out := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, wrapPG(err, "jobs.scan", "scan job")
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPG(err, "jobs.scan", "iterate jobs")
	}
	return out, nil
}

func (r *JobRepository) Counts(ctx context.Context) (models.JobCounts, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, wrapPG(err, "jobs.counts", "count jobs")
	}
	defer rows.Close()

	counts := models.JobCounts{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, wrapPG(err, "jobs.counts", "scan count")
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *JobRepository) NextQueued(ctx context.Context) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status='queued'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapPG(err, "jobs.next_queued", "select queued job")
	}
	return j, nil
}

func (r *JobRepository) QueuedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM jobs WHERE status='queued' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, wrapPG(err, "jobs.queued_ids", "select queued ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapPG(err, "jobs.queued_ids", "scan queued ids")
	}
	return ids, nil
}

func (r *JobRepository) QueuePosition(ctx context.Context, id string) (int, error) {
	var pos int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs q, jobs j
		WHERE j.id=$1 AND j.status='queued' AND q.status='queued'
		  AND (q.created_at, q.id) < (j.created_at, j.id)
	`, id).Scan(&pos)
	if err != nil {
		return -1, wrapPG(err, "jobs.queue_position", "count ahead")
	}

	var queued bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id=$1 AND status='queued')`, id).Scan(&queued); err != nil {
		return -1, wrapPG(err, "jobs.queue_position", "check queued")
	}
	if !queued {
		return -1, nil
	}
	return pos, nil
}

// Claim moves a queued job to processing in one conditional update, so a job
// id delivered twice is only ever run once.
func (r *JobRepository) Claim(ctx context.Context, id string) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `
		UPDATE jobs
		SET status='processing', progress=$2, message=$3, started_at=now()
		WHERE id=$1 AND status='queued'
		RETURNING `+jobColumns,
		id, models.ProgressStarted, models.MessageStarted))
	if err == nil {
		return j, nil
	}
	if !isNoRows(err) {
		return nil, wrapPG(err, "jobs.claim", "update job")
	}
	return nil, r.transitionError(ctx, id, models.JobQueued)
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET progress=GREATEST(progress, $2), message=$3
		WHERE id=$1 AND status='processing'
	`, id, progress, message)
	if err != nil {
		return wrapPG(err, "jobs.update_progress", "update job")
	}
	if cmd.RowsAffected() == 0 {
		return r.transitionError(ctx, id, models.JobProcessing)
	}
	return nil
}

func (r *JobRepository) Complete(ctx context.Context, id string, result *models.Video) error {
	var resultJSON []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return apperrors.Wrap(err, "jobs.complete", "encode result")
		}
		resultJSON = b
	}
	cmd, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET status='completed', progress=$2, message=$3, result=$4, completed_at=now()
		WHERE id=$1 AND status='processing'
	`, id, models.ProgressDone, models.MessageCompleted, resultJSON)
	if err != nil {
		return wrapPG(err, "jobs.complete", "update job")
	}
	if cmd.RowsAffected() == 0 {
		return r.transitionError(ctx, id, models.JobProcessing)
	}
	return nil
}

func (r *JobRepository) Fail(ctx context.Context, id string, errMsg string) error {
	errMsg = models.TruncateError(errMsg)
	cmd, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET status='failed', message=$2, error=$3, completed_at=now()
		WHERE id=$1 AND status='processing'
	`, id, models.FailureMessage(errMsg), errMsg)
	if err != nil {
		return wrapPG(err, "jobs.fail", "update job")
	}
	if cmd.RowsAffected() == 0 {
		return r.transitionError(ctx, id, models.JobProcessing)
	}
	return nil
}

func (r *JobRepository) Requeue(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET status='queued', progress=0, message=$2, started_at=NULL
		WHERE id=$1 AND status='processing'
	`, id, models.MessageQueued)
	if err != nil {
		return wrapPG(err, "jobs.requeue", "update job")
	}
	if cmd.RowsAffected() == 0 {
		return r.transitionError(ctx, id, models.JobProcessing)
	}
	return nil
}

func (r *JobRepository) StaleProcessing(ctx context.Context) ([]models.Job, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status='processing'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, wrapPG(err, "jobs.stale", "select processing jobs")
	}
	return collectJobs(rows)
}

func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cmd, err := r.db.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed','failed') AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, wrapPG(err, "jobs.cleanup", "delete finished jobs")
	}
	return int(cmd.RowsAffected()), nil
}

// transitionError explains why a conditional update matched nothing.
func (r *JobRepository) transitionError(ctx context.Context, id string, want models.JobStatus) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1`, id).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return apperrors.NotFound("job", id)
		}
		return wrapPG(err, "jobs.transition", "select status")
	}
	return apperrors.Conflict("job is not "+string(want)).
		WithField("job_id", id).
		WithField("status", status)
}
