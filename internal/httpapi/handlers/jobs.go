package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/httpkit"
	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

type createVideoResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type jobStatusResponse struct {
	*models.Job
	QueuePosition *int `json:"queue_position,omitempty"`
}

// CreateVideo validates the request, records a queued job and hands its id
// to the worker queue.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req v1.VideoRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return err
	}
	req.Normalize()
	if err := req.Validate(h.maxScriptLength); err != nil {
		return err
	}

	job := models.NewJob(h.newID(), req, h.now())
	if err := h.store.Create(ctx, job); err != nil {
		return err
	}

	log := h.log.FromContext(ctx).WithJobID(job.ID)
	if err := h.queue.Push(ctx, job.ID); err != nil {
		h.abandon(ctx, job.ID, "job queue unavailable")
		log.Error("enqueue failed, job marked failed", "error", err.Error())
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "api.create_video", "job queue unavailable").
			WithField("job_id", job.ID)
	}

	log.Info("video job queued",
		"title", req.Title,
		"format", req.Format,
		"script_chars", len([]rune(req.Script)),
	)
	httpkit.WriteJSON(w, http.StatusAccepted, createVideoResponse{
		JobID:   job.ID,
		Message: "Video generation queued",
	})
	return nil
}

// abandon fails a job the worker will never see. Claim first because only
// processing jobs can fail.
func (h *Handler) abandon(ctx context.Context, id, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := h.store.Claim(ctx, id); err != nil {
		h.log.Warn("could not claim unqueued job", "job_id", id, "error", err.Error())
		return
	}
	if err := h.store.Fail(ctx, id, reason); err != nil {
		h.log.Warn("could not fail unqueued job", "job_id", id, "error", err.Error())
	}
}

func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := chi.URLParam(r, "jobID")

	job, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}

	resp := jobStatusResponse{Job: job}
	if job.Status == models.JobQueued {
		pos, err := h.store.QueuePosition(ctx, id)
		if err != nil {
			return err
		}
		if pos >= 0 {
			resp.QueuePosition = &pos
		}
	}
	httpkit.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) error {
	limit, err := httpkit.QueryInt(r, "limit", defaultJobLimit, 1, maxJobLimit)
	if err != nil {
		return err
	}
	status := models.JobStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		return apperrors.ValidationField("status", "unknown job status: "+string(status))
	}

	jobs, err := h.store.List(r.Context(), models.JobFilter{Status: status, Limit: limit})
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
	return nil
}
