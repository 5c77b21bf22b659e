package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/httpkit"
	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

const (
	defaultVideoLimit = 100
	maxVideoLimit     = 500
)

func (h *Handler) AllVideos(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	limit, err := httpkit.QueryInt(r, "limit", defaultVideoLimit, 1, maxVideoLimit)
	if err != nil {
		return err
	}
	offset, err := httpkit.QueryInt(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		return err
	}

	videos, err := h.store.ListVideos(ctx, models.VideoFilter{Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	total, err := h.store.CountVideos(ctx)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"count":  len(videos),
		"total":  total,
	})
	return nil
}

// SearchVideos matches q against titles and categories.
func (h *Handler) SearchVideos(w http.ResponseWriter, r *http.Request) error {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		return apperrors.ValidationField("q", "q is required")
	}
	limit, err := httpkit.QueryInt(r, "limit", defaultVideoLimit, 1, maxVideoLimit)
	if err != nil {
		return err
	}

	videos, err := h.store.SearchVideos(r.Context(), q, limit)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"count":  len(videos),
		"query":  q,
	})
	return nil
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) error {
	v, err := h.videoFromPath(r)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, v)
	return nil
}

// DeleteVideo removes the stored objects first so a failed removal leaves the
// record in place for a retry. Objects already gone are ignored.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	v, err := h.videoFromPath(r)
	if err != nil {
		return err
	}

	for _, key := range []string{v.Path, v.ThumbnailPath} {
		if key == "" {
			continue
		}
		if err := h.sp.Delete(ctx, key); err != nil && !apperrors.IsNotFound(err) {
			return apperrors.Wrap(err, "api.delete_video", "failed to delete stored file").
				WithField("video_id", v.ID).
				WithField("object_key", key)
		}
	}
	if err := h.store.DeleteVideo(ctx, v.ID); err != nil {
		return err
	}

	h.log.FromContext(ctx).Info("video deleted", "video_id", v.ID, "title", v.Title)
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"message": "Video deleted successfully"})
	return nil
}

// Download streams the mp4 as an attachment named after the title.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) error {
	v, err := h.videoFromPath(r)
	if err != nil {
		return err
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": v.DownloadName()})
	return h.stream(w, r, v.Path, "video/mp4", disposition, "Video file not found")
}

func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) error {
	v, err := h.videoFromPath(r)
	if err != nil {
		return err
	}
	if v.ThumbnailPath == "" {
		return apperrors.New(apperrors.CodeNotFound, "Thumbnail not found").WithField("video_id", v.ID)
	}
	return h.stream(w, r, v.ThumbnailPath, "image/jpeg", "inline", "Thumbnail not found")
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, key, fallbackType, disposition, missing string) error {
	ctx := r.Context()
	obj, err := h.sp.Get(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.New(apperrors.CodeNotFound, missing).WithField("object_key", key)
		}
		return err
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = fallbackType
	}
	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Disposition", disposition)
	if obj.Size > 0 {
		hdr.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if n, err := io.Copy(w, obj.Body); err != nil {
		// Headers are gone; all that is left is to log it.
		h.log.FromContext(ctx).Warn("stream interrupted",
			"object_key", key,
			"bytes", n,
			"error", err.Error(),
		)
	}
	return nil
}

func (h *Handler) videoFromPath(r *http.Request) (*models.Video, error) {
	raw := chi.URLParam(r, "videoID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.ValidationField("video_id", "video id must be a positive integer").WithField("value", raw)
	}
	return h.store.GetVideo(r.Context(), id)
}
