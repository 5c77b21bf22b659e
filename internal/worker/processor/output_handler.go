package processor

import (
	"context"
	"os"
	"time"

	"clipforge/internal/models"
	"clipforge/internal/pipeline"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

// Thumbnailer grabs a still from a rendered clip.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, video string, duration float64, dir string) (string, error)
}

// OutputHandler is the persistence stage: it uploads the clip and its
// thumbnail and records the video in the library.
type OutputHandler struct {
	videos ports.VideoStore
	sp     ports.StorageProvider
	thumbs Thumbnailer
	now    func() time.Time
	log    *logger.Logger
}

func NewOutputHandler(videos ports.VideoStore, sp ports.StorageProvider, thumbs Thumbnailer, log *logger.Logger) *OutputHandler {
	if log == nil {
		log = logger.NewDefault()
	}
	return &OutputHandler{videos: videos, sp: sp, thumbs: thumbs, now: time.Now, log: log}
}

// Persist implements pipeline.Persister. A missing thumbnail is logged and
// the video is stored without one.
func (oh *OutputHandler) Persist(ctx context.Context, st *pipeline.State) (*models.Video, error) {
	log := oh.log.FromContext(ctx)
	if st.VideoPath == "" {
		return nil, apperrors.Internal("no rendered video to persist")
	}
	keys := GenerateOutputKeys(st.JobID, st.Request.Title)

	videoKey, err := oh.upload(ctx, st.VideoPath, keys.Video, ContentTypeVideo)
	if err != nil {
		return nil, apperrors.Wrap(err, "processor.outputs", "failed to upload video")
	}
	uploaded := []string{videoKey}

	thumbKey := ""
	if oh.thumbs != nil {
		thumb, err := oh.thumbs.Thumbnail(ctx, st.VideoPath, st.AudioDuration, st.WorkDir)
		if err == nil {
			thumbKey, err = oh.upload(ctx, thumb, keys.Thumb, ContentTypeThumb)
		}
		if err != nil {
			if ctx.Err() != nil {
				oh.discard(uploaded)
				return nil, ctx.Err()
			}
			log.Warn("thumbnail unavailable, storing video without it", "error", err.Error())
			thumbKey = ""
		} else {
			uploaded = append(uploaded, thumbKey)
		}
	}

	req := st.Request
	v := &models.Video{
		Title:            req.Title,
		Category:         req.Category,
		Format:           req.Format,
		Style:            req.Style,
		Voice:            req.Voice,
		Script:           req.Script,
		Keywords:         req.Keywords,
		NegativeKeywords: req.NegativeKeywords,
		Path:             videoKey,
		ThumbnailPath:    thumbKey,
		StorageProvider:  oh.sp.Provider(),
		Duration:         st.AudioDuration,
		Status:           models.VideoStatusCompleted,
		CreatedAt:        oh.now().UTC(),
	}
	if err := oh.videos.CreateVideo(ctx, v); err != nil {
		oh.discard(uploaded)
		return nil, apperrors.Wrap(err, "processor.save", "failed to save video record")
	}

	log.Info("video stored",
		"video_id", v.ID,
		"object_key", videoKey,
		"provider", v.StorageProvider,
	)
	return v, nil
}

func (oh *OutputHandler) upload(ctx context.Context, localPath, objectKey, contentType string) (string, error) {
	st, err := os.Stat(localPath)
	if err != nil {
		return "", apperrors.Wrap(err, "processor.upload", "output file not found").WithField("path", localPath)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", apperrors.Wrap(err, "processor.upload", "failed to open output")
	}
	defer f.Close()

	out, err := oh.sp.Put(ctx, objectKey, contentType, f)
	if err != nil {
		return "", err
	}
	if out.Size != st.Size() {
		oh.log.Warn("stored size differs from local file",
			"object_key", out.Key,
			"local", st.Size(),
			"stored", out.Size,
		)
	}
	return out.Key, nil
}

// discard removes objects already uploaded for a job that could not be
// recorded. It runs detached from the job context, which may be cancelled.
func (oh *OutputHandler) discard(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := oh.sp.Delete(ctx, k); err != nil {
			oh.log.Warn("failed to remove orphaned object", "object_key", k, "error", err.Error())
		}
	}
}
