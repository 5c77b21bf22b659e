package processor

import (
	"clipforge/internal/catalog"
	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

// ParsedJob is a claimed job whose video_data passed validation.
type ParsedJob struct {
	ID      string
	Request v1.VideoRequest
	// VoiceFallback is set when the requested voice is not in the catalog and
	// narration will use the default voice.
	VoiceFallback bool
}

type JobParser struct {
	maxScriptLength int
}

func NewJobParser(maxScriptLength int) *JobParser {
	return &JobParser{maxScriptLength: maxScriptLength}
}

// Parse re-validates the stored request. Jobs written by an older API, or by
// hand into the file store, get the same checks as new submissions.
func (jp *JobParser) Parse(job *models.Job) (*ParsedJob, error) {
	if job == nil {
		return nil, apperrors.Validation("job is nil")
	}
	req := job.VideoData
	req.Normalize()
	if err := req.Validate(jp.maxScriptLength); err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeValidation, "processor.parse", "invalid video_data")
	}

	p := &ParsedJob{ID: job.ID, Request: req}
	if _, ok := catalog.ResolveVoice(req.Voice); !ok {
		p.VoiceFallback = true
	}
	return p, nil
}
