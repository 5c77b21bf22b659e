package pipeline

import (
	"clipforge/internal/catalog"
	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	"clipforge/internal/pipeline/prompts"
	"clipforge/internal/pipeline/subtitles"
)

// State is the scratch space shared by the stages of one job. Each stage
// reads what earlier stages filled in and adds its own outputs.
type State struct {
	JobID   string
	Request v1.VideoRequest
	Format  catalog.Format
	WorkDir string

	NarrationPath     string
	NarrationProvider string
	AudioDuration     float64

	Prompts    []prompts.ImagePrompt
	ImagePaths []string
	ScenePaths []string

	// VideoPath is the newest rendered clip; later stages replace it.
	VideoPath    string
	Segments     []subtitles.Segment
	SubtitlePath string

	Result *models.Video
}

// NewState resolves the request's format. Unknown formats are rejected here
// as well as at the API.
func NewState(jobID string, req v1.VideoRequest, workDir string) (*State, error) {
	format, ok := catalog.LookupFormat(req.Format)
	if !ok {
		return nil, unknownFormat(req.Format)
	}
	return &State{JobID: jobID, Request: req, Format: format, WorkDir: workDir}, nil
}
