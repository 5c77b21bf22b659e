package processor

import (
	"os"
	"path/filepath"

	"clipforge/internal/pkg/logger"
)

// Cleanup owns the per-job scratch directories under the work root.
type Cleanup struct {
	workRoot string
	keep     bool
	log      *logger.Logger
}

func NewCleanup(workRoot string, keep bool, log *logger.Logger) *Cleanup {
	return &Cleanup{workRoot: workRoot, keep: keep, log: log}
}

func (c *Cleanup) JobDir(jobID string) string {
	return filepath.Join(c.workRoot, jobID)
}

// Prepare creates an empty scratch directory for the job, removing whatever a
// previous attempt left behind.
func (c *Cleanup) Prepare(jobID string) (string, error) {
	dir := c.JobDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// CleanupJob removes the job's scratch directory unless work files are kept.
func (c *Cleanup) CleanupJob(jobID string) {
	if c.keep {
		return
	}
	if err := os.RemoveAll(c.JobDir(jobID)); err != nil && c.log != nil {
		c.log.Warn("failed to remove work dir", "job_id", jobID, "error", err.Error())
	}
}
