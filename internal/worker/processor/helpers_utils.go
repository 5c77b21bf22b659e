package processor

import (
	"fmt"
	"strings"

	"clipforge/internal/models"
)

const (
	ContentTypeVideo = "video/mp4"
	ContentTypeThumb = "image/jpeg"
)

// OutputKeys are the storage keys for one job's outputs.
type OutputKeys struct {
	Video string
	Thumb string
}

// GenerateOutputKeys names outputs after the title and the first eight
// characters of the job id, so reruns of a title never collide.
func GenerateOutputKeys(jobID, title string) OutputKeys {
	base := fmt.Sprintf("%s-%s", models.Slugify(title), ShortID(jobID))
	return OutputKeys{
		Video: "videos/" + base + ".mp4",
		Thumb: "thumbnails/" + base + ".jpg",
	}
}

// ShortID returns the first eight characters of id.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "job"
	}
	return id
}
