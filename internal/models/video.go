package models

import (
	"strings"
	"time"
	"unicode"
)

// Video is a finished clip in the library. Path and ThumbnailPath are object
// keys understood by the storage provider named in StorageProvider.
type Video struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Format           string    `json:"format"`
	Style            string    `json:"style"`
	Voice            string    `json:"voice"`
	Script           string    `json:"script"`
	Keywords         string    `json:"keywords"`
	NegativeKeywords string    `json:"negative_keywords"`
	Path             string    `json:"path"`
	ThumbnailPath    string    `json:"thumbnail_path"`
	StorageProvider  string    `json:"storage_provider"`
	Duration         float64   `json:"duration"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

const VideoStatusCompleted = "completed"

type VideoFilter struct {
	Limit  int
	Offset int
}

const maxSlugLength = 50

// DownloadName is the attachment file name offered for the video.
func (v Video) DownloadName() string {
	return Slugify(v.Title) + ".mp4"
}

// Slugify lowercases s and keeps ASCII letters and digits, joining runs of
// anything else with a single dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "video"
	}
	return slug
}
