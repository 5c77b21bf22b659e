package v1

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"clipforge/internal/catalog"
	apperrors "clipforge/internal/pkg/errors"
)

// VideoRequest is the body of POST /api/create-video and the payload the
// worker reads back from the job record.
type VideoRequest struct {
	Title            string `json:"title"`
	Category         string `json:"category"`
	Format           string `json:"format"`
	Style            string `json:"style"`
	Voice            string `json:"voice"`
	Script           string `json:"script"`
	Keywords         string `json:"keywords"`
	NegativeKeywords string `json:"negative_keywords"`
}

func (r *VideoRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.Format = strings.TrimSpace(r.Format)
	r.Style = strings.TrimSpace(r.Style)
	r.Voice = strings.TrimSpace(r.Voice)
	r.Script = strings.TrimSpace(r.Script)
	r.Keywords = strings.TrimSpace(r.Keywords)
	r.NegativeKeywords = strings.TrimSpace(r.NegativeKeywords)
}

// Validate reports every problem at once. The script length is counted in
// characters, not bytes.
func (r VideoRequest) Validate(maxScriptLength int) error {
	var problems []string

	required := []struct{ field, value string }{
		{"title", r.Title},
		{"category", r.Category},
		{"format", r.Format},
		{"style", r.Style},
		{"voice", r.Voice},
		{"script", r.Script},
	}
	for _, f := range required {
		if f.value == "" {
			problems = append(problems, f.field+": field required")
		}
	}

	tooLong := ""
	if n := utf8.RuneCountInString(r.Script); maxScriptLength > 0 && n > maxScriptLength {
		tooLong = fmt.Sprintf("Script too long. Maximum %d characters", maxScriptLength)
		problems = append(problems, "script: "+tooLong)
	}

	if r.Format != "" {
		if _, ok := catalog.LookupFormat(r.Format); !ok {
			problems = append(problems, fmt.Sprintf("format: must be one of %s", strings.Join(catalog.FormatNames(), ", ")))
		}
	}

	switch {
	case len(problems) == 0:
		return nil
	case len(problems) == 1 && tooLong != "":
		return apperrors.ValidationField("script", tooLong).
			WithField("length", utf8.RuneCountInString(r.Script)).
			WithField("max_length", maxScriptLength)
	}
	return apperrors.Validation("Validation failed").WithField("problems", strings.Join(problems, "; "))
}
