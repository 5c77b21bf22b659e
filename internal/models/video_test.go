package models

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Ancient Egypt: Rise & Fall": "ancient-egypt-rise-fall",
		"  --Hello__World--  ":       "hello-world",
		"Café au lait":               "caf-au-lait",
		"!!!":                        "video",
		"":                           "video",
		strings.Repeat("ab ", 40):    "ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDownloadName(t *testing.T) {
	v := Video{Title: "Ancient Egypt"}
	if got := v.DownloadName(); got != "ancient-egypt.mp4" {
		t.Errorf("DownloadName() = %q", got)
	}
}
