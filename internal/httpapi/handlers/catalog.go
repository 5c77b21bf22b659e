package handlers

import (
	"net/http"

	"clipforge/internal/catalog"
	"clipforge/internal/httpkit"
)

// Config lists everything the creation form offers.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"video_formats":     catalog.FormatNames(),
		"video_styles":      catalog.Styles(),
		"voice_types":       catalog.VoiceNames(),
		"max_script_length": h.maxScriptLength,
		"image_count":       h.imageCount,
	})
}

func (h *Handler) Styles(w http.ResponseWriter, r *http.Request) {
	styles := catalog.Styles()
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"styles": styles,
		"count":  len(styles),
	})
}

// Voices maps each voice name to its ElevenLabs voice id.
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	voices := catalog.Voices()
	details := make(map[string]string, len(voices))
	for _, v := range voices {
		details[v.Name] = v.ElevenLabsID
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"voices":        catalog.VoiceNames(),
		"voice_details": details,
		"count":         len(voices),
	})
}

func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	type size struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	formats := catalog.Formats()
	out := make(map[string]size, len(formats))
	for _, f := range formats {
		out[f.Name] = size{Width: f.Width, Height: f.Height}
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"formats": out,
		"count":   len(formats),
	})
}
