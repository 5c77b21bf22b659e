// Package catalog lists the formats, styles and voices a video can be made with.
package catalog

type Format struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// ImageSize is the DALL-E 3 size closest to the format's aspect ratio.
	ImageSize string `json:"-"`
}

type Voice struct {
	Name string `json:"name"`
	// ElevenLabsID is the ElevenLabs voice used first.
	ElevenLabsID string `json:"elevenlabs_id"`
	// OpenAIVoice is the tts-1 voice used when ElevenLabs is unavailable.
	OpenAIVoice string `json:"openai_voice"`
}

const (
	DefaultVoice       = "Zara"
	DefaultOpenAIVoice = "nova"
	DefaultStyle       = "Realistic Action Art"
)

var formats = []Format{
	{Name: "9:16", Width: 1080, Height: 1920, ImageSize: "1024x1792"},
	{Name: "16:9", Width: 1920, Height: 1080, ImageSize: "1792x1024"},
	{Name: "1:1", Width: 1080, Height: 1080, ImageSize: "1024x1024"},
}

var styles = []string{
	"Realistic Action Art",
	"B&W Sketch",
	"Comic Noir",
	"Retro Noir",
	"Medieval Painting",
	"Anime",
	"Warm Fable",
	"Hyper Realistic",
	"3D Cartoon",
	"Caricature",
}

var voices = []Voice{
	{Name: "Zara", ElevenLabsID: "XB0fDUnXU5powFXDhCwa", OpenAIVoice: "nova"},
	{Name: "Shelby", ElevenLabsID: "EXAVITQu4vr4xnSDxMaL", OpenAIVoice: "shimmer"},
	{Name: "James", ElevenLabsID: "ZQe5CZNOzWyzPSCn5a3c", OpenAIVoice: "onyx"},
	{Name: "B.Giffen", ElevenLabsID: "N2lVS1w4EtoT3dr4eOWO", OpenAIVoice: "fable"},
	{Name: "Adam", ElevenLabsID: "pNInz6obpgDQGcFmaJgB", OpenAIVoice: "echo"},
	{Name: "Lulu Lollipop", ElevenLabsID: "EXAVITQu4vr4xnSDxMaL", OpenAIVoice: "alloy"},
}

// Formats returns the supported formats in display order.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

func FormatNames() []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = f.Name
	}
	return out
}

func LookupFormat(name string) (Format, bool) {
	for _, f := range formats {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// ImageSize returns the DALL-E size for a format; unknown formats are square.
func ImageSize(format string) string {
	if f, ok := LookupFormat(format); ok {
		return f.ImageSize
	}
	return "1024x1024"
}

func Styles() []string {
	return append([]string(nil), styles...)
}

func Voices() []Voice {
	return append([]Voice(nil), voices...)
}

func VoiceNames() []string {
	out := make([]string, len(voices))
	for i, v := range voices {
		out[i] = v.Name
	}
	return out
}

// ResolveVoice returns the named voice, or the default voice and false when
// the name is unknown.
func ResolveVoice(name string) (Voice, bool) {
	for _, v := range voices {
		if v.Name == name {
			return v, true
		}
	}
	def, _ := ResolveVoice(DefaultVoice)
	return def, false
}

// OpenAIVoice maps a catalog voice to its tts-1 fallback.
func OpenAIVoice(name string) string {
	for _, v := range voices {
		if v.Name == name {
			return v.OpenAIVoice
		}
	}
	return DefaultOpenAIVoice
}
