// Package config loads ClipForge settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables always win over it.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "clipforge/internal/pkg/errors"
)

const (
	StorePostgres = "postgres"
	StoreFile     = "file"

	QueueRedis = "redis"
	QueueStore = "store"
)

type Config struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	LogLevel  string
	LogFormat string
	LogSource bool

	StoreBackend string
	DatabaseURL  string
	JobStoreFile string

	QueueBackend        string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	QueueName           string
	QueuePopTimeout     time.Duration
	WorkerCheckInterval time.Duration

	StorageProvider    string
	StorageLocalRoot   string
	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string

	MaxScriptLength int
	ImageCount      int
	DefaultFPS      int

	OpenAIAPIKey        string
	ElevenLabsAPIKey    string
	GoogleAPIKey        string
	PromptModel         string
	SubtitleModel       string
	ImageConcurrency    int
	ImageRateLimitDelay time.Duration

	FFmpegPath    string
	FFprobePath   string
	WorkDir       string
	KeepWorkFiles bool

	JobRetentionDays int
	CleanupSchedule  string
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(err, "config.load", "read .env")
	}

	cfg := &Config{
		Port:            Env("PORT", "5000"),
		RequestTimeout:  DurationEnv("REQUEST_TIMEOUT", 60*time.Second),
		ShutdownTimeout: DurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:     CSVEnv("CORS_ALLOWED_ORIGINS", "*"),

		LogLevel:  Env("LOG_LEVEL", "info"),
		LogFormat: Env("LOG_FORMAT", "json"),
		LogSource: BoolEnv("LOG_SOURCE", false),

		StoreBackend: strings.ToLower(Env("STORE_BACKEND", StorePostgres)),
		DatabaseURL:  Env("DATABASE_URL", ""),
		JobStoreFile: Env("JOB_STORE_FILE", filepath.Join("outputs", "job_queue.json")),

		QueueBackend:        strings.ToLower(Env("QUEUE_BACKEND", QueueRedis)),
		RedisAddr:           Env("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       Env("REDIS_PASSWORD", ""),
		RedisDB:             IntEnv("REDIS_DB", 0),
		QueueName:           Env("JOB_QUEUE_NAME", "clipforge:jobs"),
		QueuePopTimeout:     DurationEnv("QUEUE_POP_TIMEOUT", 5*time.Second),
		WorkerCheckInterval: DurationEnv("WORKER_CHECK_INTERVAL", 2*time.Second),

		StorageProvider:    strings.ToLower(Env("STORAGE_PROVIDER", "localfs")),
		StorageLocalRoot:   Env("STORAGE_LOCAL_ROOT", "outputs"),
		GDriveClientID:     Env("GDRIVE_CLIENT_ID", ""),
		GDriveClientSecret: Env("GDRIVE_CLIENT_SECRET", ""),
		GDriveRefreshToken: Env("GDRIVE_REFRESH_TOKEN", ""),
		GDriveFolderID:     Env("GDRIVE_FOLDER_ID", ""),

		MaxScriptLength: IntEnv("MAX_SCRIPT_LENGTH", 1500),
		ImageCount:      IntEnv("IMAGE_COUNT", 7),
		DefaultFPS:      IntEnv("DEFAULT_FPS", 30),

		OpenAIAPIKey:        Env("OPENAI_API_KEY", ""),
		ElevenLabsAPIKey:    Env("ELEVENLABS_API_KEY", ""),
		GoogleAPIKey:        firstNonEmpty(Env("GOOGLE_API_KEY", ""), Env("GEMINI_API_KEY", "")),
		PromptModel:         Env("PROMPT_MODEL", "gpt-4o-mini"),
		SubtitleModel:       Env("SUBTITLE_MODEL", "gpt-4o-mini"),
		ImageConcurrency:    IntEnv("IMAGE_CONCURRENCY", 1),
		ImageRateLimitDelay: DurationEnv("IMAGE_RATE_LIMIT_DELAY", time.Second),

		FFmpegPath:    Env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   Env("FFPROBE_PATH", "ffprobe"),
		WorkDir:       Env("WORK_DIR", filepath.Join(os.TempDir(), "clipforge")),
		KeepWorkFiles: BoolEnv("KEEP_WORK_FILES", false),

		JobRetentionDays: IntEnv("JOB_RETENTION_DAYS", 7),
		CleanupSchedule:  Env("CLEANUP_SCHEDULE", "@daily"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend choices and the settings each backend requires.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return apperrors.ValidationField("DATABASE_URL", "DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case StoreFile:
		if c.JobStoreFile == "" {
			return apperrors.ValidationField("JOB_STORE_FILE", "JOB_STORE_FILE is required when STORE_BACKEND=file")
		}
	default:
		return apperrors.ValidationField("STORE_BACKEND", "unknown store backend: "+c.StoreBackend)
	}

	switch c.QueueBackend {
	case QueueRedis:
		if c.RedisAddr == "" {
			return apperrors.ValidationField("REDIS_ADDR", "REDIS_ADDR is required when QUEUE_BACKEND=redis")
		}
	case QueueStore:
	default:
		return apperrors.ValidationField("QUEUE_BACKEND", "unknown queue backend: "+c.QueueBackend)
	}

	switch c.StorageProvider {
	case "localfs":
	case "gdrive":
		if c.GDriveClientID == "" || c.GDriveClientSecret == "" || c.GDriveRefreshToken == "" {
			return apperrors.ValidationField("STORAGE_PROVIDER", "gdrive storage needs GDRIVE_CLIENT_ID, GDRIVE_CLIENT_SECRET and GDRIVE_REFRESH_TOKEN")
		}
	default:
		return apperrors.ValidationField("STORAGE_PROVIDER", "unknown storage provider: "+c.StorageProvider)
	}

	if c.MaxScriptLength <= 0 {
		return apperrors.ValidationField("MAX_SCRIPT_LENGTH", "MAX_SCRIPT_LENGTH must be positive")
	}
	if c.DefaultFPS <= 0 {
		return apperrors.ValidationField("DEFAULT_FPS", "DEFAULT_FPS must be positive")
	}
	if c.ImageConcurrency < 1 {
		c.ImageConcurrency = 1
	}
	if c.JobRetentionDays < 1 {
		return apperrors.ValidationField("JOB_RETENTION_DAYS", "JOB_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// Env returns the trimmed value of k, or def when unset or blank.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// MustEnv panics when k is unset. Only for values a binary cannot start without.
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}

// BoolEnv accepts anything strconv.ParseBool does; invalid values yield def.
func BoolEnv(k string, def bool) bool {
	b, err := strconv.ParseBool(Env(k, ""))
	if err != nil {
		return def
	}
	return b
}

func IntEnv(k string, def int) int {
	n, err := strconv.Atoi(Env(k, ""))
	if err != nil {
		return def
	}
	return n
}

// DurationEnv accepts Go durations ("1500ms", "2s") or a bare number of seconds.
func DurationEnv(k string, def time.Duration) time.Duration {
	v := Env(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func CSVEnv(k, def string) []string {
	parts := strings.Split(Env(k, def), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
