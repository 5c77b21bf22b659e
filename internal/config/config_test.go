package config

import (
	"testing"
	"time"

	apperrors "clipforge/internal/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("QUEUE_BACKEND", "store")
	t.Setenv("STORAGE_PROVIDER", "")
	t.Setenv("PORT", "")
	t.Setenv("MAX_SCRIPT_LENGTH", "")
	t.Setenv("JOB_QUEUE_NAME", "")
	t.Setenv("DEFAULT_FPS", "")
	t.Setenv("JOB_RETENTION_DAYS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected port 5000, got %s", cfg.Port)
	}
	if cfg.MaxScriptLength != 1500 {
		t.Errorf("expected max script length 1500, got %d", cfg.MaxScriptLength)
	}
	if cfg.QueueName != "clipforge:jobs" {
		t.Errorf("expected default queue name, got %s", cfg.QueueName)
	}
	if cfg.DefaultFPS != 30 {
		t.Errorf("expected fps 30, got %d", cfg.DefaultFPS)
	}
	if cfg.StorageProvider != "localfs" {
		t.Errorf("expected localfs storage, got %s", cfg.StorageProvider)
	}
	if cfg.JobRetentionDays != 7 {
		t.Errorf("expected retention 7, got %d", cfg.JobRetentionDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://clipforge@localhost/clipforge")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("STORAGE_PROVIDER", "localfs")
	t.Setenv("MAX_SCRIPT_LENGTH", "3000")
	t.Setenv("QUEUE_POP_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("JOB_RETENTION_DAYS", "")
	t.Setenv("DEFAULT_FPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != StorePostgres {
		t.Errorf("expected backend to be lower-cased, got %s", cfg.StoreBackend)
	}
	if cfg.MaxScriptLength != 3000 {
		t.Errorf("expected 3000, got %d", cfg.MaxScriptLength)
	}
	if cfg.QueuePopTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.QueuePopTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.GoogleAPIKey != "gem-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", cfg.GoogleAPIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreBackend:     StoreFile,
			JobStoreFile:     "jobs.json",
			QueueBackend:     QueueStore,
			StorageProvider:  "localfs",
			MaxScriptLength:  1500,
			DefaultFPS:       30,
			JobRetentionDays: 7,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ok", func(*Config) {}, ""},
		{"postgres needs url", func(c *Config) { c.StoreBackend = StorePostgres }, "DATABASE_URL"},
		{"unknown store", func(c *Config) { c.StoreBackend = "sqlite" }, "STORE_BACKEND"},
		{"redis needs addr", func(c *Config) { c.QueueBackend = QueueRedis }, "REDIS_ADDR"},
		{"unknown queue", func(c *Config) { c.QueueBackend = "sqs" }, "QUEUE_BACKEND"},
		{"gdrive needs creds", func(c *Config) { c.StorageProvider = "gdrive" }, "STORAGE_PROVIDER"},
		{"unknown storage", func(c *Config) { c.StorageProvider = "s3" }, "STORAGE_PROVIDER"},
		{"script length", func(c *Config) { c.MaxScriptLength = 0 }, "MAX_SCRIPT_LENGTH"},
		{"fps", func(c *Config) { c.DefaultFPS = -1 }, "DEFAULT_FPS"},
		{"retention", func(c *Config) { c.JobRetentionDays = 0 }, "JOB_RETENTION_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if !apperrors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := apperrors.GetFields(err)["field"]; got != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, got)
			}
		})
	}
}

func TestValidateClampsConcurrency(t *testing.T) {
	cfg := &Config{StoreBackend: StoreFile, JobStoreFile: "x", QueueBackend: QueueStore,
		StorageProvider: "localfs", MaxScriptLength: 1, DefaultFPS: 1, JobRetentionDays: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.ImageConcurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.ImageConcurrency)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CF_STR", "  padded  ")
	t.Setenv("CF_BOOL", "TRUE")
	t.Setenv("CF_BAD_BOOL", "maybe")
	t.Setenv("CF_INT", "42")
	t.Setenv("CF_BAD_INT", "4x2")
	t.Setenv("CF_DUR", "90")
	t.Setenv("CF_DUR_GO", "1m30s")
	t.Setenv("CF_DUR_BAD", "soon")

	if Env("CF_STR", "x") != "padded" {
		t.Error("Env should trim")
	}
	if Env("CF_MISSING", "fallback") != "fallback" {
		t.Error("Env should fall back")
	}
	if !BoolEnv("CF_BOOL", false) || BoolEnv("CF_BAD_BOOL", false) {
		t.Error("BoolEnv mismatch")
	}
	if IntEnv("CF_INT", 0) != 42 || IntEnv("CF_BAD_INT", 7) != 7 {
		t.Error("IntEnv mismatch")
	}
	if DurationEnv("CF_DUR", 0) != 90*time.Second || DurationEnv("CF_DUR_GO", 0) != 90*time.Second {
		t.Error("DurationEnv mismatch")
	}
	if DurationEnv("CF_DUR_BAD", time.Second) != time.Second {
		t.Error("DurationEnv should fall back on garbage")
	}
}

func TestMustEnvPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing env")
		}
	}()
	MustEnv("CF_DEFINITELY_MISSING")
}
