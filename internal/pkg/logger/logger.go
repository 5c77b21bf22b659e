// Package logger wraps log/slog with the attributes ClipForge processes share:
// service name, request id, job id, component and pipeline stage.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	apperrors "clipforge/internal/pkg/errors"
)

type contextKey string

// Context keys double as attribute names.
const (
	RequestIDKey contextKey = "request_id"
	JobIDKey     contextKey = "job_id"
	StageKey     contextKey = "stage"
)

var contextKeys = [...]contextKey{RequestIDKey, JobIDKey, StageKey}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type Logger struct {
	*slog.Logger
}

type Config struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string
	// Format is json or text.
	Format      string
	Output      io.Writer
	AddSource   bool
	ServiceName string
}

func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: utcTime,
	}

	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	if cfg.ServiceName != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.ServiceName)})
	}
	return &Logger{Logger: slog.New(h)}
}

// NewDefault is the logger used before config has loaded. It honours
// LOG_LEVEL and LOG_FORMAT only.
func NewDefault() *Logger {
	return New(Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
		ServiceName: "clipforge",
	})
}

// Discard drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func (l *Logger) WithJobID(jobID string) *Logger { return l.with(string(JobIDKey), jobID) }
func (l *Logger) WithStage(stage string) *Logger { return l.with(string(StageKey), stage) }

func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithError attaches the error text. A coded error adds its code, op and the
// pipeline stage it failed in.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	args := []any{"error", err.Error()}
	var e *apperrors.Error
	if apperrors.As(err, &e) {
		args = append(args, "error_code", string(e.Code))
		if e.Op != "" {
			args = append(args, "error_op", e.Op)
		}
	}
	if stage := apperrors.GetStage(err); stage != "" {
		args = append(args, "failed_stage", stage)
	}
	return l.with(args...)
}

// FromContext adds whichever of request_id, job_id and stage ctx carries.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	var args []any
	for _, k := range contextKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			args = append(args, string(k), v)
		}
	}
	if len(args) == 0 {
		return l
	}
	return l.with(args...)
}

// LogFatal logs at error and exits with status 1.
func (l *Logger) LogFatal(msg string, err error, args ...any) {
	if err != nil {
		l = l.WithError(err)
	}
	l.Error(msg, args...)
	os.Exit(1)
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func ContextWithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

func ContextWithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(timeFormat))
	}
	return a
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
