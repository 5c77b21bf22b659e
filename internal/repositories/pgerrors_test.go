package repositories

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassifiers(t *testing.T) {
	wrapped := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"undefined table", wrapped("42P01"), IsUndefinedTable, true},
		{"unique violation", wrapped("23505"), IsUniqueViolation, true},
		{"check violation", wrapped("23514"), IsCheckViolation, true},
		{"invalid text", wrapped("22P02"), IsInvalidTextInput, true},
		{"other code", wrapped("40001"), IsUniqueViolation, false},
		{"plain error", errors.New("boom"), IsUndefinedTable, false},
		{"nil", nil, IsUniqueViolation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to match")
	}
	if isNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`100%_a\b`); got != `100\%\_a\\b` {
		t.Errorf("unexpected escape %q", got)
	}
}

func TestSchemaDefinesTables(t *testing.T) {
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS jobs",
		"CREATE TABLE IF NOT EXISTS videos",
		"video_data    JSONB",
		"jobs_status_created_idx",
	} {
		if !strings.Contains(schemaSQL, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
