package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	apperrors "clipforge/internal/pkg/errors"
)

type answer struct {
	Items []string `json:"items" jsonschema_description:"things"`
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	b, err := json.Marshal(GenerateSchema[answer]())
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"additionalProperties":false`) {
		t.Errorf("schema should forbid additional properties: %s", s)
	}
	if strings.Contains(s, `"$ref"`) {
		t.Errorf("schema should be inlined: %s", s)
	}
}

func TestStructured(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"items":["a","b"]}`))
	}))
	defer srv.Close()

	client := NewOpenAI("test-key", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
	out, err := Structured[answer](context.Background(), client, Request{
		System:      "be brief",
		User:        "list",
		Temperature: 0.3,
		SchemaName:  "answer",
		Schema:      GenerateSchema[answer](),
	})
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if len(out.Items) != 2 || out.Items[1] != "b" {
		t.Errorf("unexpected answer %+v", out)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("expected default model, got %v", gotBody["model"])
	}
	if msgs, _ := gotBody["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", gotBody["messages"])
	}
	if gotBody["temperature"] != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", gotBody["temperature"])
	}
}

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"empty content", http.StatusOK, ""},
		{"not json", http.StatusOK, "sure, here you go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
					return
				}
				_, _ = io.WriteString(w, completionBody(tt.content))
			}))
			defer srv.Close()

			client := NewOpenAI("k", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
			_, err := Structured[answer](context.Background(), client, Request{User: "x", SchemaName: "a", Schema: GenerateSchema[answer]()})
			if !apperrors.IsUpstream(err) {
				t.Errorf("expected upstream error, got %v", err)
			}
		})
	}
}
