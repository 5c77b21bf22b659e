// Package llm holds the OpenAI chat helpers shared by the prompt and subtitle
// stages.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	apperrors "clipforge/internal/pkg/errors"
)

// NewOpenAI builds a client. Extra options let tests point it at a local server.
func NewOpenAI(apiKey string, opts ...option.RequestOption) openai.Client {
	return openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
}

// GenerateSchema reflects T into an inline JSON schema suitable for strict
// structured outputs.
func GenerateSchema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int64

	SchemaName        string
	SchemaDescription string
	Schema            any
}

// Structured sends one chat completion constrained to req.Schema and decodes
// the reply into T.
func Structured[T any](ctx context.Context, client openai.Client, req Request) (*T, error) {
	model := req.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String(req.SchemaDescription),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apperrors.Upstream("openai", err)
	}
	if len(completion.Choices) == 0 {
		return nil, apperrors.Upstream("openai", apperrors.New(apperrors.CodeUpstream, "no choices returned"))
	}

	raw := strings.TrimSpace(completion.Choices[0].Message.Content)
	if raw == "" {
		return nil, apperrors.Upstream("openai", apperrors.Newf(apperrors.CodeUpstream,
			"empty response, finish reason %s", completion.Choices[0].FinishReason))
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperrors.Upstream("openai", apperrors.Wrap(err, "openai.decode", "malformed structured response"))
	}
	return &out, nil
}
