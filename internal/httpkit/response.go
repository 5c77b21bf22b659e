package httpkit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "clipforge/internal/pkg/errors"
)

// maxBodyBytes bounds JSON request bodies. Scripts are capped well below this.
const maxBodyBytes = 1 << 20

type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// DecodeJSON decodes a single JSON object from the request body. Unknown
// fields and trailing data are rejected as validation errors.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is empty")
		}
		return apperrors.WrapWithCode(err, apperrors.CodeValidation, "httpkit.decode", "invalid JSON body")
	}
	if dec.More() {
		return apperrors.Validation("request body must contain a single JSON object")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details
	WriteJSON(w, status, env)
}

// WriteError renders err as an envelope using its code and fields. Internal
// errors hide their cause from the client.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.GetHTTPStatus(err)

	msg := "internal server error"
	var e *apperrors.Error
	if status < 500 || code == apperrors.CodeUnavailable || code == apperrors.CodeUpstream {
		msg = err.Error()
		if apperrors.As(err, &e) {
			msg = e.Message
		}
	}
	WriteErr(w, status, string(code), msg, apperrors.GetFields(err))
}

// QueryInt reads an integer query parameter, falling back to def when it is
// absent and clamping the result into [min, max].
func QueryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.ValidationField(name, name+" must be an integer")
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n, nil
}
