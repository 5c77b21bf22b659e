// Package errors provides the coded error type shared by the ClipForge API,
// worker and CLI. Errors carry a code for HTTP mapping, the failing operation,
// optional structured fields and a short stack trace.
package errors

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"runtime"
	"strings"
)

// Code categorizes an error. It is what API clients see in the envelope and
// what the worker logs when a job fails.
type Code string

const (
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeUpstream    Code = "UPSTREAM_ERROR"
	CodeCanceled    Code = "CANCELED"
)

// statusClientClosed is nginx's 499, used for jobs cut short by shutdown.
const statusClientClosed = 499

var statusByCode = map[Code]int{
	CodeValidation:  http.StatusBadRequest,
	CodeNotFound:    http.StatusNotFound,
	CodeConflict:    http.StatusConflict,
	CodeCanceled:    statusClientClosed,
	CodeUpstream:    http.StatusBadGateway,
	CodeUnavailable: http.StatusServiceUnavailable,
}

// Error is a coded error with operation context.
type Error struct {
	Code    Code
	Message string
	// Op is the operation that failed, e.g. "jobstore.claim".
	Op     string
	Err    error
	Fields map[string]any
	Stack  []Frame
}

type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Error renders "op: [CODE] message: cause", skipping empty parts.
func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	msg := e.Message
	if e.Code != "" {
		msg = "[" + string(e.Code) + "] " + msg
	}
	parts = append(parts, msg)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithField attaches a context field and returns the receiver.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus maps the code to a response status; unknown codes are 500.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// StackTrace renders the captured frames, one per line.
func (e *Error) StackTrace() string {
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

// build is the single constructor; skip counts frames above the exported
// caller.
func build(code Code, op, message string, cause error, fields map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     cause,
		Fields:  fields,
		Stack:   captureStack(3),
	}
}

func New(code Code, message string) *Error {
	return build(code, "", message, nil, nil)
}

func Newf(code Code, format string, args ...any) *Error {
	return build(code, "", fmt.Sprintf(format, args...), nil, nil)
}

// Wrap adds operation context to err. The code and fields of an *Error in
// the chain carry over; anything else becomes CodeInternal. Wrap(nil) is nil.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	var fields map[string]any
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
		fields = maps.Clone(e.Fields)
	}
	return build(code, op, message, err, fields)
}

// WrapWithCode wraps err and forces the given code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return build(code, op, message, err, nil)
}

func Internal(message string) *Error {
	return build(CodeInternal, "", message, nil, nil)
}

func NotFound(resource string, id string) *Error {
	return build(CodeNotFound, "", resource+" not found: "+id, nil,
		map[string]any{"resource": resource, "id": id})
}

func Validation(message string) *Error {
	return build(CodeValidation, "", message, nil, nil)
}

func Validationf(format string, args ...any) *Error {
	return build(CodeValidation, "", fmt.Sprintf(format, args...), nil, nil)
}

// ValidationField reports a single invalid request field.
func ValidationField(field string, message string) *Error {
	return build(CodeValidation, "", message, nil, map[string]any{"field": field})
}

func Conflict(message string) *Error {
	return build(CodeConflict, "", message, nil, nil)
}

func Unavailable(service string) *Error {
	return build(CodeUnavailable, "", "service unavailable: "+service, nil,
		map[string]any{"service": service})
}

// Upstream wraps a failure returned by an external AI or media service.
func Upstream(service string, err error) *Error {
	if err == nil {
		return nil
	}
	return build(CodeUpstream, service, service+" request failed", err,
		map[string]any{"service": service})
}

// Stage tags err with the pipeline stage it came from. The original code is
// kept so an upstream failure stays an upstream failure.
func Stage(stage string, err error) *Error {
	if err == nil {
		return nil
	}
	code := GetCode(err)
	if errors.Is(err, context.Canceled) {
		code = CodeCanceled
	}
	return build(code, "pipeline."+stage, stage+" stage failed", err,
		map[string]any{"stage": stage})
}

// GetStage returns the outermost pipeline stage recorded in err, or "".
func GetStage(err error) string {
	var e *Error
	for errors.As(err, &e) {
		if s, ok := e.Fields["stage"].(string); ok {
			return s
		}
		err = e.Err
	}
	return ""
}

func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Fields != nil {
		return e.Fields
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool   { return IsCode(err, CodeNotFound) }
func IsValidation(err error) bool { return IsCode(err, CodeValidation) }
func IsConflict(err error) bool   { return IsCode(err, CodeConflict) }
func IsUpstream(err error) bool   { return IsCode(err, CodeUpstream) }

const maxFrames = 10

func captureStack(skip int) []Frame {
	var pcs [32]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, maxFrames)
	it := runtime.CallersFrames(pcs[:n])
	for len(frames) < maxFrames {
		f, more := it.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			frames = append(frames, Frame{File: f.File, Line: f.Line, Function: f.Function})
		}
		if !more {
			break
		}
	}
	return frames
}

// As is errors.As, so callers importing this package as "errors" need not
// also import the standard one.
func As(err error, target any) bool {
	return errors.As(err, target)
}
