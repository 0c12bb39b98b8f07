package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Generic sentinels shared by every package.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalError  = errors.New("internal error")
	ErrNotImplemented = errors.New("not implemented")
	ErrTimeout        = errors.New("operation timed out")
	ErrUnavailable    = errors.New("service unavailable")
	ErrCanceled       = errors.New("operation canceled")
)

// Call-analysis sentinels.
var (
	ErrInvalidTranscript = errors.New("invalid transcript")
	ErrUnsupportedAudio  = errors.New("unsupported audio format")
	ErrAudioTooLarge     = errors.New("audio file too large")
	ErrAudioProbeFailed  = errors.New("audio probe failed")
	ErrCatalogCorrupt    = errors.New("intent catalog corrupt")
	ErrPublishFailed     = errors.New("result publish failed")
)

// Error is a structured error carrying a cause, context fields, a code and
// the location it was created at.
type Error struct {
	original error
	message  string
	fields   map[string]interface{}

	stackPC uintptr
	file    string
	line    int

	// Code is an optional machine-readable category, e.g. "INVALID_TRANSCRIPT".
	Code string
}

func build(skip int, original error, message, code string, fields []map[string]interface{}) *Error {
	pc, file, line, _ := runtime.Caller(skip)

	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}

	return &Error{
		original: original,
		message:  message,
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
		Code:     code,
	}
}

// New creates a structured error with the given message.
func New(message string, fields ...map[string]interface{}) *Error {
	return build(2, errors.New(message), message, "", fields)
}

// Wrap attaches a message and optional fields to err. Returns nil for a nil err.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return build(2, err, message, "", fields)
}

func (e *Error) clone(extra int) *Error {
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+extra),
		stackPC:  e.stackPC,
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	return result
}

// WithField returns a copy of e with key set to value.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(1)
	result.fields[key] = value
	return result
}

// WithFields returns a copy of e with all fields merged in.
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(fields))
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode returns a copy of e with the given code.
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(0)
	result.Code = code
	return result
}

func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}
	if e.message == "" || e.message == e.original.Error() {
		return e.original.Error()
	}
	return fmt.Sprintf("%s: %v", e.message, e.original)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Is reports whether target matches e or anything e wraps.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if errors.Is(e.original, target) {
		return true
	}
	return e == target
}

// Location returns file:line of the call that created the error.
func (e *Error) Location() string {
	if e == nil {
		return ""
	}
	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// AsJSON returns the error as a JSON-friendly map.
func (e *Error) AsJSON() map[string]interface{} {
	if e == nil {
		return nil
	}

	result := map[string]interface{}{
		"error":    e.Error(),
		"location": e.Location(),
	}
	if e.Code != "" {
		result["code"] = e.Code
	}
	if len(e.fields) > 0 {
		result["context"] = e.fields
	}
	return result
}

func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	return build(2, ErrInvalidInput, message, "INVALID_INPUT", fields)
}

func NewInternalError(message string, fields ...map[string]interface{}) *Error {
	return build(2, ErrInternalError, message, "INTERNAL_ERROR", fields)
}

// NewInvalidTranscript reports a transcript the caller must fix before resubmitting.
func NewInvalidTranscript(details string, fields ...map[string]interface{}) *Error {
	return build(2, ErrInvalidTranscript, details, "INVALID_TRANSCRIPT", fields)
}

// NewUnsupportedAudio reports an upload whose extension or header is not accepted.
func NewUnsupportedAudio(filename string, fields ...map[string]interface{}) *Error {
	err := build(2, ErrUnsupportedAudio, fmt.Sprintf("unsupported audio file %q", filename), "UNSUPPORTED_AUDIO", fields)
	err.fields["filename"] = filename
	return err
}

// NewAudioTooLarge reports an upload above the configured size limit.
func NewAudioTooLarge(size, limit int64, fields ...map[string]interface{}) *Error {
	err := build(2, ErrAudioTooLarge, fmt.Sprintf("audio file is %d bytes, limit is %d", size, limit), "AUDIO_TOO_LARGE", fields)
	err.fields["size"] = size
	err.fields["limit"] = limit
	return err
}

// NewAudioProbeFailed wraps a failure to read an upload's audio metadata.
func NewAudioProbeFailed(cause error, filename string) *Error {
	err := build(2, ErrAudioProbeFailed, fmt.Sprintf("cannot read audio metadata: %v", cause), "AUDIO_PROBE_FAILED", nil)
	err.fields["filename"] = filename
	return err
}

// NewPublishFailed wraps a failure to hand a result to a downstream consumer.
func NewPublishFailed(cause error, target string) *Error {
	err := build(2, ErrPublishFailed, fmt.Sprintf("publish to %s failed: %v", target, cause), "PUBLISH_FAILED", nil)
	err.fields["target"] = target
	return err
}

// NewCatalogCorrupt reports an intent catalog that cannot be loaded.
func NewCatalogCorrupt(details string, fields ...map[string]interface{}) *Error {
	return build(2, ErrCatalogCorrupt, details, "CATALOG_CORRUPT", fields)
}

// IsErrorType reports whether err matches target.
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode returns the code of the first structured error in err's chain.
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}

func GetErrorLocation(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Location()
	}
	return ""
}
