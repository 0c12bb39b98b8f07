package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var errorStatusCodes = map[error]int{
	ErrNotFound:       http.StatusNotFound,
	ErrInvalidInput:   http.StatusBadRequest,
	ErrInternalError:  http.StatusInternalServerError,
	ErrNotImplemented: http.StatusNotImplemented,
	ErrTimeout:        http.StatusGatewayTimeout,
	ErrUnavailable:    http.StatusServiceUnavailable,
	ErrCanceled:       http.StatusRequestTimeout,

	ErrInvalidTranscript: http.StatusBadRequest,
	ErrUnsupportedAudio:  http.StatusUnsupportedMediaType,
	ErrAudioTooLarge:     http.StatusRequestEntityTooLarge,
	ErrAudioProbeFailed:  http.StatusUnprocessableEntity,
	ErrCatalogCorrupt:    http.StatusInternalServerError,
	ErrPublishFailed:     http.StatusBadGateway,
}

var errorCodeStatusMap = map[string]int{
	"NOT_FOUND":          http.StatusNotFound,
	"INVALID_INPUT":      http.StatusBadRequest,
	"INTERNAL_ERROR":     http.StatusInternalServerError,
	"NOT_IMPLEMENTED":    http.StatusNotImplemented,
	"INVALID_TRANSCRIPT": http.StatusBadRequest,
	"UNSUPPORTED_AUDIO":  http.StatusUnsupportedMediaType,
	"AUDIO_TOO_LARGE":    http.StatusRequestEntityTooLarge,
	"AUDIO_PROBE_FAILED": http.StatusUnprocessableEntity,
	"CATALOG_CORRUPT":    http.StatusInternalServerError,
	"PUBLISH_FAILED":     http.StatusBadGateway,
}

// WriteError writes err as a JSON body with a status derived from its sentinel
// or code. Every body carries "success": false.
func WriteError(w http.ResponseWriter, err error) {
	var statusCode int
	var response map[string]interface{}

	var serr *Error
	switch {
	case err == nil:
		statusCode = http.StatusInternalServerError
		response = map[string]interface{}{"error": "Unknown error"}
	case errors.As(err, &serr):
		statusCode = HTTPStatusFromError(serr)
		response = serr.AsJSON()
	default:
		statusCode = HTTPStatusFromError(err)
		response = map[string]interface{}{"error": err.Error()}
	}
	response["success"] = false

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(response)
}

// HTTPStatusFromError walks err's chain looking for a known sentinel, falling
// back to the structured error code and then to 500.
func HTTPStatusFromError(err error) int {
	code := GetErrorCode(err)

	for err != nil {
		if status, ok := errorStatusCodes[err]; ok {
			return status
		}
		unwrapped := errors.Unwrap(err)
		if unwrapped == err {
			break
		}
		err = unwrapped
	}

	if status, ok := errorCodeStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
