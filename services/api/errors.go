package apisvc

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrSessionExpired is returned when no usable credential could be obtained.
	ErrSessionExpired = errors.New("session expired, please log in again")

	genericErrorText = "request failed"
)

// RequestError is a non-2xx response other than a recovered 401.
type RequestError struct {
	Status  int
	Message string
	Body    string
}

func (err *RequestError) Error() string {
	return err.Message
}

// IsStatus reports whether the cause of err is a *RequestError with the given status.
func IsStatus(err error, status int) bool {
	rErr, ok := errors.Cause(err).(*RequestError)
	return ok && rErr.Status == status
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func newRequestError(status int, body []byte) *RequestError {
	return &RequestError{
		Status:  status,
		Message: errorMessage(body),
		Body:    string(body),
	}
}

// errorMessage prefers the `detail` or `message` fields of a JSON error payload,
// then the raw body, then a generic text.
func errorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return genericErrorText
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message"} {
			if msg, ok := payload[key].(string); ok && strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	return text
}
