// Package httpjson writes and reads the JSON bodies of the API. It keeps
// the API's {"error","code"} envelope on top of waffle's httputil.
package httpjson

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/waffle/httputil"
	"go.uber.org/zap"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// ErrBadRequest is returned by Decode for malformed or oversized bodies.
var ErrBadRequest = errors.New("invalid JSON body")

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type zapJSONLogger struct {
	log *zap.Logger
}

func (l zapJSONLogger) Error(msg string, args ...any) {
	l.log.Error(msg, zap.Any("args", args))
}

// SetLogger routes encode failures (which happen after the status line is
// sent and cannot reach the client) to logger.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	httputil.SetJSONLogger(zapJSONLogger{log: logger})
}

// Write sends v as JSON with the given status. A nil v sends headers only.
func Write(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}
	httputil.WriteJSON(w, status, v)
}

// OK sends v with 200.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Error sends {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorBody{Error: msg})
}

// ErrorCode sends {"error": msg, "code": code}. Codes are stable strings
// clients can switch on, such as "feed_unavailable".
func ErrorCode(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, ErrorBody{Error: msg, Code: code})
}

// Decode reads a JSON object from r's body into v. Unknown fields are
// ignored. Trailing data after the object is an error.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	}
	if err := httputil.BindJSONAllowUnknown(r, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
