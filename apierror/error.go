// Package apierror defines the error returned by the lab API clients and the
// formatting of errors into messages fit for display to an operator.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is the type of error returned by a network client. It contains an HTTP
// status code so that callers can tell what kind of failure occurred.
type Error struct {
	err    error
	status int
}

// ErrorMessage is the JSON body the lab API sends with an error response.
type ErrorMessage struct {
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// maxPlainText is the longest plain text body used as an error message.
// Longer bodies are usually pages from a proxy in front of the API.
const maxPlainText = 200

// FromResponse creates an error from the status and body of an HTTP response.
// A JSON ErrorMessage body contributes its message. Any other body is used as
// the message only if it is short plain text, so that markup from a proxy is
// never shown to an operator.
func FromResponse(status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	switch {
	case text == "":
	case strings.HasPrefix(text, "{"):
		var em ErrorMessage
		if json.Unmarshal(body, &em) == nil && em.Message != "" {
			err = errors.New(em.Message)
		}
	case plainText(text):
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

func plainText(text string) bool {
	return len(text) <= maxPlainText && !strings.HasPrefix(text, "<") && !strings.ContainsAny(text, "\r\n")
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return ""
	}
	// If there is only status, then return status text
	if text := http.StatusText(e.status); text != "" {
		return fmt.Sprintf("%d %s", e.status, text)
	}
	return fmt.Sprintf("%d", e.status)
}

func (e *Error) Status() int {
	return e.status
}

func (e *Error) Unwrap() error {
	return e.err
}

// HasStatus reports whether err is, or wraps, an *Error with the given status.
func HasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.status == status
}

// Message formats err for display to an operator. Messages sent by the server
// are shown as they are. Otherwise the message is chosen by HTTP status, and
// context errors are reported as a cancelled or timed out request.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Try again."
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.err != nil {
		return apiErr.err.Error()
	}
	switch status := apiErr.status; {
	case status == http.StatusBadRequest:
		return "The request contains invalid data."
	case status == http.StatusUnauthorized:
		return "Your session has expired. Sign in again."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested record was not found."
	case status == http.StatusConflict:
		return "The record conflicts with an existing one."
	case status >= http.StatusInternalServerError:
		return "The server is unavailable. Try again later."
	}
	return apiErr.Error()
}

// EncodeError encodes err as a JSON ErrorMessage. The message is the operator
// message of err, and the status is set if err carries one.
func EncodeError(err error) []byte {
	if err == nil {
		return nil
	}

	e := ErrorMessage{
		Message: Message(err),
	}
	var apierr *Error
	if errors.As(err, &apierr) {
		e.Status = apierr.Status()
	}

	// An ErrorMessage always encodes.
	data, _ := json.Marshal(&e)
	return data
}
