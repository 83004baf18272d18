package api

import (
	"errors"
	"fmt"
)

var (
	ErrModelRequired  = errors.New("model is required")
	ErrPromptRequired = errors.New("prompt is required")

	// ErrMissingResponse is returned when a successful reply carries no
	// "response" field.
	ErrMissingResponse = errors.New(`response body has no "response" field`)

	// ErrConnection wraps transport failures such as a refused connection.
	ErrConnection = errors.New("could not connect to ollama server")

	// ErrTimeout is returned when the request outlives the client timeout.
	ErrTimeout = errors.New("request timed out")
)

// StatusError is an error with an HTTP status code and message,
// it is parsed on the client-side and not returned from the API
type StatusError struct {
	StatusCode   int    `json:"-"` // e.g. 200
	Status       string `json:"-"` // e.g. "200 OK"
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the ollama server logs for details"
	}
}

// connectionError keeps the transport error reachable through errors.Is/As
// while matching ErrConnection.
type connectionError struct {
	host string
	err  error
}

func (e *connectionError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrConnection, e.host, e.err)
}

func (e *connectionError) Is(target error) bool {
	return target == ErrConnection
}

func (e *connectionError) Unwrap() error {
	return e.err
}
