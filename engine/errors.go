package engine

import "net/http"

// ClientError reports a recoverable client-state problem: a missing
// session, an unknown block, an action without the requested capability.
// It surfaces as a 4xx structured response and is never retried.
type ClientError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *ClientError) Error() string {
	return e.Message
}

func NewClientError(message string) *ClientError {
	return &ClientError{Status: http.StatusBadRequest, Message: message}
}
