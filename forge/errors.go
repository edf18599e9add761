package forge

import "fmt"

// ProviderError is a structured error returned by an upstream provider,
// carried through so the HTTP boundary can answer with a matching status
// and a {name, status, message} body.
type ProviderError struct {
	Name    string `json:"name"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Status, e.Message)
}
