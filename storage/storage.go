package storage

import (
	"context"
	"errors"
	"time"

	"github.com/convoflow/convoflow/engine"
)

// ErrNotFound is returned when a session or credentials row does not exist.
var ErrNotFound = errors.New("not found")

// Session is one persisted conversation: an opaque id plus the full
// engine state document.
type Session struct {
	ID        string              `json:"id"`
	State     engine.SessionState `json:"state"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// EncryptedCredentials is one stored credentials row: ciphertext plus the
// initialization vector used to seal it, both base64-encoded.
type EncryptedCredentials struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	IV   string `json:"iv"`
}

// SessionStore persists session state documents. One session is owned by a
// single request at a time; the store itself does no locking.
type SessionStore interface {
	Find(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}

// CredentialsStore fetches encrypted credentials rows.
type CredentialsStore interface {
	Find(ctx context.Context, id string) (*EncryptedCredentials, error)
}
