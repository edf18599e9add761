package storage

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/convoflow/convoflow/forge"
)

// CredentialsResolver fetches, decrypts and caches credentials. Decrypted
// secrets are cross-session read-only state, so a short TTL cache is safe
// and saves a fetch+decrypt per action run.
type CredentialsResolver struct {
	store CredentialsStore
	key   []byte
	cache *gocache.Cache
}

func NewCredentialsResolver(store CredentialsStore, key []byte, ttl time.Duration) *CredentialsResolver {
	return &CredentialsResolver{
		store: store,
		key:   key,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CredentialsResolver) Resolve(ctx context.Context, credentialsID string) (forge.Credentials, error) {
	if cached, ok := r.cache.Get(credentialsID); ok {
		return cached.(forge.Credentials), nil
	}

	row, err := r.store.Find(ctx, credentialsID)
	if err != nil {
		return nil, fmt.Errorf("error fetching credentials %s: %w", credentialsID, err)
	}
	secrets, err := Decrypt(row.Data, row.IV, r.key)
	if err != nil {
		return nil, fmt.Errorf("error decrypting credentials %s: %w", credentialsID, err)
	}

	credentials := forge.Credentials(secrets)
	r.cache.SetDefault(credentialsID, credentials)
	return credentials, nil
}
