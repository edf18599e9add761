package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix     = "session:"
	credentialsKeyPrefix = "credentials:"
)

// RedisSessionStore keeps session state documents in Redis with a TTL so
// abandoned conversations expire on their own.
type RedisSessionStore struct {
	client *redis.Client
	codec  EncoderDecoder[Session]
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		codec:  JSONCodec[Session]{},
		ttl:    ttl,
	}
}

func (s *RedisSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching session %s: %w", id, err)
	}
	session, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding session %s: %w", id, err)
	}
	return session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := s.codec.Encode(*session)
	if err != nil {
		return fmt.Errorf("error encoding session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("error saving session %s: %w", session.ID, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("error deleting session %s: %w", id, err)
	}
	return nil
}

// RedisCredentialsStore reads encrypted credentials rows. Credentials are
// read-only during session processing and shared across sessions.
type RedisCredentialsStore struct {
	client *redis.Client
	codec  EncoderDecoder[EncryptedCredentials]
}

func NewRedisCredentialsStore(client *redis.Client) *RedisCredentialsStore {
	return &RedisCredentialsStore{
		client: client,
		codec:  JSONCodec[EncryptedCredentials]{},
	}
}

func (s *RedisCredentialsStore) Find(ctx context.Context, id string) (*EncryptedCredentials, error) {
	data, err := s.client.Get(ctx, credentialsKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching credentials %s: %w", id, err)
	}
	credentials, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding credentials %s: %w", id, err)
	}
	return credentials, nil
}

var (
	_ SessionStore     = (*RedisSessionStore)(nil)
	_ CredentialsStore = (*RedisCredentialsStore)(nil)
)
