package storage

import (
	"context"
	"testing"
	"time"
)

type fakeCredentialsStore struct {
	rows  map[string]*EncryptedCredentials
	calls int
}

func (f *fakeCredentialsStore) Find(ctx context.Context, id string) (*EncryptedCredentials, error) {
	f.calls++
	row, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return row, nil
}

func TestCredentialsResolver_DecryptsAndCaches(t *testing.T) {
	data, iv, err := Encrypt(map[string]string{"apiKey": "sk-1"}, testKey())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	store := &fakeCredentialsStore{rows: map[string]*EncryptedCredentials{
		"c1": {ID: "c1", Data: data, IV: iv},
	}}
	resolver := NewCredentialsResolver(store, testKey(), time.Minute)

	credentials, err := resolver.Resolve(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if credentials["apiKey"] != "sk-1" {
		t.Errorf("apiKey = %q", credentials["apiKey"])
	}

	// Second resolve is served from cache.
	if _, err := resolver.Resolve(context.Background(), "c1"); err != nil {
		t.Fatalf("cached Resolve failed: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("store hit %d times, expected 1", store.calls)
	}
}

func TestCredentialsResolver_MissingRow(t *testing.T) {
	resolver := NewCredentialsResolver(&fakeCredentialsStore{}, testKey(), time.Minute)

	if _, err := resolver.Resolve(context.Background(), "ghost"); err == nil {
		t.Error("expected error for missing credentials row")
	}
}

func TestCredentialsResolver_UndecryptableRow(t *testing.T) {
	data, iv, err := Encrypt(map[string]string{"apiKey": "sk-1"}, testKey())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	store := &fakeCredentialsStore{rows: map[string]*EncryptedCredentials{
		"c1": {ID: "c1", Data: data, IV: iv},
	}}
	wrongKey := make([]byte, 32)
	resolver := NewCredentialsResolver(store, wrongKey, time.Minute)

	if _, err := resolver.Resolve(context.Background(), "c1"); err == nil {
		t.Error("expected error for undecryptable credentials")
	}
}
