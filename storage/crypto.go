package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Decrypt opens an AES-256-GCM sealed credentials blob. Data and iv are
// base64-encoded; the iv is the GCM nonce. The plaintext is a JSON object
// of secret fields, e.g. {"apiKey": "..."}.
func Decrypt(data, iv string, key []byte) (map[string]string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding credentials data: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("error decoding credentials iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("error creating GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("error decrypting credentials: %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("error unmarshalling credentials: %w", err)
	}
	return secrets, nil
}

// Encrypt seals a secret map with AES-256-GCM and a fresh nonce. Used when
// saving credentials and by tests.
func Encrypt(secrets map[string]string, key []byte) (data, iv string, err error) {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return "", "", fmt.Errorf("error marshalling credentials: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", fmt.Errorf("error creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", fmt.Errorf("error creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("error generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		nil
}
