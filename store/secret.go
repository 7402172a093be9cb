package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// The completion credential never sits in the database as plaintext: it is
// sealed with a locally generated secretbox key stored in its own row. This
// protects against casual file reads, not against an attacker with full
// access to the same file; same trade-off a browser's local storage makes.
const (
	keySealKey    = "sealKey"
	keyCredential = "credential"
)

// ErrNoCredential means no sealed credential is stored.
var ErrNoCredential = errors.New("store: no credential")

// SealCredential encrypts and stores the credential.
func (s *Store) SealCredential(ctx context.Context, credential string) error {
	key, err := s.sealKey(ctx)
	if err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("store: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(credential), &nonce, key)
	return s.Set(ctx, keyCredential, base64.StdEncoding.EncodeToString(sealed))
}

// OpenCredential decrypts and returns the stored credential.
func (s *Store) OpenCredential(ctx context.Context) (string, error) {
	raw, ok, err := s.Get(ctx, keyCredential)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoCredential
	}
	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(sealed) < 24 {
		return "", fmt.Errorf("store: corrupt credential")
	}
	key, err := s.sealKey(ctx)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return "", fmt.Errorf("store: credential unseal failed")
	}
	return string(plain), nil
}

// RemoveCredential deletes the sealed credential.
func (s *Store) RemoveCredential(ctx context.Context) error {
	return s.Remove(ctx, keyCredential)
}

// sealKey loads the local sealing key, generating it on first use.
func (s *Store) sealKey(ctx context.Context) (*[32]byte, error) {
	raw, ok, err := s.Get(ctx, keySealKey)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	if ok {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("store: corrupt seal key")
		}
		copy(key[:], decoded)
		return &key, nil
	}
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("store: generate seal key: %w", err)
	}
	if err := s.Set(ctx, keySealKey, base64.StdEncoding.EncodeToString(key[:])); err != nil {
		return nil, err
	}
	return &key, nil
}
