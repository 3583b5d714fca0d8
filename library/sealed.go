package library

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errUnseal = errors.New("session value cannot be opened with this key")

// SealedStore encrypts values with NaCl secretbox before handing them to the
// wrapped Store. The key is derived from a passphrase with BLAKE2b-256.
type SealedStore struct {
	Store
	key [32]byte
}

// NewSealedStore wraps inner so that values are unreadable without passphrase.
func NewSealedStore(inner Store, passphrase string) *SealedStore {
	return &SealedStore{Store: inner, key: blake2b.Sum256([]byte(passphrase))}
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("seal nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.Store.Set(ctx, key, base64.RawStdEncoding.EncodeToString(box))
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.Store.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	box, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil || len(box) < nonceSize {
		return "", false, errUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", false, errUnseal
	}
	return string(plain), true, nil
}

func errUnsealed(err error) bool { return errors.Is(err, errUnseal) }
