package store

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/clubsync/internal/cryptox"
)

const (
	saltKey     = "sealed:salt"
	verifierKey = "sealed:verifier"
)

var (
	ErrWrongPassphrase = errors.New("wrong cache passphrase")
	ErrReservedKey     = errors.New("reserved store key")
)

// SealedStore encrypts values before handing them to the wrapped store.
// The key is derived from a passphrase and a salt kept in the wrapped store.
type SealedStore struct {
	inner Store
	key   []byte
}

// NewSealedStore unlocks inner with passphrase, initialising salt and
// verifier on first use.
func NewSealedStore(ctx context.Context, inner Store, passphrase []byte) (*SealedStore, error) {
	salt, err := inner.Read(ctx, saltKey)
	if err != nil {
		return nil, err
	}

	if salt == nil {
		salt, err = cryptox.RandomBytes(16)
		if err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		key := cryptox.DeriveKey(passphrase, salt)
		if err := inner.Write(ctx, saltKey, salt); err != nil {
			return nil, err
		}
		if err := inner.Write(ctx, verifierKey, cryptox.MakeVerifier(key)); err != nil {
			return nil, err
		}
		return &SealedStore{inner: inner, key: key}, nil
	}

	key := cryptox.DeriveKey(passphrase, salt)
	stored, err := inner.Read(ctx, verifierKey)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(stored, cryptox.MakeVerifier(key)) != 1 {
		return nil, ErrWrongPassphrase
	}
	return &SealedStore{inner: inner, key: key}, nil
}

func (s *SealedStore) Read(ctx context.Context, key string) ([]byte, error) {
	if strings.HasPrefix(key, "sealed:") {
		return nil, ErrReservedKey
	}
	sealed, err := s.inner.Read(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return plain, nil
}

func (s *SealedStore) Write(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, "sealed:") {
		return ErrReservedKey
	}
	sealed, err := cryptox.Seal(value, s.key)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Write(ctx, key, sealed)
}
