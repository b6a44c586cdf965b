// Package cryptox implements the at-rest sealing used by the sealed cache
// store: Argon2id key derivation and AES-GCM authenticated encryption.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

// ErrCiphertextTooShort is returned by Open for inputs shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey stretches a passphrase into a KeySize key using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a digest of key that can be stored to check a
// passphrase without storing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(append([]byte("clubsync-verifier:"), key...))
	return hash[:]
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Seal encrypts plaintext with AES-GCM. The output is nonce || ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(aesgcm.NonceSize())
	if err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	n := aesgcm.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	return aesgcm.Open(nil, sealed[:n], sealed[n:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
