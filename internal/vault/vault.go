package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Ciphertext layout: version byte | nonce | AEAD-sealed payload. The salt is
// fixed and versioned together with the ciphertext header; bumping either
// invalidates old ciphertexts with ErrInvalidCiphertext, never silently.
const ciphertextVersion byte = 1

var kdfSalt = []byte("rconbridge.vault.v1")

const kdfIterations = 100_000

// ErrInvalidCiphertext means integrity verification failed: wrong key,
// corrupted data, or a version mismatch. It signals key rotation or
// tampering and must never be treated as "no password".
var ErrInvalidCiphertext = errors.New("vault: invalid ciphertext")

// Vault reversibly protects RCON passwords at rest with a key derived once
// from a passphrase.
type Vault struct {
	aead cipher.AEAD
}

// New derives the key and runs a round-trip self-check before returning.
// An empty passphrase yields a fresh random key that lives only for this
// process; credentials encrypted under it are unrecoverable after restart,
// so production deployments must configure a passphrase.
func New(passphrase string) (*Vault, error) {
	var key []byte
	if passphrase == "" {
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("vault: generate key: %w", err)
		}
	} else {
		key = pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, chacha20poly1305.KeySize, sha256.New)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	v := &Vault{aead: aead}

	if err := v.selfCheck(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) selfCheck() error {
	const probe = "vault-self-check"
	sealed, err := v.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("vault: self-check encrypt: %w", err)
	}
	opened, err := v.Decrypt(sealed)
	if err != nil {
		return fmt.Errorf("vault: self-check decrypt: %w", err)
	}
	if opened != probe {
		return errors.New("vault: self-check round trip mismatch")
	}
	return nil
}

func (v *Vault) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+v.aead.Overhead())
	out = append(out, ciphertextVersion)
	out = append(out, nonce...)
	return v.aead.Seal(out, nonce, []byte(plaintext), nil), nil
}

func (v *Vault) Decrypt(ciphertext []byte) (string, error) {
	minLen := 1 + v.aead.NonceSize() + v.aead.Overhead()
	if len(ciphertext) < minLen || ciphertext[0] != ciphertextVersion {
		return "", ErrInvalidCiphertext
	}

	nonce := ciphertext[1 : 1+v.aead.NonceSize()]
	sealed := ciphertext[1+v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
