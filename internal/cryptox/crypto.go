// Package cryptox seals user-supplied model API keys before they reach the
// database. AES-GCM with a key derived from the vault secret via argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

type Vault struct {
	key []byte
}

// NewVault derives a 256-bit sealing key from the configured secret. The salt
// is fixed per deployment so previously sealed keys stay readable.
func NewVault(secret, salt string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("cryptox: VAULT_SECRET is required")
	}
	key := argon2.IDKey([]byte(secret), []byte(salt), 1, 64*1024, 4, 32)
	return &Vault{key: key}, nil
}

func (v *Vault) Seal(plaintext string) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, []byte(plaintext), nil), nonce, nil
}

func (v *Vault) Open(ciphertext, nonce []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("cryptox: open sealed key: %w", err)
	}
	return string(plaintext), nil
}
