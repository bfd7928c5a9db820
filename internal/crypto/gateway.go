// Package crypto wraps the provider-supplied key material behind an opaque
// encrypt/decrypt capability. The gateway is injected into the services that
// need it; there is no package-level state.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrKeyMaterial marks initialization failures (missing or malformed key
// material), as opposed to per-call encrypt/decrypt failures.
var ErrKeyMaterial = errors.New("crypto key material unavailable")

// Gateway is the opaque crypto capability backed by provider key material.
type Gateway interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	ServiceID() string
}

type aesGateway struct {
	aead      cipher.AEAD
	serviceID string
}

// NewAESGateway builds a Gateway from the provider-assigned service ID and a
// base64-encoded AES key (16, 24 or 32 bytes). Errors here mean the gateway
// never initialized and must not be retried per call.
func NewAESGateway(serviceID, base64Key string) (Gateway, error) {
	if serviceID == "" {
		return nil, fmt.Errorf("%w: missing service id", ErrKeyMaterial)
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid base64: %v", ErrKeyMaterial, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	return &aesGateway{aead: aead, serviceID: serviceID}, nil
}

func (g *aesGateway) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := g.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (g *aesGateway) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	if len(raw) < g.aead.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	nonce, sealed := raw[:g.aead.NonceSize()], raw[g.aead.NonceSize():]
	plain, err := g.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt payload: %w", err)
	}

	return string(plain), nil
}

func (g *aesGateway) ServiceID() string {
	return g.serviceID
}
