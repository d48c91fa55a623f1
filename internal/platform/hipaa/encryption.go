package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

const (
	ivSize  = 12
	tagSize = 16
)

// Sealer provides AES-256-GCM encryption for sensitive blobs at rest. Sealed
// values are base64(iv || tag || ciphertext).
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer with the given 32-byte AES-256 key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("sealer: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("sealer: create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// NewSealerFromBase64 decodes a standard base64 key.
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("sealer: decode key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext under a fresh random IV.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("seal: generate iv: %w", err)
	}

	// GCM appends the tag to the ciphertext; move it in front.
	sealed := s.aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. A modified blob or a different key fails
// authentication.
func (s *Sealer) Open(blob string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("open: base64 decode: %w", err)
	}
	if len(data) < ivSize+tagSize {
		return nil, fmt.Errorf("open: ciphertext too short")
	}

	iv, tag, ct := data[:ivSize], data[ivSize:ivSize+tagSize], data[ivSize+tagSize:]
	joined := make([]byte, 0, len(ct)+tagSize)
	joined = append(joined, ct...)
	joined = append(joined, tag...)

	plaintext, err := s.aead.Open(nil, iv, joined, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return plaintext, nil
}

// EncryptJSON marshals v and seals the result.
func (s *Sealer) EncryptJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encrypt json: %w", err)
	}
	return s.Seal(b)
}

// DecryptJSON opens blob and unmarshals it into out.
func (s *Sealer) DecryptJSON(blob string, out interface{}) error {
	b, err := s.Open(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decrypt json: %w", err)
	}
	return nil
}
