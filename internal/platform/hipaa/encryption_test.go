package hipaa

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewSealer(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		s, err := NewSealer(generateTestKey(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s == nil {
			t.Fatal("expected non-nil sealer")
		}
	})

	t.Run("key too short", func(t *testing.T) {
		if _, err := NewSealer(make([]byte, 16)); err == nil {
			t.Fatal("expected error for 16-byte key")
		}
	})

	t.Run("key too long", func(t *testing.T) {
		if _, err := NewSealer(make([]byte, 64)); err == nil {
			t.Fatal("expected error for 64-byte key")
		}
	})

	t.Run("base64 key", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(generateTestKey(t))
		if _, err := NewSealerFromBase64(encoded); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSealerFromBase64("not base64!"); err == nil {
			t.Fatal("expected error for invalid base64")
		}
	})
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(generateTestKey(t))
	if err != nil {
		t.Fatalf("create sealer: %v", err)
	}

	cases := []string{
		"",
		"John Doe",
		`{"accessToken":"abc"}`,
		"\x00\x01\x02binary data\xff\xfe",
	}
	for _, plaintext := range cases {
		t.Run(plaintext, func(t *testing.T) {
			blob, err := s.Seal([]byte(plaintext))
			if err != nil {
				t.Fatalf("seal: %v", err)
			}
			got, err := s.Open(blob)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if string(got) != plaintext {
				t.Errorf("expected %q, got %q", plaintext, got)
			}
		})
	}
}

func TestSeal_Layout(t *testing.T) {
	key := generateTestKey(t)
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("create sealer: %v", err)
	}
	plaintext := []byte("layout check")
	blob, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data) != 12+16+len(plaintext) {
		t.Fatalf("expected %d bytes, got %d", 12+16+len(plaintext), len(data))
	}

	// Rebuild the standard GCM form and open it independently.
	block, _ := aes.NewCipher(key)
	aead, _ := cipher.NewGCM(block)
	iv, tag, ct := data[:12], data[12:28], data[28:]
	got, err := aead.Open(nil, iv, append(append([]byte{}, ct...), tag...), nil)
	if err != nil {
		t.Fatalf("independent open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, got)
	}
}

func TestSeal_FreshIV(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if a == b {
		t.Error("expected different blobs for repeated seals")
	}
}

func TestOpen_Tampered(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	blob, _ := s.Seal([]byte("sensitive"))
	data, _ := base64.StdEncoding.DecodeString(blob)

	for _, i := range []int{0, 12, len(data) - 1} {
		mod := append([]byte{}, data...)
		mod[i] ^= 0xff
		if _, err := s.Open(base64.StdEncoding.EncodeToString(mod)); err == nil {
			t.Errorf("expected error after flipping byte %d", i)
		}
	}
	if _, err := s.Open(base64.StdEncoding.EncodeToString(data[:20])); err == nil {
		t.Error("expected error for short blob")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	a, _ := NewSealer(generateTestKey(t))
	b, _ := NewSealer(generateTestKey(t))
	blob, _ := a.Seal([]byte("sensitive"))
	if _, err := b.Open(blob); err == nil {
		t.Error("expected error opening with a different key")
	}
}

func TestEncryptDecryptJSON(t *testing.T) {
	s, _ := NewSealer(generateTestKey(t))
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	blob, err := s.EncryptJSON(payload{Name: "x", Count: 3})
	if err != nil {
		t.Fatalf("EncryptJSON: %v", err)
	}
	var got payload
	if err := s.DecryptJSON(blob, &got); err != nil {
		t.Fatalf("DecryptJSON: %v", err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Errorf("unexpected payload %+v", got)
	}
}
