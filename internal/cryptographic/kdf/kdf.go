package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Derive expands secret into size bytes of key material with HKDF-SHA256.
// Callers keep derivations apart via distinct info strings: the identity
// seed, sealed payloads and per-epoch message keys all share this one
// entry point.
func Derive(secret, salt, info []byte, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}
