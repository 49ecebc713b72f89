package model

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"group_chat/internal/cryptographic/kdf"
	"group_chat/internal/cryptographic/signature"
)

type (
	// Keys holds the local identity: an ed25519 signing key pair and an
	// x25519 encryption key pair, both derived from one 32-byte seed.
	// The public identifier of a party is the hex of the signing public key.
	Keys struct {
		signPriv ed25519.PrivateKey
		signPub  ed25519.PublicKey
		encPriv  [32]byte
		encPub   [32]byte
	}
)

func NewKeys(seed [32]byte) (*Keys, error) {
	signPriv := ed25519.NewKeyFromSeed(seed[:])
	k := &Keys{
		signPriv: signPriv,
		signPub:  signPriv.Public().(ed25519.PublicKey),
	}

	// encryption key is derived, not stored, so one env secret covers both
	encPriv, err := kdf.Derive(seed[:], nil, []byte("EncryptionKey"), 32)
	if err != nil {
		return nil, err
	}
	copy(k.encPriv[:], encPriv)
	curve25519.ScalarBaseMult(&k.encPub, &k.encPriv)

	return k, nil
}

// ParseKeys loads keys from a 64-character hex seed, as supplied via the
// PRIVATE_KEY environment variable.
func ParseKeys(privateKeyHex string) (*Keys, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	return NewKeys([32]byte(raw))
}

func GenerateKeys() (*Keys, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return NewKeys(seed)
}

func (k *Keys) PublicKey() string {
	return hex.EncodeToString(k.signPub)
}

func (k *Keys) Sign(message []byte) []byte {
	return signature.Sign(k.signPriv, message)
}

func (k *Keys) EncryptionPublicKey() [32]byte {
	return k.encPub
}

func (k *Keys) EncryptionPrivateKey() [32]byte {
	return k.encPriv
}
