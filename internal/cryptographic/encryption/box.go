package encryption

import (
	"fmt"

	"golang.org/x/crypto/curve25519"

	"group_chat/internal/cryptographic/dh"
	"group_chat/internal/cryptographic/kdf"
)

// Seal encrypts plaintext to an X25519 public key using an ephemeral
// key pair: output is ephemeralPub || nonce || ciphertext. Used for
// gift wraps and for sealing welcome payloads to a ticket's init key.
func Seal(recipientPub [32]byte, plaintext, aad []byte) ([]byte, error) {
	ephPriv, ephPub, err := dh.NewKeyPair()
	if err != nil {
		return nil, err
	}

	key, err := sealKey(ephPriv, recipientPub, ephPub, recipientPub)
	if err != nil {
		return nil, err
	}

	ct, err := Encrypt(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return append(ephPub[:], ct...), nil
}

// Open decrypts a Seal output with the recipient's private key.
func Open(recipientPriv [32]byte, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < 32 {
		return nil, fmt.Errorf("sealed payload too short")
	}
	var ephPub, recipientPub [32]byte
	copy(ephPub[:], sealed[:32])
	recipientPub = publicOf(recipientPriv)

	key, err := sealKey(recipientPriv, ephPub, ephPub, recipientPub)
	if err != nil {
		return nil, err
	}
	return Decrypt(key, sealed[32:], aad)
}

// sealKey derives the symmetric key from the ECDH secret, bound to both
// public keys so sender and recipient derive identically.
func sealKey(priv, pub, ephPub, recipientPub [32]byte) ([]byte, error) {
	shared, err := dh.SharedSecret(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("X25519 during seal: %w", err)
	}

	salt := append(append([]byte{}, ephPub[:]...), recipientPub[:]...)
	return kdf.Derive(shared, salt, []byte("SealedBox"), 32)
}

func publicOf(priv [32]byte) [32]byte {
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub
}
