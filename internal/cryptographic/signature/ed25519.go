package signature

import "crypto/ed25519"

// Sign signs message with an ed25519 private key. Events sign the raw
// bytes of their content-derived ID.
func Sign(priv, message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv), message)
}

// Verify reports whether sig is a valid signature of message under pub.
func Verify(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
