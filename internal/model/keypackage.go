package model

import (
	"encoding/hex"
	"fmt"
)

type (
	// KeyPackage is a fetched admission ticket: a signed kind-443 event
	// published by a prospective member. The event ID doubles as the
	// ticket identifier that welcome artifacts reference.
	KeyPackage struct {
		Event Event
	}
)

func NewKeyPackage(ev Event) (*KeyPackage, error) {
	if ev.Kind != KindKeyPackage {
		return nil, fmt.Errorf("expected kind %d event, got %d", KindKeyPackage, ev.Kind)
	}
	if err := ev.Verify(); err != nil {
		return nil, fmt.Errorf("key package verification: %w", err)
	}
	return &KeyPackage{Event: ev}, nil
}

// TicketID is the identifier welcome artifacts use to reference this
// admission ticket.
func (kp *KeyPackage) TicketID() string {
	return kp.Event.ID
}

// Owner is the identifier of the party that published the ticket.
func (kp *KeyPackage) Owner() string {
	return kp.Event.PubKey
}

func (kp *KeyPackage) Relays() []string {
	t, ok := kp.Event.Tags.First(TagRelays)
	if !ok || len(t) < 2 {
		return nil
	}
	return t[1:]
}

// EncryptionKey returns the owner's advertised x25519 public key, used
// to wrap confidential payloads for them.
func (kp *KeyPackage) EncryptionKey() ([32]byte, error) {
	var key [32]byte
	v := kp.Event.Tags.Value(TagEncryptionKey)
	raw, err := hex.DecodeString(v)
	if err != nil || len(raw) != 32 {
		return key, fmt.Errorf("key package %s has no usable encryption key", kp.TicketID())
	}
	copy(key[:], raw)
	return key, nil
}

func (kp *KeyPackage) JSON() (string, error) {
	return kp.Event.JSON()
}
