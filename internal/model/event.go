package model

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"group_chat/internal/cryptographic/signature"
)

// Event kinds understood by this system.
const (
	KindProfileMetadata     = 0
	KindChat                = 1
	KindKeyPackage          = 443
	KindWelcome             = 444
	KindGroupMessage        = 445
	KindGiftWrap            = 1059
	KindRelayList           = 10002
	KindInboxRelayList      = 10050
	KindKeyPackageRelayList = 10051
)

// Well-known tag names.
const (
	TagEventRef      = "e"
	TagRecipient     = "p"
	TagGroupRef      = "h"
	TagRelay         = "relay"
	TagRelays        = "relays"
	TagEncryptionKey = "encryption-key"
	TagInitKey       = "init-key"
	TagExpiration    = "expiration"
	TagClient        = "client"
)

type (
	Tag  []string
	Tags []Tag

	// UnsignedEvent is the rumor form: everything but the signature.
	// Welcome artifacts travel unsigned inside gift wraps.
	UnsignedEvent struct {
		ID        string `json:"id"`
		PubKey    string `json:"pubkey"`
		CreatedAt int64  `json:"created_at"`
		Kind      int    `json:"kind"`
		Tags      Tags   `json:"tags"`
		Content   string `json:"content"`
	}

	Event struct {
		UnsignedEvent
		Sig string `json:"sig"`
	}
)

func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

func (ts Tags) First(name string) (Tag, bool) {
	for _, t := range ts {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Value returns the first value of the first tag with the given name,
// or "" if absent.
func (ts Tags) Value(name string) string {
	t, ok := ts.First(name)
	if !ok {
		return ""
	}
	return t.Value()
}

// Expiration returns the parsed expiration tag, if any.
func (ts Tags) Expiration() (time.Time, bool) {
	v := ts.Value(TagExpiration)
	if v == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

func ExpirationTag(t time.Time) Tag {
	return Tag{TagExpiration, strconv.FormatInt(t.Unix(), 10)}
}

func RelaysTag(relays []string) Tag {
	return append(Tag{TagRelays}, relays...)
}

// ComputeID hashes the canonical serialization [0, pubkey, created_at,
// kind, tags, content] and returns the hex digest.
func (e *UnsignedEvent) ComputeID() (string, error) {
	tags := e.Tags
	if tags == nil {
		tags = Tags{}
	}
	ser, err := json.Marshal([]any{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content})
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}
	sum := sha256.Sum256(ser)
	return hex.EncodeToString(sum[:]), nil
}

// Finalize stamps CreatedAt (if unset) and the content-derived ID.
func (e *UnsignedEvent) Finalize() error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	id, err := e.ComputeID()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Sign finalizes the event on behalf of keys and signs its ID.
func (e *UnsignedEvent) Sign(keys *Keys) (*Event, error) {
	e.PubKey = keys.PublicKey()
	if err := e.Finalize(); err != nil {
		return nil, err
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return nil, fmt.Errorf("decode event id: %w", err)
	}

	return &Event{
		UnsignedEvent: *e,
		Sig:           hex.EncodeToString(keys.Sign(idBytes)),
	}, nil
}

// Verify checks the ID against the event content and the signature
// against the author key.
func (e *Event) Verify() error {
	id, err := e.ComputeID()
	if err != nil {
		return err
	}
	if id != e.ID {
		return errors.New("event id does not match content")
	}

	pub, err := hex.DecodeString(e.PubKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return errors.New("malformed author key")
	}
	sig, err := hex.DecodeString(e.Sig)
	if err != nil {
		return errors.New("malformed signature")
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return errors.New("malformed event id")
	}

	if !signature.Verify(pub, idBytes, sig) {
		return errors.New("invalid event signature")
	}
	return nil
}

func (e *UnsignedEvent) JSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

func (e *Event) JSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

func ParseUnsignedEvent(data string) (*UnsignedEvent, error) {
	var e UnsignedEvent
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}

func ParseEvent(data string) (*Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
