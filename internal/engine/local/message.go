package local

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"group_chat/internal/cryptographic/encryption"
	"group_chat/internal/cryptographic/kdf"
	"group_chat/internal/engine"
	"group_chat/internal/model"
)

// CreateMessage encrypts content under the group's current epoch key
// and returns a signed, publishable kind-445 event.
func (e *Engine) CreateMessage(ctx context.Context, groupID, sender, content string, kind int) (string, error) {
	if sender != e.keys.PublicKey() {
		return "", engine.ErrWrongIdentity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.st.Groups[groupID]
	if !ok {
		return "", engine.ErrUnknownGroup
	}

	inner := model.UnsignedEvent{
		PubKey:    sender,
		CreatedAt: time.Now().Unix(),
		Kind:      kind,
		Tags: model.Tags{
			model.Tag{model.TagGroupRef, g.WireGroupID},
		},
		Content: content,
	}
	if err := inner.Finalize(); err != nil {
		return "", err
	}
	plain, err := inner.JSON()
	if err != nil {
		return "", err
	}

	key, err := messageKey(g.Secret)
	if err != nil {
		return "", err
	}
	ct, err := encryption.Encrypt(key, []byte(plain), []byte(g.WireGroupID))
	if err != nil {
		return "", fmt.Errorf("encrypt group message: %w", err)
	}

	outer := model.UnsignedEvent{
		CreatedAt: time.Now().Unix(),
		Kind:      model.KindGroupMessage,
		Tags: model.Tags{
			model.Tag{model.TagGroupRef, g.WireGroupID},
		},
		Content: base64.StdEncoding.EncodeToString(ct),
	}
	ev, err := outer.Sign(e.keys)
	if err != nil {
		return "", err
	}
	return ev.JSON()
}

// ProcessMessage decrypts a received kind-445 event for any locally
// known group matching its wire group ID.
func (e *Engine) ProcessMessage(ctx context.Context, eventJSON string) (*engine.DecryptedMessage, error) {
	ev, err := model.ParseEvent(eventJSON)
	if err != nil {
		return nil, err
	}
	if ev.Kind != model.KindGroupMessage {
		return nil, fmt.Errorf("expected kind %d event, got %d", model.KindGroupMessage, ev.Kind)
	}
	if err := ev.Verify(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wireID := ev.Tags.Value(model.TagGroupRef)
	g := e.groupByWireID(wireID)
	if g == nil {
		return nil, engine.ErrUnknownGroup
	}

	ct, err := base64.StdEncoding.DecodeString(ev.Content)
	if err != nil {
		return nil, fmt.Errorf("decode message payload: %w", err)
	}

	key, err := messageKey(g.Secret)
	if err != nil {
		return nil, err
	}
	plain, err := encryption.Decrypt(key, ct, []byte(g.WireGroupID))
	if err != nil {
		return nil, fmt.Errorf("decrypt group message: %w", err)
	}

	inner, err := model.ParseUnsignedEvent(string(plain))
	if err != nil {
		return nil, err
	}

	return &engine.DecryptedMessage{
		MLSGroupID: g.MLSGroupID,
		Sender:     inner.PubKey,
		Content:    inner.Content,
		Kind:       inner.Kind,
		CreatedAt:  inner.CreatedAt,
	}, nil
}

// groupByWireID must be called with e.mu held.
func (e *Engine) groupByWireID(wireID string) *groupState {
	if wireID == "" {
		return nil
	}
	for _, g := range e.st.Groups {
		if g.WireGroupID == wireID {
			return g
		}
	}
	return nil
}

// messageKey derives from the group secret alone. The epoch is group
// metadata here: bumping it on membership changes must not lock out
// members who joined earlier, since nothing redistributes key material
// to them.
func messageKey(secretHex string) ([]byte, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("malformed group secret")
	}
	return kdf.Derive(secret, nil, []byte("GroupMessage"), 32)
}
