package local

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"group_chat/internal/cryptographic/encryption"
	"group_chat/internal/engine"
	"group_chat/internal/model"
)

// welcomeRumors produces one unsigned welcome artifact per ticket. Each
// rumor carries the ticket ID in its "e" tag (the reference dispatchers
// match on) and the group info sealed to the ticket's init key. Must be
// called with e.mu held.
func (e *Engine) welcomeRumors(g *groupState, tickets []*model.KeyPackage) ([]string, error) {
	info, err := json.Marshal(g.info())
	if err != nil {
		return nil, fmt.Errorf("marshal group info: %w", err)
	}

	rumors := make([]string, 0, len(tickets))
	for _, kp := range tickets {
		initPub, err := parseInitKey(kp.Event.Content)
		if err != nil {
			return nil, fmt.Errorf("ticket %s: %w", kp.TicketID(), err)
		}

		sealed, err := encryption.Seal(initPub, info, []byte(kp.TicketID()))
		if err != nil {
			return nil, fmt.Errorf("seal welcome for %s: %w", kp.Owner(), err)
		}

		rumor := model.UnsignedEvent{
			PubKey:    e.keys.PublicKey(),
			CreatedAt: time.Now().Unix(),
			Kind:      model.KindWelcome,
			Tags: model.Tags{
				model.Tag{model.TagEventRef, kp.TicketID()},
				model.Tag{model.TagInitKey, kp.Event.Content},
				model.RelaysTag(g.Relays),
			},
			Content: base64.StdEncoding.EncodeToString(sealed),
		}
		if err := rumor.Finalize(); err != nil {
			return nil, err
		}

		raw, err := rumor.JSON()
		if err != nil {
			return nil, err
		}
		rumors = append(rumors, raw)
	}
	return rumors, nil
}

// ProcessWelcome unseals a received welcome rumor with the matching
// local init key and records it as a pending welcome. Receiving the
// same rumor again (e.g. from a second relay) is a no-op.
func (e *Engine) ProcessWelcome(ctx context.Context, wrapperEventID, rumorJSON string) error {
	rumor, err := model.ParseUnsignedEvent(rumorJSON)
	if err != nil {
		return err
	}
	if rumor.Kind != model.KindWelcome {
		return fmt.Errorf("expected kind %d rumor, got %d", model.KindWelcome, rumor.Kind)
	}
	if rumor.ID == "" {
		if err := rumor.Finalize(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.st.Welcomes[rumor.ID]; ok {
		return nil
	}

	initPubHex := rumor.Tags.Value(model.TagInitKey)
	initPrivHex, ok := e.st.InitKeys[initPubHex]
	if !ok {
		return engine.ErrNoInitKey
	}
	initPriv, err := parseInitKey(initPrivHex)
	if err != nil {
		return err
	}

	sealed, err := base64.StdEncoding.DecodeString(rumor.Content)
	if err != nil {
		return fmt.Errorf("decode welcome payload: %w", err)
	}

	ticketID := rumor.Tags.Value(model.TagEventRef)
	plain, err := encryption.Open(initPriv, sealed, []byte(ticketID))
	if err != nil {
		return fmt.Errorf("open welcome payload: %w", err)
	}

	var info groupInfo
	if err := json.Unmarshal(plain, &info); err != nil {
		return fmt.Errorf("unmarshal group info: %w", err)
	}

	e.st.Welcomes[rumor.ID] = &welcomeState{
		Welcome: model.PendingWelcome{
			ID:                rumor.ID,
			EventJSON:         rumorJSON,
			MLSGroupID:        info.MLSGroupID,
			WireGroupID:       info.WireGroupID,
			GroupName:         info.Name,
			GroupDescription:  info.Description,
			GroupAdminPubKeys: info.Admins,
			GroupRelays:       info.Relays,
			Welcomer:          rumor.PubKey,
			MemberCount:       len(info.Members),
			State:             model.WelcomePending,
			WrapperEventID:    wrapperEventID,
		},
		Info: info,
	}

	// the init key is one-use
	delete(e.st.InitKeys, initPubHex)

	return e.persist(ctx)
}

// AcceptWelcome consumes a pending welcome and activates the group it
// describes. Accepting a welcome twice is an error, not a no-op.
func (e *Engine) AcceptWelcome(ctx context.Context, welcomeJSON string) error {
	var w model.PendingWelcome
	if err := json.Unmarshal([]byte(welcomeJSON), &w); err != nil {
		return fmt.Errorf("unmarshal welcome: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ws, ok := e.st.Welcomes[w.ID]
	if !ok {
		return engine.ErrUnknownWelcome
	}
	if ws.Welcome.State != model.WelcomePending {
		return fmt.Errorf("welcome %s: %w", w.ID, engine.ErrWelcomeConsumed)
	}

	info := ws.Info
	e.st.Groups[info.MLSGroupID] = &groupState{
		Group: model.Group{
			MLSGroupID:  info.MLSGroupID,
			WireGroupID: info.WireGroupID,
			Name:        info.Name,
			Description: info.Description,
			Admins:      info.Admins,
			Relays:      info.Relays,
			Members:     info.Members,
			Epoch:       info.Epoch,
		},
		Secret: info.Secret,
	}
	ws.Welcome.State = model.WelcomeAccepted

	return e.persist(ctx)
}

func parseInitKey(hexKey string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return key, fmt.Errorf("malformed init key")
	}
	copy(key[:], raw)
	return key, nil
}
