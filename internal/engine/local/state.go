package local

import (
	"context"
	"encoding/json"
	"fmt"

	"group_chat/internal/model"
)

type (
	// state is the engine's full persistent state. It is serialized as
	// one snapshot after every mutating operation.
	state struct {
		// InitKeys maps hex init public key -> hex init private key for
		// admission tickets we have published and not yet consumed.
		InitKeys map[string]string `json:"init_keys"`

		// Groups is keyed by MLS group ID.
		Groups map[string]*groupState `json:"groups"`

		// Welcomes is keyed by welcome rumor ID.
		Welcomes map[string]*welcomeState `json:"welcomes"`
	}

	groupState struct {
		model.Group
		Secret string `json:"secret"` // hex, current epoch secret
	}

	welcomeState struct {
		Welcome model.PendingWelcome `json:"welcome"`
		Info    groupInfo            `json:"info"`
	}

	// groupInfo is the payload sealed into a welcome artifact: everything
	// a new member needs to derive the group locally.
	groupInfo struct {
		MLSGroupID  string   `json:"mls_group_id"`
		WireGroupID string   `json:"wire_group_id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Admins      []string `json:"admins"`
		Relays      []string `json:"relays"`
		Members     []string `json:"members"`
		Epoch       uint64   `json:"epoch"`
		Secret      string   `json:"secret"`
	}
)

func newState() *state {
	return &state{
		InitKeys: make(map[string]string),
		Groups:   make(map[string]*groupState),
		Welcomes: make(map[string]*welcomeState),
	}
}

func (e *Engine) loadState(ctx context.Context) error {
	data, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load engine state: %w", err)
	}
	if data == nil {
		e.st = newState()
		return nil
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("unmarshal engine state: %w", err)
	}
	if st.InitKeys == nil {
		st.InitKeys = make(map[string]string)
	}
	if st.Groups == nil {
		st.Groups = make(map[string]*groupState)
	}
	if st.Welcomes == nil {
		st.Welcomes = make(map[string]*welcomeState)
	}
	e.st = &st
	return nil
}

// persist must be called with e.mu held.
func (e *Engine) persist(ctx context.Context) error {
	data, err := json.Marshal(e.st)
	if err != nil {
		return fmt.Errorf("marshal engine state: %w", err)
	}
	return e.store.Save(ctx, data)
}

func (g *groupState) info() groupInfo {
	return groupInfo{
		MLSGroupID:  g.MLSGroupID,
		WireGroupID: g.WireGroupID,
		Name:        g.Name,
		Description: g.Description,
		Admins:      g.Admins,
		Relays:      g.Relays,
		Members:     g.Members,
		Epoch:       g.Epoch,
		Secret:      g.Secret,
	}
}
