package session

import (
	"context"

	"group_chat/internal/engine"
	"group_chat/internal/model"
)

type (
	// Selector lists locally known pending welcomes and groups for a
	// caller to choose among. Pure query and index selection, no
	// protocol effects.
	Selector struct {
		engine engine.Engine
	}
)

func NewSelector(e engine.Engine) *Selector {
	return &Selector{engine: e}
}

func (s *Selector) Groups(ctx context.Context) ([]model.Group, error) {
	return s.engine.GetGroups(ctx)
}

func (s *Selector) PendingWelcomes(ctx context.Context) ([]model.PendingWelcome, error) {
	return s.engine.GetPendingWelcomes(ctx)
}

// PickGroup returns the group at index, or no selection when the index
// is out of range (including the negative "cancelled" convention).
// Call sites treat no selection as a no-op, never as an error.
func PickGroup(groups []model.Group, index int) (*model.Group, bool) {
	if index < 0 || index >= len(groups) {
		return nil, false
	}
	return &groups[index], true
}

// PickWelcome is PickGroup for pending welcomes.
func PickWelcome(welcomes []model.PendingWelcome, index int) (*model.PendingWelcome, bool) {
	if index < 0 || index >= len(welcomes) {
		return nil, false
	}
	return &welcomes[index], true
}
