package engine

import (
	"context"
	"errors"

	"group_chat/internal/model"
)

type (
	// KeyPackageResult is the material for a publishable admission
	// ticket: the event content plus the tags the event must carry.
	KeyPackageResult struct {
		Payload string
		Tags    model.Tags
	}

	// GroupResult is returned by group-creating and member-adding
	// operations. WelcomeRumorJSONs are unsigned welcome artifacts, one
	// per added member, each referencing that member's ticket ID.
	GroupResult struct {
		Group             model.Group
		WelcomeRumorJSONs []string
	}

	DecryptedMessage struct {
		MLSGroupID string
		Sender     string
		Content    string
		Kind       int
		CreatedAt  int64
	}

	// Engine is the group-security capability. It owns all cryptographic
	// group state; callers never mutate groups directly, only request
	// operations on them. Every call is atomic from the caller's view.
	Engine interface {
		CreateKeyPackageForEvent(ctx context.Context, identity string, relays []string) (*KeyPackageResult, error)
		CreateGroup(ctx context.Context, creator string, memberTicketJSONs []string, name, description string, relays, admins []string) (*GroupResult, error)
		AddMembers(ctx context.Context, groupID string, memberTicketJSONs []string) (*GroupResult, error)
		CreateMessage(ctx context.Context, groupID, sender, content string, kind int) (string, error)
		AcceptWelcome(ctx context.Context, welcomeJSON string) error
		ProcessWelcome(ctx context.Context, wrapperEventID, rumorJSON string) error
		ProcessMessage(ctx context.Context, eventJSON string) (*DecryptedMessage, error)
		GetPendingWelcomes(ctx context.Context) ([]model.PendingWelcome, error)
		GetGroups(ctx context.Context) ([]model.Group, error)
	}
)

var (
	ErrUnknownGroup    = errors.New("unknown group")
	ErrUnknownWelcome  = errors.New("unknown welcome")
	ErrWelcomeConsumed = errors.New("welcome already resolved")
	ErrNoInitKey       = errors.New("no matching init key for welcome")
	ErrNotAdmin        = errors.New("local identity is not a group admin")
	ErrWrongIdentity   = errors.New("identity does not match engine keys")
)
