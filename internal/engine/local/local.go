// Package local is a self-contained group-security engine used for
// development and tests. It implements the engine capability with one
// shared secret per group: welcomes seal the secret to the recipient's
// one-time init key, messages encrypt under a key derived from the
// secret. It deliberately does not implement a full ratcheting group
// protocol.
package local

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"sync"

	"group_chat/internal/cryptographic/dh"
	"group_chat/internal/engine"
	"group_chat/internal/engine/store"
	"group_chat/internal/model"
)

type (
	Engine struct {
		mu    sync.Mutex
		keys  *model.Keys
		store store.Store
		st    *state
	}
)

var _ engine.Engine = (*Engine)(nil)

func New(ctx context.Context, keys *model.Keys, st store.Store) (*Engine, error) {
	e := &Engine{
		keys:  keys,
		store: st,
	}
	if err := e.loadState(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateKeyPackageForEvent generates a fresh one-time init key and
// returns the content and tags for a publishable admission ticket.
func (e *Engine) CreateKeyPackageForEvent(ctx context.Context, identity string, relays []string) (*engine.KeyPackageResult, error) {
	if identity != e.keys.PublicKey() {
		return nil, engine.ErrWrongIdentity
	}

	initPriv, initPub, err := dh.NewKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate init key: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.st.InitKeys[hex.EncodeToString(initPub[:])] = hex.EncodeToString(initPriv[:])
	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	encPub := e.keys.EncryptionPublicKey()
	return &engine.KeyPackageResult{
		Payload: hex.EncodeToString(initPub[:]),
		Tags: model.Tags{
			model.RelaysTag(relays),
			model.Tag{model.TagEncryptionKey, hex.EncodeToString(encPub[:])},
		},
	}, nil
}

func (e *Engine) CreateGroup(ctx context.Context, creator string, memberTicketJSONs []string, name, description string, relays, admins []string) (*engine.GroupResult, error) {
	if creator != e.keys.PublicKey() {
		return nil, engine.ErrWrongIdentity
	}
	if !slices.Contains(admins, creator) {
		admins = append([]string{creator}, admins...)
	}

	tickets, err := parseTickets(memberTicketJSONs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g := &groupState{
		Group: model.Group{
			MLSGroupID:  randomID(),
			WireGroupID: randomID(),
			Name:        name,
			Description: description,
			Admins:      admins,
			Relays:      relays,
			Members:     []string{creator},
			Epoch:       0,
		},
		Secret: randomID(),
	}
	for _, kp := range tickets {
		if !slices.Contains(g.Members, kp.Owner()) {
			g.Members = append(g.Members, kp.Owner())
		}
	}

	rumors, err := e.welcomeRumors(g, tickets)
	if err != nil {
		return nil, err
	}

	e.st.Groups[g.MLSGroupID] = g
	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	return &engine.GroupResult{
		Group:             g.Group,
		WelcomeRumorJSONs: rumors,
	}, nil
}

func (e *Engine) AddMembers(ctx context.Context, groupID string, memberTicketJSONs []string) (*engine.GroupResult, error) {
	tickets, err := parseTickets(memberTicketJSONs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.st.Groups[groupID]
	if !ok {
		return nil, engine.ErrUnknownGroup
	}
	if !slices.Contains(g.Admins, e.keys.PublicKey()) {
		return nil, engine.ErrNotAdmin
	}

	for _, kp := range tickets {
		if slices.Contains(g.Members, kp.Owner()) {
			return nil, fmt.Errorf("%s is already a member of %s", kp.Owner(), g.Name)
		}
	}
	for _, kp := range tickets {
		g.Members = append(g.Members, kp.Owner())
	}
	g.Epoch++

	rumors, err := e.welcomeRumors(g, tickets)
	if err != nil {
		return nil, err
	}

	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	return &engine.GroupResult{
		Group:             g.Group,
		WelcomeRumorJSONs: rumors,
	}, nil
}

func (e *Engine) GetGroups(_ context.Context) ([]model.Group, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	groups := make([]model.Group, 0, len(e.st.Groups))
	for _, g := range e.st.Groups {
		groups = append(groups, g.Group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].MLSGroupID < groups[j].MLSGroupID
	})
	return groups, nil
}

func (e *Engine) GetPendingWelcomes(_ context.Context) ([]model.PendingWelcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	welcomes := make([]model.PendingWelcome, 0, len(e.st.Welcomes))
	for _, w := range e.st.Welcomes {
		if w.Welcome.State == model.WelcomePending {
			welcomes = append(welcomes, w.Welcome)
		}
	}
	sort.Slice(welcomes, func(i, j int) bool {
		return welcomes[i].ID < welcomes[j].ID
	})
	return welcomes, nil
}

func parseTickets(ticketJSONs []string) ([]*model.KeyPackage, error) {
	tickets := make([]*model.KeyPackage, 0, len(ticketJSONs))
	for _, raw := range ticketJSONs {
		ev, err := model.ParseEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("parse member ticket: %w", err)
		}
		kp, err := model.NewKeyPackage(*ev)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, kp)
	}
	return tickets, nil
}

func randomID() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b[:])
}
