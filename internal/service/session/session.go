// Package session coordinates group lifecycle operations between the
// group-security engine and the relay transport: resolving admission
// tickets, driving group creation and member addition, fanning welcome
// artifacts out to the right recipients, and accepting welcomes into
// local membership.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"group_chat/internal/engine"
	"group_chat/internal/model"
	"group_chat/internal/transport"
	"group_chat/internal/utils/log"
)

type (
	// Session is the orchestrator for one local identity. It never
	// mutates group state itself; the engine is the single source of
	// truth for membership.
	Session struct {
		keys       *model.Keys
		engine     engine.Engine
		transport  Transport
		resolver   *Resolver
		dispatcher *Dispatcher
		relays     []string
	}
)

func New(keys *model.Keys, eng engine.Engine, t Transport, relays []string) *Session {
	return &Session{
		keys:       keys,
		engine:     eng,
		transport:  t,
		resolver:   NewResolver(t),
		dispatcher: NewDispatcher(t),
		relays:     relays,
	}
}

func (s *Session) Identity() string {
	return s.keys.PublicKey()
}

// CreateGroup resolves every member's admission ticket, asks the engine
// to create the group, and dispatches the resulting welcomes. Any
// failed resolution aborts the whole operation before the engine is
// touched: partial groups are never created.
func (s *Session) CreateGroup(ctx context.Context, name, description string, memberIDs []string) (*model.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty: %w", ErrInvalidInput)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("at least one member is required: %w", ErrInvalidInput)
	}

	roster, ticketJSONs, err := s.resolveAll(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.CreateGroup(ctx, s.Identity(), ticketJSONs, name, description, s.relays, []string{s.Identity()})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	if len(res.WelcomeRumorJSONs) > 0 {
		report := s.dispatcher.Dispatch(ctx, res.WelcomeRumorJSONs, roster)
		logDeliveryReport(res.Group.Name, report)
	}
	return &res.Group, nil
}

// InviteMember resolves one identifier and adds it to an existing
// group, dispatching the resulting welcome.
func (s *Session) InviteMember(ctx context.Context, groupID, memberID string) error {
	if groupID == "" || memberID == "" {
		return fmt.Errorf("group and member are required: %w", ErrInvalidInput)
	}

	kp, err := s.resolver.Resolve(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%s: %w", memberID, err)
	}
	ticketJSON, err := kp.JSON()
	if err != nil {
		return err
	}

	res, err := s.engine.AddMembers(ctx, groupID, []string{ticketJSON})
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	if len(res.WelcomeRumorJSONs) > 0 {
		report := s.dispatcher.Dispatch(ctx, res.WelcomeRumorJSONs, Roster{memberID: kp})
		logDeliveryReport(res.Group.Name, report)
	}
	return nil
}

// SendMessage has the engine produce a signed group message and
// publishes it unmodified.
func (s *Session) SendMessage(ctx context.Context, groupID, content string) error {
	if content == "" {
		return fmt.Errorf("message content cannot be empty: %w", ErrInvalidInput)
	}

	eventJSON, err := s.engine.CreateMessage(ctx, groupID, s.Identity(), content, model.KindChat)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	ev, err := model.ParseEvent(eventJSON)
	if err != nil {
		return err
	}

	if err := s.transport.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// AcceptWelcome hands a locally cached pending welcome back to the
// engine. Accepting the same welcome twice surfaces the engine's error.
func (s *Session) AcceptWelcome(ctx context.Context, w model.PendingWelcome) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal welcome: %w", err)
	}
	if err := s.engine.AcceptWelcome(ctx, string(data)); err != nil {
		return fmt.Errorf("accept welcome: %w", err)
	}
	return nil
}

// PublishKeyPackage publishes a fresh admission ticket for the local
// identity.
func (s *Session) PublishKeyPackage(ctx context.Context) error {
	res, err := s.engine.CreateKeyPackageForEvent(ctx, s.Identity(), s.relays)
	if err != nil {
		return fmt.Errorf("create key package: %w", err)
	}

	ev := model.UnsignedEvent{
		Kind:    model.KindKeyPackage,
		Tags:    append(res.Tags, model.Tag{model.TagClient, "group-chat"}),
		Content: res.Payload,
	}
	signed, err := ev.Sign(s.keys)
	if err != nil {
		return err
	}

	if err := s.transport.Publish(ctx, signed); err != nil {
		return fmt.Errorf("publish key package: %w", err)
	}
	return nil
}

// PublishMetadata publishes profile metadata and the relay list events
// other parties use to reach us.
func (s *Session) PublishMetadata(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty: %w", ErrInvalidInput)
	}

	content, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	profile := model.UnsignedEvent{
		Kind:    model.KindProfileMetadata,
		Content: string(content),
	}
	signed, err := profile.Sign(s.keys)
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, signed); err != nil {
		return fmt.Errorf("publish profile: %w", err)
	}

	relayTags := make(model.Tags, 0, len(s.relays))
	for _, r := range s.relays {
		relayTags = append(relayTags, model.Tag{model.TagRelay, r})
	}
	for _, kind := range []int{model.KindRelayList, model.KindInboxRelayList, model.KindKeyPackageRelayList} {
		list := model.UnsignedEvent{
			Kind: kind,
			Tags: relayTags,
		}
		signed, err := list.Sign(s.keys)
		if err != nil {
			return err
		}
		if err := s.transport.Publish(ctx, signed); err != nil {
			return fmt.Errorf("publish relay list %d: %w", kind, err)
		}
	}
	return nil
}

// HandleIncoming routes a received event: confidential wraps carrying
// welcomes go to the engine's welcome processing, group messages are
// decrypted and returned for display. Events that are not for us are
// ignored without error.
func (s *Session) HandleIncoming(ctx context.Context, ev model.Event) (*engine.DecryptedMessage, error) {
	switch ev.Kind {
	case model.KindGiftWrap:
		rumorJSON, err := transport.UnwrapGift(s.keys, &ev)
		if err != nil {
			return nil, fmt.Errorf("unwrap: %w", err)
		}
		rumor, err := model.ParseUnsignedEvent(rumorJSON)
		if err != nil {
			return nil, err
		}
		if rumor.Kind != model.KindWelcome {
			log.Debug("ignoring wrapped rumor", zap.Int("kind", rumor.Kind))
			return nil, nil
		}
		if err := s.engine.ProcessWelcome(ctx, ev.ID, rumorJSON); err != nil {
			return nil, fmt.Errorf("process welcome: %w", err)
		}
		return nil, nil

	case model.KindGroupMessage:
		eventJSON, err := ev.JSON()
		if err != nil {
			return nil, err
		}
		msg, err := s.engine.ProcessMessage(ctx, eventJSON)
		if err != nil {
			if errors.Is(err, engine.ErrUnknownGroup) {
				return nil, nil
			}
			return nil, fmt.Errorf("process message: %w", err)
		}
		return msg, nil

	default:
		return nil, nil
	}
}

// resolveAll resolves every identifier concurrently, failing fast on
// the first miss. The returned roster and ticket JSONs (input order)
// come from the same fetch, so dispatch matching stays consistent.
func (s *Session) resolveAll(ctx context.Context, memberIDs []string) (Roster, []string, error) {
	packages := make([]*model.KeyPackage, len(memberIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range memberIDs {
		i, id := i, id
		g.Go(func() error {
			kp, err := s.resolver.Resolve(gctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			packages[i] = kp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	roster := make(Roster, len(memberIDs))
	ticketJSONs := make([]string, 0, len(memberIDs))
	for i, id := range memberIDs {
		raw, err := packages[i].JSON()
		if err != nil {
			return nil, nil, err
		}
		roster[id] = packages[i]
		ticketJSONs = append(ticketJSONs, raw)
	}
	return roster, ticketJSONs, nil
}

func logDeliveryReport(groupName string, report []Delivery) {
	for _, d := range report {
		switch {
		case d.Skipped:
			log.Warn("welcome not delivered", zap.String("group", groupName), zap.String("ticket", d.TicketID))
		case d.Err != nil:
			log.Error("welcome delivery failed",
				zap.String("group", groupName),
				zap.String("recipient", d.Recipient),
				zap.Error(d.Err))
		default:
			log.Info("welcome delivered",
				zap.String("group", groupName),
				zap.String("recipient", d.Recipient))
		}
	}
}
