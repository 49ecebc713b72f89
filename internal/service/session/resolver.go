package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"group_chat/internal/model"
	"group_chat/internal/transport"
	"group_chat/internal/utils/log"
)

// resolveTimeout bounds a single admission-ticket query.
const resolveTimeout = 10 * time.Second

type (
	// Transport is the relay capability the session layer consumes.
	Transport interface {
		Publish(ctx context.Context, ev *model.Event) error
		Fetch(ctx context.Context, filter transport.Filter, timeout time.Duration) ([]model.Event, error)
		GiftWrap(ctx context.Context, recipient string, recipientEncKey [32]byte, rumor *model.UnsignedEvent, extraTags []model.Tag) error
	}

	// Resolver maps an identifier to that party's most recently published
	// admission ticket.
	Resolver struct {
		transport Transport
	}
)

func NewResolver(t Transport) *Resolver {
	return &Resolver{transport: t}
}

// Resolve fetches the newest valid key package published by identifier.
// Timeouts and transport errors are reported as ErrIdentityNotFound;
// the caller decides whether that aborts a batch.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*model.KeyPackage, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	events, err := r.transport.Fetch(ctx, transport.Filter{
		Kinds:   []int{model.KindKeyPackage},
		Authors: []string{identifier},
		Limit:   1,
	}, resolveTimeout)
	if err != nil {
		log.Debug("key package fetch failed", zap.String("identifier", identifier), zap.Error(err))
		return nil, ErrIdentityNotFound
	}

	for _, ev := range events {
		kp, err := model.NewKeyPackage(ev)
		if err != nil {
			log.Warn("discarding unusable key package",
				zap.String("identifier", identifier),
				zap.String("id", ev.ID),
				zap.Error(err))
			continue
		}
		return kp, nil
	}
	return nil, ErrIdentityNotFound
}
