package session

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"group_chat/internal/model"
	"group_chat/internal/utils/log"
)

// welcomeValidity is the validity window attached to every dispatched
// welcome, counted from dispatch time (not artifact creation time).
const welcomeValidity = 30 * 24 * time.Hour

type (
	// Roster is the identifier -> admission-ticket mapping of one group
	// operation. The exact roster used to produce a set of welcome
	// artifacts must be passed through to Dispatch unchanged; it is never
	// re-resolved, because a newer ticket would mismatch the artifacts.
	Roster map[string]*model.KeyPackage

	// Dispatcher fans welcome artifacts out to their intended recipients
	// under confidential wrapping.
	Dispatcher struct {
		transport Transport
		validity  time.Duration
		now       func() time.Time
	}

	// Delivery reports one artifact's outcome. Failures and skips are
	// per-item; they never abort sibling deliveries.
	Delivery struct {
		TicketID  string
		Recipient string
		Skipped   bool
		Err       error
	}
)

func NewDispatcher(t Transport) *Dispatcher {
	return &Dispatcher{
		transport: t,
		validity:  welcomeValidity,
		now:       time.Now,
	}
}

// Dispatch matches every welcome artifact to its recipient via the
// roster's ticket IDs and delivers each one confidentially. Artifacts
// referencing a ticket absent from the roster are dropped, never
// delivered elsewhere. Deliveries run concurrently; the batch is
// awaited before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, rumorJSONs []string, roster Roster) []Delivery {
	if len(rumorJSONs) == 0 {
		return nil
	}

	owners := make(map[string]string, len(roster))
	for identifier, kp := range roster {
		owners[kp.TicketID()] = identifier
	}

	// one expiration for the whole batch, stamped at dispatch time
	expiration := model.ExpirationTag(d.now().Add(d.validity))

	results := make([]Delivery, len(rumorJSONs))
	g := new(errgroup.Group)
	for i, raw := range rumorJSONs {
		i := i
		rumor, err := model.ParseUnsignedEvent(raw)
		if err != nil {
			log.Warn("dropping unparseable welcome artifact", zap.Error(err))
			results[i] = Delivery{Skipped: true}
			continue
		}

		ticketID := rumor.Tags.Value(model.TagEventRef)
		recipient, ok := owners[ticketID]
		if !ok {
			log.Warn("dropping welcome with unknown ticket reference",
				zap.String("ticket", ticketID))
			results[i] = Delivery{TicketID: ticketID, Skipped: true}
			continue
		}

		encKey, err := roster[recipient].EncryptionKey()
		if err != nil {
			results[i] = Delivery{TicketID: ticketID, Recipient: recipient, Err: err}
			continue
		}

		g.Go(func() error {
			res := Delivery{TicketID: ticketID, Recipient: recipient}
			if err := d.transport.GiftWrap(ctx, recipient, encKey, rumor, []model.Tag{expiration}); err != nil {
				log.Error("welcome delivery failed",
					zap.String("recipient", recipient),
					zap.Error(err))
				res.Err = err
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results
}
