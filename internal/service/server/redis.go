package server

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"group_chat/internal/model"
	"group_chat/internal/utils/log"
)

func wrapQueueKey(recipient string) string {
	return fmt.Sprintf("wraps: %s", recipient)
}

// QueueWrap stores a confidential wrap for an offline recipient.
func (s *HttpServer) QueueWrap(ctx context.Context, recipient string, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.redisService.QueueAppend(ctx, wrapQueueKey(recipient), data)
}

// PendingWraps drains the recipient's queue, discarding wraps whose
// expiration tag has passed while they were offline.
func (s *HttpServer) PendingWraps(ctx context.Context, recipient string) ([]*model.Event, error) {
	vals, err := s.redisService.QueueDrain(ctx, wrapQueueKey(recipient))
	if err != nil {
		return nil, err
	}

	var wraps []*model.Event
	for _, v := range vals {
		var ev model.Event
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			log.Warn("discarding unreadable queued wrap", zap.Error(err))
			continue
		}
		if expired(&ev) {
			log.Debug("discarding expired queued wrap", zap.String("id", ev.ID))
			continue
		}
		wraps = append(wraps, &ev)
	}
	return wraps, nil
}
