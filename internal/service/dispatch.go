package service

import (
	"context"
	"time"

	"smsportal/internal/models"
)

// DispatchScheduled sends every pending scheduled message whose time
// has come, through the same path as an interactive send, and marks
// each row sent as it goes. A crash mid-batch only risks re-sending
// already-picked rows next tick: at-least-once, not exactly-once.
func (s *MessageService) DispatchScheduled(ctx context.Context) (int, error) {
	due, err := s.repo.DueScheduled(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, sm := range due {
		_, err := s.SendMessage(ctx, models.Message{
			Sender:    sm.Sender,
			Recipient: sm.Recipient,
			Body:      sm.Body,
		})
		if err != nil {
			s.log.Warnw("scheduled send failed, will retry next cycle", "id", sm.ID, "err", err)
			continue
		}
		if err := s.repo.MarkScheduledSent(ctx, sm.ID); err != nil {
			s.log.Errorw("failed to mark scheduled message sent", "id", sm.ID, "err", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		s.log.Infow("dispatched scheduled messages", "count", sent)
	}
	return sent, nil
}
