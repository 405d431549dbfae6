package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// publishAll sends events after the owning transaction committed. Failures
// are logged and never surface to the caller.
func publishAll(ctx context.Context, pub events.Publisher, evs ...events.Event) {
	if pub == nil {
		return
	}
	for _, ev := range evs {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}
		if err := pub.Publish(ctx, ev); err != nil {
			log.WithError(err).WithField("subject", ev.Subject).Warn("[Events] failed to publish event")
		}
	}
}

func notificationEvents(notes []*models.Notification) []events.Event {
	evs := make([]events.Event, 0, len(notes))
	for _, n := range notes {
		evs = append(evs, events.Event{
			Subject: events.SubjectNotificationCreated,
			UserID:  n.UserID,
			Payload: map[string]interface{}{
				"notification_id": n.ID,
				"type":            n.Type,
				"title":           n.Title,
			},
		})
	}
	return evs
}

func marketEvent(subject string, m *models.Market, payload map[string]interface{}) events.Event {
	return events.Event{
		Subject:  subject,
		UserID:   m.CreatorID,
		MarketID: m.ID,
		Payload:  payload,
	}
}
