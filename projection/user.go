package projection

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"marketplace/domain"
	"marketplace/publisher"
)

// NewUserLoggedIn pushes a login notification onto the user's feed. The
// feed is capped and best effort; a failed push is logged and retried
// only if the event itself is re-delivered.
func NewUserLoggedIn(sink NotificationSink, logger *log.Logger) publisher.Projector {
	return projector{
		aggregate: domain.AggregateUser,
		event:     domain.UserLoggedIn,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.UserLoggedInData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			n := domain.Notification{
				UserID:    ev.AggregateID,
				Kind:      "login",
				Message:   "login detected for " + data.Email,
				CreatedAt: ev.CreatedAt,
			}
			if err := sink.AddNotification(ctx, n); err != nil {
				logger.WithError(err).WithField("userId", ev.AggregateID).Error("notification push failed")
				return err
			}
			return nil
		},
	}
}
