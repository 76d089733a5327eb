package readmodel

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// UpdateNotifier announces projected events on a redis channel so outer
// layers (live streams, cache warmers) can react to read-model changes.
type UpdateNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewUpdateNotifier(rdb *redis.Client, channel string) *UpdateNotifier {
	return &UpdateNotifier{rdb: rdb, channel: channel}
}

// Notify publishes the event payload. Failures are returned for the
// caller to log; they never affect the projection outcome.
func (n *UpdateNotifier) Notify(ctx context.Context, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, data).Err()
}
