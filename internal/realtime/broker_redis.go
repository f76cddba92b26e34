package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/redis"
)

const canalPrefix = "notificaciones:"

// RedisBroker fans messages out across server instances. Publish goes to a
// per-group Redis channel; every instance runs a subscriber that bridges
// the channel back into its local hub, so a user's sessions receive the
// message no matter which instance holds their connection.
type RedisBroker struct {
	rdb     *redis.Client
	hub     *Hub
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRedisBroker(rdb *redis.Client, hub *Hub, logger *slog.Logger, m *metrics.Metrics) *RedisBroker {
	return &RedisBroker{rdb: rdb, hub: hub, logger: logger, metrics: m}
}

// Publish implements Broker by relaying the message through Redis. The
// local hub hears it back through the subscription, same as every other
// instance, which keeps the delivery path identical in single-node and
// clustered deployments.
func (b *RedisBroker) Publish(ctx context.Context, grupo string, mensaje Mensaje) error {
	payload := mensaje.Serializa()
	if payload == nil {
		return nil
	}
	if err := b.rdb.Publish(ctx, canalPrefix+grupo, payload).Err(); err != nil {
		if b.metrics != nil {
			b.metrics.RealtimePublishErrors.Inc()
		}
		return fmt.Errorf("publish realtime message for group %s: %w", grupo, err)
	}
	return nil
}

// Run subscribes to every group channel and feeds received messages into
// the local hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, canalPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("realtime subscription channel closed")
			}
			grupo := strings.TrimPrefix(msg.Channel, canalPrefix)

			var mensaje Mensaje
			if err := json.Unmarshal([]byte(msg.Payload), &mensaje); err != nil {
				b.logger.WarnContext(ctx, "discarding malformed realtime payload",
					"canal", msg.Channel,
					"error", err,
				)
				continue
			}
			if err := b.hub.Publish(ctx, grupo, mensaje); err != nil {
				return err
			}
		}
	}
}
