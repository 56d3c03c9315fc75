package redisc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/umar/familychat/internal/realtime"
)

const changesPrefix = "chat:changes:"

// ChangeTransport carries realtime changes over Redis pub/sub so that
// every server instance sees writes made through any other instance.
type ChangeTransport struct {
	client *redis.Client
	log    *slog.Logger
}

func NewChangeTransport(client *redis.Client, log *slog.Logger) *ChangeTransport {
	return &ChangeTransport{client: client, log: log}
}

func (t *ChangeTransport) Publish(ctx context.Context, c realtime.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	return t.client.Publish(ctx, changesPrefix+c.Table, data).Err()
}

func (t *ChangeTransport) Listen(ctx context.Context, deliver func(realtime.Change)) error {
	pubsub := t.client.PSubscribe(ctx, changesPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var c realtime.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				t.log.Warn("dropping malformed change", "channel", msg.Channel, "error", err)
				continue
			}
			t.log.Debug("pubsub change", "table", strings.TrimPrefix(msg.Channel, changesPrefix), "event", c.Event)
			deliver(c)
		}
	}
}
