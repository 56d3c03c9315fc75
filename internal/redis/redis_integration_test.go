//go:build integration

package redisc

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/umar/familychat/internal/realtime"
	"github.com/umar/familychat/internal/testenv"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	cfg := testenv.Require(t, func(c testenv.Config) string { return c.RedisURL })
	client, err := InitRedis(context.Background(), cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestChangeTransport_RoundTrip(t *testing.T) {
	req := require.New(t)
	client := newClient(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conversationID := uuid.NewString()

	// Given a broker listening on Redis
	broker := realtime.NewBroker(NewChangeTransport(client, log), log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = broker.Run(ctx) }()

	sub := broker.Subscribe(realtime.Filter{
		Table:  realtime.TableMessages,
		Event:  realtime.EventAll,
		Column: "conversation_id",
		Value:  conversationID,
	})
	defer sub.Close()

	change, err := realtime.NewChange(realtime.TableMessages, realtime.EventInsert, nil,
		map[string]string{"id": "m1", "conversation_id": conversationID})
	req.NoError(err)

	// When a change is published, possibly before PSUBSCRIBE is active
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		req.NoError(broker.Publish(ctx, change))
		select {
		case got := <-sub.C():
			// Then the subscriber receives it
			req.Equal(realtime.EventInsert, got.Event)
			return
		case <-tick.C:
		case <-deadline:
			req.Fail("change never arrived")
			return
		}
	}
}

func TestPresence(t *testing.T) {
	req := require.New(t)
	p := NewPresence(newClient(t))
	ctx := context.Background()
	who := "alice-" + uuid.NewString()[:8]

	req.NoError(p.Join(ctx, who))
	online, err := p.Online(ctx)
	req.NoError(err)
	req.Contains(online, who)

	req.NoError(p.Refresh(ctx, who))
	req.NoError(p.Leave(ctx, who))
	online, err = p.Online(ctx)
	req.NoError(err)
	req.NotContains(online, who)
}

func TestPresence_CountsSessionsPerName(t *testing.T) {
	req := require.New(t)
	p := NewPresence(newClient(t))
	ctx := context.Background()
	who := "grandma-" + uuid.NewString()[:8]

	// Given two sessions under the same name
	req.NoError(p.Join(ctx, who))
	req.NoError(p.Join(ctx, who))

	// When one of them leaves, the name stays online
	req.NoError(p.Leave(ctx, who))
	online, err := p.Online(ctx)
	req.NoError(err)
	req.Contains(online, who)

	// When the last one leaves, it is gone
	req.NoError(p.Leave(ctx, who))
	online, err = p.Online(ctx)
	req.NoError(err)
	req.NotContains(online, who)
}

func TestPresence_PrunesExpiredNames(t *testing.T) {
	req := require.New(t)
	client := newClient(t)
	p := NewPresence(client)
	ctx := context.Background()
	who := "uncle-" + uuid.NewString()[:8]

	req.NoError(p.Join(ctx, who))
	req.NoError(client.Del(ctx, presenceKey(who)).Err())

	online, err := p.Online(ctx)
	req.NoError(err)
	req.NotContains(online, who)
	req.False(client.HExists(ctx, sessionsKey, who).Val())
}
