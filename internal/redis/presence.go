package redisc

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceTTL = 120 * time.Second
	// sessionsKey maps each name to the number of sessions that have the
	// family room open under it.
	sessionsKey = "family_room:sessions"
)

// Presence is an advisory record of who has the family room open. Chat
// never depends on it.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func presenceKey(name string) string { return "presence:" + name }

// leaveScript decrements the session count of a name and forgets the name
// once no session is left.
var leaveScript = redis.NewScript(`
local n = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
if n <= 0 then
	redis.call("HDEL", KEYS[1], ARGV[1])
	redis.call("DEL", KEYS[2])
end
return n
`)

func (p *Presence) Join(ctx context.Context, name string) error {
	pipe := p.client.TxPipeline()
	pipe.HIncrBy(ctx, sessionsKey, name, 1)
	pipe.Set(ctx, presenceKey(name), "online", presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave drops one session. The name stays online while another session
// with the same name still has the room open.
func (p *Presence) Leave(ctx context.Context, name string) error {
	return leaveScript.Run(ctx, p.client, []string{sessionsKey, presenceKey(name)}, name).Err()
}

func (p *Presence) Refresh(ctx context.Context, name string) error {
	return p.client.Expire(ctx, presenceKey(name), presenceTTL).Err()
}

// Online lists names whose presence key has not expired. Expired names are
// pruned as a side effect.
func (p *Presence) Online(ctx context.Context) ([]string, error) {
	names, err := p.client.HKeys(ctx, sessionsKey).Result()
	if err != nil {
		return nil, err
	}
	online := make([]string, 0, len(names))
	for _, name := range names {
		n, err := p.client.Exists(ctx, presenceKey(name)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if err := p.client.HDel(ctx, sessionsKey, name).Err(); err != nil {
				return nil, fmt.Errorf("failed to prune %s: %w", name, err)
			}
			continue
		}
		online = append(online, name)
	}
	return online, nil
}
