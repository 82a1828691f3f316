package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rustyeddy/tradeguard/risk"
)

const DefaultRedisKey = "tradeguard:pnl_log"

// Redis stores the risk log as one hash: field = date, value = JSON snapshot.
// Several strategy hosts can share it.
type Redis struct {
	client redis.UniversalClient
	key    string
}

func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr, key string) (*Redis, error) {
	c := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return NewRedis(c, key), nil
}

func (r *Redis) ReadAll(ctx context.Context) (risk.SnapshotLog, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}

	out := make(risk.SnapshotLog, len(fields))
	for date, raw := range fields {
		var s risk.Snapshot
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", date, err)
		}
		out[date] = s
	}
	return out, nil
}

// WriteAll replaces the hash in a MULTI/EXEC block.
func (r *Redis) WriteAll(ctx context.Context, log risk.SnapshotLog) error {
	args, err := hashArgs(log)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key)
		if len(args) > 0 {
			p.HSet(ctx, r.key, args...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}

// hashArgs flattens log into date/json pairs sorted by date.
func hashArgs(log risk.SnapshotLog) ([]interface{}, error) {
	dates := make([]string, 0, len(log))
	for d := range log {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	args := make([]interface{}, 0, 2*len(dates))
	for _, d := range dates {
		b, err := json.Marshal(log[d])
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot %s: %w", d, err)
		}
		args = append(args, d, string(b))
	}
	return args, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
