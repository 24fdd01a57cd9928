package navigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/storebot/core/retry"
)

// maxPath bounds the stored history per chat.
const maxPath = 64

type redisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	policy retry.Policy
}

// NewRedisStore keeps navigation under nav:<chat>:current and nav:<chat>:path.
// A zero ttl keeps records until overwritten.
func NewRedisStore(client redis.Cmdable, ttl time.Duration, policy retry.Policy) Store {
	return &redisStore{client: client, ttl: ttl, policy: policy}
}

func currentKey(chatID int64) string { return fmt.Sprintf("nav:%d:current", chatID) }
func pathKey(chatID int64) string    { return fmt.Sprintf("nav:%d:path", chatID) }

func (r *redisStore) Load(ctx context.Context, chatID int64) (State, error) {
	return retry.Value(ctx, r.policy, "nav.load", func(ctx context.Context) (State, error) {
		var cur *redis.StringCmd
		var path *redis.StringSliceCmd
		_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			cur = p.Get(ctx, currentKey(chatID))
			path = p.LRange(ctx, pathKey(chatID), 0, -1)
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return State{}, fmt.Errorf("redis load: %w", err)
		}
		current, err := cur.Result()
		if errors.Is(err, redis.Nil) {
			return State{}, nil
		}
		if err != nil {
			return State{}, fmt.Errorf("redis get current: %w", err)
		}
		raw, err := path.Result()
		if err != nil {
			return State{}, fmt.Errorf("redis get path: %w", err)
		}
		st := State{Current: Step(current), Path: make([]Step, 0, len(raw))}
		for _, s := range raw {
			st.Path = append(st.Path, Step(s))
		}
		return st, nil
	})
}

func (r *redisStore) Reset(ctx context.Context, chatID int64, step Step) error {
	return r.policy.Do(ctx, "nav.reset", func(ctx context.Context) error {
		_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, pathKey(chatID))
			p.Set(ctx, currentKey(chatID), string(step), r.ttl)
			p.RPush(ctx, pathKey(chatID), string(step))
			r.expirePath(ctx, p, chatID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis reset: %w", err)
		}
		return nil
	})
}

func (r *redisStore) Append(ctx context.Context, chatID int64, step Step) error {
	return r.policy.Do(ctx, "nav.append", func(ctx context.Context) error {
		_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, currentKey(chatID), string(step), r.ttl)
			p.RPush(ctx, pathKey(chatID), string(step))
			p.LTrim(ctx, pathKey(chatID), -maxPath, -1)
			r.expirePath(ctx, p, chatID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis append: %w", err)
		}
		return nil
	})
}

func (r *redisStore) expirePath(ctx context.Context, p redis.Pipeliner, chatID int64) {
	if r.ttl > 0 {
		p.Expire(ctx, pathKey(chatID), r.ttl)
	}
}
