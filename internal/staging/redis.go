package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/storebot/core/retry"
)

type redisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	policy retry.Policy
}

// NewRedisStore keeps JSON records under stage:order:<chat> and stage:product:<chat>.
// Prices are encoded as decimal strings.
func NewRedisStore(client redis.Cmdable, ttl time.Duration, policy retry.Policy) Store {
	return &redisStore{client: client, ttl: ttl, policy: policy}
}

func orderKey(chatID int64) string { return fmt.Sprintf("stage:order:%d", chatID) }
func draftKey(chatID int64) string { return fmt.Sprintf("stage:product:%d", chatID) }

func (r *redisStore) SaveOrder(ctx context.Context, chatID int64, o OrderInProgress) error {
	return r.put(ctx, "staging.save_order", orderKey(chatID), o)
}

func (r *redisStore) LoadOrder(ctx context.Context, chatID int64) (OrderInProgress, bool, error) {
	var o OrderInProgress
	ok, err := r.get(ctx, "staging.load_order", orderKey(chatID), &o)
	return o, ok, err
}

func (r *redisStore) DropOrder(ctx context.Context, chatID int64) error {
	return r.del(ctx, "staging.drop_order", orderKey(chatID))
}

func (r *redisStore) SaveDraft(ctx context.Context, chatID int64, d ProductDraft) error {
	return r.put(ctx, "staging.save_draft", draftKey(chatID), d)
}

func (r *redisStore) LoadDraft(ctx context.Context, chatID int64) (ProductDraft, bool, error) {
	var d ProductDraft
	ok, err := r.get(ctx, "staging.load_draft", draftKey(chatID), &d)
	return d, ok, err
}

func (r *redisStore) DropDraft(ctx context.Context, chatID int64) error {
	return r.del(ctx, "staging.drop_draft", draftKey(chatID))
}

func (r *redisStore) put(ctx context.Context, op, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.policy.Do(ctx, op, func(ctx context.Context) error {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
		return nil
	})
}

func (r *redisStore) get(ctx context.Context, op, key string, out any) (bool, error) {
	data, err := retry.Value(ctx, r.policy, op, func(ctx context.Context) ([]byte, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		return data, nil
	})
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (r *redisStore) del(ctx context.Context, op, key string) error {
	return r.policy.Do(ctx, op, func(ctx context.Context) error {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", key, err)
		}
		return nil
	})
}
