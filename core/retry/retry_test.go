package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storebot/core/config"
)

func fastPolicy(attempts int) (Policy, *[]time.Duration) {
	var slept []time.Duration
	p := Policy{
		Attempts:      attempts,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      25 * time.Millisecond,
		BackoffFactor: 2,
	}
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	p, slept := fastPolicy(4)
	calls := 0
	err := p.Do(context.Background(), "store.get", func(context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p, slept := fastPolicy(5)
	boom := errors.New("constraint violated")
	calls := 0
	err := p.Do(context.Background(), "store.put", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)

	calls = 0
	err = p.Do(context.Background(), "store.put", func(context.Context) error {
		calls++
		return Permanent(driver.ErrBadConn)
	})
	require.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, 1, calls)
}

func TestDoExhausts(t *testing.T) {
	p, slept := fastPolicy(3)
	err := p.Do(context.Background(), "media.upload", func(context.Context) error {
		return driver.ErrBadConn
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	p, _ := fastPolicy(10)
	assert.Equal(t, 25*time.Millisecond, p.backoff(3))
	assert.Equal(t, 25*time.Millisecond, p.backoff(8))

	p.Jitter = true
	for i := 0; i < 50; i++ {
		d := p.backoff(1)
		assert.GreaterOrEqual(t, d, 8*time.Millisecond)
		assert.LessOrEqual(t, d, 12*time.Millisecond)
	}
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := DefaultPolicy().Do(ctx, "nav.save", func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestValueReturnsResult(t *testing.T) {
	p, _ := fastPolicy(2)
	calls := 0
	v, err := Value(context.Background(), p, "store.list", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(coreconfig.RetryConfig{Attempts: 5, InitialDelay: time.Second})
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 3*time.Second, p.MaxDelay)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"canceled", context.Canceled, false},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"pq connection class", &pq.Error{Code: "08006"}, true},
		{"pq unique violation", &pq.Error{Code: "23505"}, false},
		{"s3 slowdown", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"s3 no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, false},
		{"redis loading", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"plain", errors.New("nope"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestDoHonoursWaitHint(t *testing.T) {
	p, slept := fastPolicy(2)
	p.WaitHint = func(error) time.Duration { return time.Second }
	calls := 0
	_ = p.Do(context.Background(), "tg.send", func(context.Context) error {
		calls++
		return driver.ErrBadConn
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, *slept)
}
