package kv

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/utils"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 100 * time.Millisecond
)

// connectionMarkers are the message fragments that identify a transient
// connection failure. Anything else fails on the first attempt.
var connectionMarkers = []string{"Connection reset", "ECONNRESET", "network", "timeout", "ETIMEDOUT"}

type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsConnectionError reports whether err looks like a transient connection
// failure worth retrying.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := err.Error()
	for _, m := range connectionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// WithRetry runs op up to MaxRetries times, waiting BaseDelay*attempt between
// attempts, as long as the failure is a connection error.
func WithRetry[T any](ctx context.Context, name string, op func(context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !IsConnectionError(err) {
			return zero, err
		}
		if attempt >= opts.MaxRetries {
			utils.LogCtx(ctx, "kv", "retry_exhausted", fmt.Sprintf("op=%s attempts=%d err=%v", name, attempt, err))
			return zero, domain.UnavailableError{Dependency: "store", Err: err}
		}
		delay := opts.BaseDelay * time.Duration(attempt)
		utils.LogCtx(ctx, "kv", "retry", fmt.Sprintf("op=%s attempt=%d next_delay=%s err=%v", name, attempt, delay, err))
		if serr := opts.Sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}

// RetryStore applies WithRetry to every operation of the wrapped Store.
type RetryStore struct {
	next Store
	opts RetryOptions
}

func NewRetryStore(next Store, opts RetryOptions) *RetryStore {
	return &RetryStore{next: next, opts: opts}
}

// Unwrap exposes the underlying backend for diagnostics.
func (r *RetryStore) Unwrap() Store { return r.next }

type none struct{}

func (r *RetryStore) exec(ctx context.Context, name string, op func(context.Context) error) error {
	_, err := WithRetry(ctx, name, func(ctx context.Context) (none, error) {
		return none{}, op(ctx)
	}, r.opts)
	return err
}

func (r *RetryStore) Get(ctx context.Context, key string) ([]byte, error) {
	return WithRetry(ctx, "get", func(ctx context.Context) ([]byte, error) {
		return r.next.Get(ctx, key)
	}, r.opts)
}

func (r *RetryStore) Set(ctx context.Context, key string, value []byte) error {
	return r.exec(ctx, "set", func(ctx context.Context) error {
		return r.next.Set(ctx, key, value)
	})
}

func (r *RetryStore) Delete(ctx context.Context, key string) error {
	return r.exec(ctx, "delete", func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

func (r *RetryStore) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	return WithRetry(ctx, "mget", func(ctx context.Context) (map[string][]byte, error) {
		return r.next.MGet(ctx, keys)
	}, r.opts)
}

func (r *RetryStore) MSet(ctx context.Context, entries []Entry) error {
	return r.exec(ctx, "mset", func(ctx context.Context) error {
		return r.next.MSet(ctx, entries)
	})
}

func (r *RetryStore) MDel(ctx context.Context, keys []string) error {
	return r.exec(ctx, "mdel", func(ctx context.Context) error {
		return r.next.MDel(ctx, keys)
	})
}

func (r *RetryStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	return WithRetry(ctx, "getByPrefix", func(ctx context.Context) ([]Entry, error) {
		return r.next.GetByPrefix(ctx, prefix)
	}, r.opts)
}

func (r *RetryStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return WithRetry(ctx, "keysByPrefix", func(ctx context.Context) ([]string, error) {
		return r.next.KeysByPrefix(ctx, prefix)
	}, r.opts)
}

func (r *RetryStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return WithRetry(ctx, "setIfAbsent", func(ctx context.Context) (bool, error) {
		return r.next.SetIfAbsent(ctx, key, value)
	}, r.opts)
}

func (r *RetryStore) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	return WithRetry(ctx, "compareAndSwap", func(ctx context.Context) (bool, error) {
		return r.next.CompareAndSwap(ctx, key, old, value)
	}, r.opts)
}

func (r *RetryStore) Ping(ctx context.Context) error {
	return r.exec(ctx, "ping", r.next.Ping)
}
