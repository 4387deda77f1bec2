package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/huebot/internal/api"
)

// Fetcher loads a resource from the service.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options tune one query.
type Options struct {
	// StaleTime is how long fetched data is served without refetching.
	StaleTime time.Duration
	// RefetchOnMount makes the first Get of an Observer refetch stale data
	// instead of serving it.
	RefetchOnMount bool
	// Retry is how many times a failed fetch is repeated. Client errors
	// (4xx) are never retried.
	Retry int
	// RetryDelay is the first backoff interval; it doubles per attempt up to
	// MaxRetryDelay. Defaults 1s and 30s.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (o Options) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.RetryDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.MaxInterval = o.MaxRetryDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = 30 * time.Second
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}

// Query returns the cached value for key when fresh and otherwise fetches it.
func Query[T any](ctx context.Context, c *Client, key Key, fetch Fetcher[T], opts Options) (T, error) {
	if v, fresh, ok := c.lookup(key, opts.StaleTime); ok && fresh {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	return Refetch(ctx, c, key, fetch, opts)
}

// Refetch fetches key unconditionally. Concurrent calls for the same key share
// one request.
func Refetch[T any](ctx context.Context, c *Client, key Key, fetch Fetcher[T], opts Options) (T, error) {
	var zero T
	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		c.beginFetch(key)
		attempt := 0
		op := func() (T, error) {
			attempt++
			val, err := fetch(ctx)
			if err == nil {
				return val, nil
			}
			if !api.IsRetryable(err) {
				return val, backoff.Permanent(err)
			}
			c.log.Debug("cache fetch failed", "key", key.String(), "attempt", attempt, "error", err)
			return val, err
		}
		val, err := backoff.Retry(ctx, op,
			backoff.WithBackOff(opts.backOff()),
			backoff.WithMaxTries(uint(opts.Retry+1)),
		)
		if err != nil {
			c.endFetch(key)
			return nil, err
		}
		c.storeFetched(key, val)
		return val, nil
	})
	if err != nil {
		return zero, fmt.Errorf("cache: fetch %s: %w", key, err)
	}
	if shared {
		c.log.Debug("cache fetch shared", "key", key.String())
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: %s holds %T", key, v)
	}
	return t, nil
}

// Peek returns whatever is cached for key, fresh or not, without fetching.
func Peek[T any](c *Client, key Key) (T, bool) {
	var zero T
	v, _, ok := c.lookup(key, 0)
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Observer is one long-lived consumer of a key, such as a screen that stays
// open. While any observer is open the entry is exempt from GC.
type Observer[T any] struct {
	c       *Client
	key     Key
	fetch   Fetcher[T]
	opts    Options
	mounted bool
	closed  bool
}

// Observe opens an observer for key.
func Observe[T any](c *Client, key Key, fetch Fetcher[T], opts Options) *Observer[T] {
	c.addObserver(key, 1)
	return &Observer[T]{c: c, key: key, fetch: fetch, opts: opts}
}

// Get returns the current value. On the first call, stale data is served as
// is unless RefetchOnMount is set; missing or invalidated data is always
// fetched. Later calls refetch whenever the data is stale.
func (o *Observer[T]) Get(ctx context.Context) (T, error) {
	first := !o.mounted
	o.mounted = true

	v, fresh, ok := o.c.lookup(o.key, o.opts.StaleTime)
	if ok && v != nil && !o.c.invalidated(o.key) {
		if t, isT := v.(T); isT && (fresh || (first && !o.opts.RefetchOnMount)) {
			return t, nil
		}
	}
	return Refetch(ctx, o.c, o.key, o.fetch, o.opts)
}

// Refetch forces a fetch.
func (o *Observer[T]) Refetch(ctx context.Context) (T, error) {
	return Refetch(ctx, o.c, o.key, o.fetch, o.opts)
}

// Close releases the observer. Closing twice is a no-op.
func (o *Observer[T]) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.c.addObserver(o.key, -1)
}

// AutoRefresh refetches key on a cron schedule once the client is started.
// Failures are logged; the previous value stays cached.
func AutoRefresh[T any](ctx context.Context, c *Client, spec string, key Key, fetch Fetcher[T], opts Options) (cron.EntryID, error) {
	return c.Schedule(ctx, spec, "refresh "+key.String(), func(ctx context.Context) {
		if _, err := Refetch(ctx, c, key, fetch, opts); err != nil {
			c.log.Warn("cache auto-refresh failed", "key", key.String(), "error", err)
		}
	})
}
