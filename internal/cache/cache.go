// Package cache is a small remote-data cache. Entries are keyed by resource
// and user id, served while fresh, refetched when stale or invalidated, and
// dropped once nothing has observed them for the GC window.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/huebot/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Key identifies one cached resource for one user.
type Key struct {
	Resource string
	UserID   int
	Extra    string
}

func (k Key) String() string {
	if k.Extra == "" {
		return fmt.Sprintf("%s/%d", k.Resource, k.UserID)
	}
	return fmt.Sprintf("%s/%d/%s", k.Resource, k.UserID, k.Extra)
}

// matches reports whether other falls under k. Empty Extra in k matches
// every Extra; a zero UserID in k matches every user.
func (k Key) matches(other Key) bool {
	if k.Resource != other.Resource {
		return false
	}
	if k.UserID != 0 && k.UserID != other.UserID {
		return false
	}
	return k.Extra == "" || k.Extra == other.Extra
}

// pending is one running fetch. stale is set when its key is invalidated or
// dropped before the result arrives.
type pending struct {
	key   Key
	stale bool
}

type entry struct {
	key       Key
	value     any
	updatedAt time.Time
	lastUsed  time.Time
	invalid   bool
	observers int
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// GCTime is how long an unobserved entry survives. Default 1h.
	GCTime time.Duration
	Logger *logging.Logger
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Client holds cache entries and the background refresh scheduler.
type Client struct {
	gcTime time.Duration
	now    func() time.Time
	log    *logging.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	listeners []func(Key)
	inflight  map[string]*pending

	group singleflight.Group
	sched *cron.Cron
}

// scheduleParser accepts standard 5-field expressions and @every descriptors.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewClient creates an empty cache.
func NewClient(opts ClientOptions) *Client {
	if opts.GCTime <= 0 {
		opts.GCTime = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Client{
		gcTime:   opts.GCTime,
		now:      opts.Now,
		log:      opts.Logger,
		entries:  make(map[string]*entry),
		inflight: make(map[string]*pending),
		sched:    cron.New(cron.WithParser(scheduleParser)),
	}
}

// OnUpdate registers fn to be called after every successful fetch or Set.
func (c *Client) OnUpdate(fn func(Key)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Set stores value under key as freshly fetched.
func (c *Client) Set(key Key, value any) {
	c.store(key, value)
}

func (c *Client) store(key Key, value any) {
	c.mu.Lock()
	c.put(key, value, false)
	listeners := append([]func(Key){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key)
	}
}

// put writes value under key. Callers hold c.mu.
func (c *Client) put(key Key, value any, invalid bool) {
	now := c.now()
	e, ok := c.entries[key.String()]
	if !ok {
		e = &entry{key: key}
		c.entries[key.String()] = e
	}
	e.value = value
	e.updatedAt = now
	e.lastUsed = now
	e.invalid = invalid
}

// beginFetch registers a fetch for key so that invalidations arriving before
// it finishes are not lost.
func (c *Client) beginFetch(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key.String()] = &pending{key: key}
}

// endFetch unregisters a fetch that failed.
func (c *Client) endFetch(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key.String())
}

// storeFetched saves the result of a fetch started by beginFetch. When the
// key was invalidated meanwhile the value is kept but stays stale, so the
// next query fetches again.
func (c *Client) storeFetched(key Key, value any) {
	c.mu.Lock()
	f, ok := c.inflight[key.String()]
	delete(c.inflight, key.String())
	c.put(key, value, ok && f.stale)
	listeners := append([]func(Key){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key)
	}
}

// lookup returns the entry's value and whether it is fresh under staleTime.
func (c *Client) lookup(key Key, staleTime time.Duration) (value any, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key.String()]
	if !found {
		return nil, false, false
	}
	now := c.now()
	e.lastUsed = now
	fresh = !e.invalid && now.Sub(e.updatedAt) < staleTime
	return e.value, fresh, true
}

func (c *Client) invalidated(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	return ok && e.invalid
}

// Invalidate marks every entry under prefix stale so the next query refetches.
// It returns the number of entries marked.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markInflight(prefix)
	n := 0
	for _, e := range c.entries {
		if prefix.matches(e.key) {
			e.invalid = true
			n++
		}
	}
	return n
}

// markInflight flags running fetches under prefix as stale. Callers hold c.mu.
func (c *Client) markInflight(prefix Key) {
	for _, f := range c.inflight {
		if prefix.matches(f.key) {
			f.stale = true
		}
	}
}

// Remove drops every entry under prefix.
func (c *Client) Remove(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markInflight(prefix)
	n := 0
	for k, e := range c.entries {
		if prefix.matches(e.key) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear drops everything, e.g. on sign-out.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	for _, f := range c.inflight {
		f.stale = true
	}
}

// GC drops entries that have no observers and have not been used within the
// GC window. It returns the number removed.
func (c *Client) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.gcTime)
	n := 0
	for k, e := range c.entries {
		if e.observers == 0 && e.lastUsed.Before(cutoff) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys lists the cached keys in no particular order.
func (c *Client) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}

func (c *Client) addObserver(key Key, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		if delta < 0 {
			return
		}
		e = &entry{key: key, invalid: true}
		c.entries[key.String()] = e
	}
	e.observers += delta
	if e.observers < 0 {
		e.observers = 0
	}
	e.lastUsed = c.now()
}

// Schedule runs job on a cron schedule once the client is started. Runs are
// skipped once ctx is done.
func (c *Client) Schedule(ctx context.Context, spec, name string, job func(context.Context)) (cron.EntryID, error) {
	id, err := c.sched.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("cache: schedule %s %q: %w", name, spec, err)
	}
	c.log.Debug("cache job scheduled", "job", name, "schedule", spec)
	return id, nil
}

// StartJanitor schedules periodic GC.
func (c *Client) StartJanitor(ctx context.Context, spec string) error {
	_, err := c.Schedule(ctx, spec, "gc", func(context.Context) {
		if n := c.GC(); n > 0 {
			c.log.Debug("cache gc", "removed", n)
		}
	})
	return err
}

// Start begins running scheduled jobs.
func (c *Client) Start() { c.sched.Start() }

// Stop halts the scheduler and waits for running jobs to finish.
func (c *Client) Stop() { <-c.sched.Stop().Done() }

// ValidateSchedule reports whether spec parses.
func ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("cache: empty schedule")
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("cache: invalid schedule %q: %w", spec, err)
	}
	return nil
}
