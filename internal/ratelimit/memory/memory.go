package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/ratelimit"
)

// record is the window state of one identity. A zero windowStart means the
// record was just stored and has not admitted anything yet.
type record struct {
	mu           sync.Mutex
	count        int
	windowStart  time.Time
	blockedUntil time.Time
	limit        int
	window       time.Duration
	dead         bool // removed from the map; callers must look up again
}

func (r *record) blockedAt(now time.Time) bool {
	return !r.blockedUntil.IsZero() && now.Before(r.blockedUntil)
}

func (r *record) startWindow(now time.Time) {
	r.count = 1
	r.windowStart = now
	r.blockedUntil = time.Time{}
}

func (r *record) snapshot(identity string, now time.Time) ratelimit.Status {
	st := ratelimit.Status{
		Identity:    identity,
		MaxRequests: r.limit,
	}
	if r.blockedAt(now) {
		st.Count = r.count
		st.WindowStart = r.windowStart
		st.Blocked = true
		st.UnblockAt = r.blockedUntil
		st.RetryAfter = r.blockedUntil.Sub(now)
		return st
	}
	// a lapsed block or an expired window means the next request starts over
	if r.blockedUntil.IsZero() && now.Sub(r.windowStart) < r.window {
		st.Count = r.count
		st.WindowStart = r.windowStart
	}
	return st
}

type Option func(*Controller)

// WithClock replaces time.Now. The default clock carries Go's monotonic
// reading, so wall-clock jumps do not move windows.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithEvictHook is called with the number of records removed by each sweep.
func WithEvictHook(fn func(n int)) Option {
	return func(c *Controller) { c.onEvict = fn }
}

// Controller is an in-memory fixed-window admission controller with a
// post-violation block.
type Controller struct {
	now     func() time.Time
	log     zerolog.Logger
	onEvict func(n int)

	records sync.Map // identity -> *record
	size    atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ratelimit.Limiter = (*Controller)(nil)

func New(opts ...Option) *Controller {
	c := &Controller{
		now:  time.Now,
		log:  zerolog.Nop(),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// acquire returns the live record for identity, locked.
func (c *Controller) acquire(identity string) *record {
	for {
		v, ok := c.records.Load(identity)
		if !ok {
			var loaded bool
			v, loaded = c.records.LoadOrStore(identity, &record{})
			if !loaded {
				c.size.Add(1)
			}
		}
		r := v.(*record)
		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// lookup returns the live record for identity, locked, or nil.
func (c *Controller) lookup(identity string) *record {
	v, ok := c.records.Load(identity)
	if !ok {
		return nil
	}
	r := v.(*record)
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return nil
	}
	return r
}

// remove must be called with r locked.
func (c *Controller) remove(identity string, r *record) {
	r.dead = true
	if c.records.CompareAndDelete(identity, r) {
		c.size.Add(-1)
	}
}

func (c *Controller) Allow(identity string, p ratelimit.Policy) (ratelimit.Decision, error) {
	if identity == "" {
		return ratelimit.Decision{}, ratelimit.ErrEmptyIdentity
	}
	if err := p.Validate(); err != nil {
		return ratelimit.Decision{}, err
	}

	r := c.acquire(identity)
	defer r.mu.Unlock()

	now := c.now()
	r.limit = p.MaxRequests
	r.window = p.Window

	dec := ratelimit.Decision{Allowed: true}
	switch {
	case r.windowStart.IsZero():
		r.startWindow(now)
	case r.blockedAt(now):
		// denied retries do not touch count or windowStart
		dec.Allowed = false
	case !r.blockedUntil.IsZero():
		// block served
		r.startWindow(now)
	case now.Sub(r.windowStart) >= p.Window:
		r.startWindow(now)
	default:
		r.count++
		if r.count > p.MaxRequests {
			r.blockedUntil = now.Add(p.BlockDuration)
			dec.Allowed = false
			dec.Tripped = true
		}
	}

	dec.Status = r.snapshot(identity, now)
	return dec, nil
}

func (c *Controller) Check(identity string, p ratelimit.Policy) (bool, error) {
	dec, err := c.Allow(identity, p)
	if err != nil {
		return false, err
	}
	return dec.Allowed, nil
}

// Status never creates a record.
func (c *Controller) Status(identity string) (ratelimit.Status, error) {
	if identity == "" {
		return ratelimit.Status{}, ratelimit.ErrEmptyIdentity
	}
	r := c.lookup(identity)
	if r == nil {
		return ratelimit.Status{Identity: identity}, nil
	}
	defer r.mu.Unlock()
	return r.snapshot(identity, c.now()), nil
}

// Reset forgets identity entirely. It is a no-op for unknown identities.
func (c *Controller) Reset(identity string) error {
	if identity == "" {
		return ratelimit.ErrEmptyIdentity
	}
	r := c.lookup(identity)
	if r == nil {
		return nil
	}
	defer r.mu.Unlock()
	c.remove(identity, r)
	return nil
}

// Unblock lifts an active block but keeps the current window. The count that
// ran past the cap is rolled back so the next request is admitted. Identities
// that are not blocked, including those whose block already lapsed, are left
// untouched.
func (c *Controller) Unblock(identity string) error {
	if identity == "" {
		return ratelimit.ErrEmptyIdentity
	}
	r := c.lookup(identity)
	if r == nil {
		return nil
	}
	defer r.mu.Unlock()
	if !r.blockedAt(c.now()) {
		return nil
	}
	r.blockedUntil = time.Time{}
	if r.count > r.limit-1 {
		r.count = max(r.limit-1, 0)
	}
	return nil
}

// Len reports the number of live records.
func (c *Controller) Len() int {
	return int(c.size.Load())
}

// Sweep evicts records that are not blocked and whose window ended more
// than idle ago (or whose own window, if longer).
func (c *Controller) Sweep(idle time.Duration) int {
	now := c.now()
	n := 0
	c.records.Range(func(k, v any) bool {
		r := v.(*record)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dead || r.blockedAt(now) {
			return true
		}
		if now.Sub(r.windowStart) >= max(r.window, idle) {
			c.remove(k.(string), r)
			n++
		}
		return true
	})
	if n > 0 && c.onEvict != nil {
		c.onEvict(n)
	}
	return n
}

// StartJanitor sweeps every `every` until ctx is done or Close is called.
func (c *Controller) StartJanitor(ctx context.Context, every, idle time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				if n := c.Sweep(idle); n > 0 {
					c.log.Debug().Int("evicted", n).Int("records", c.Len()).Msg("limiter sweep")
				}
			}
		}
	}()
}

func (c *Controller) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}
