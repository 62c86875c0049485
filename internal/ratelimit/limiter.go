package ratelimit

import (
	"time"
)

// Policy is the per-call admission configuration: at most MaxRequests per
// Window, and a BlockDuration penalty once the cap is exceeded.
type Policy struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration
}

// PolicyFromMillis builds a Policy from millisecond values, the unit used in
// config files.
func PolicyFromMillis(maxRequests, windowMS, blockMS int) Policy {
	return Policy{
		MaxRequests:   maxRequests,
		Window:        time.Duration(windowMS) * time.Millisecond,
		BlockDuration: time.Duration(blockMS) * time.Millisecond,
	}
}

// Validate rejects non-positive values. It never clamps.
func (p Policy) Validate() error {
	if p.MaxRequests <= 0 {
		return NewValidationError("max_requests", "must be greater than zero")
	}
	if p.Window <= 0 {
		return NewValidationError("window", "must be greater than zero")
	}
	if p.BlockDuration <= 0 {
		return NewValidationError("block_duration", "must be greater than zero")
	}
	return nil
}

// Status is a read-only snapshot of one identity's admission state.
type Status struct {
	Identity    string
	Count       int
	MaxRequests int
	Blocked     bool
	WindowStart time.Time
	UnblockAt   time.Time     // zero when no block is active
	RetryAfter  time.Duration // zero when not blocked
}

// UnblockTimeMillis returns UnblockAt as Unix milliseconds, or 0 when absent.
func (s Status) UnblockTimeMillis() int64 {
	if !s.Blocked || s.UnblockAt.IsZero() {
		return 0
	}
	return s.UnblockAt.UnixMilli()
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (s Status) RetryAfterSeconds() int {
	if s.RetryAfter <= 0 {
		return 0
	}
	sec := s.RetryAfter / time.Second
	if s.RetryAfter%time.Second != 0 {
		sec++
	}
	return int(sec)
}

type Decision struct {
	Allowed bool
	Tripped bool // this request moved the identity into the blocked state
	Status  Status
}

// Limiter is the admission controller contract. Implementations must be safe
// for concurrent use and must not block on I/O.
type Limiter interface {
	Allow(identity string, p Policy) (Decision, error)
	Check(identity string, p Policy) (bool, error)
	Status(identity string) (Status, error)
	Reset(identity string) error
	Unblock(identity string) error
	Close() error
}
