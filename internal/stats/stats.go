// Package stats records admission outcomes for dashboards. Recording is
// best-effort: callers log failures and carry on.
package stats

import (
	"context"
	"sync"
	"time"
)

type Outcome string

const (
	Allowed Outcome = "allowed"
	Denied  Outcome = "denied"
	Tripped Outcome = "tripped" // denial that started a block
)

type Event struct {
	Identity string
	Route    string
	Outcome  Outcome
	At       time.Time
}

type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

type Counters struct {
	Allowed int64
	Denied  int64
	Tripped int64
}

func (c *Counters) add(o Outcome) {
	switch o {
	case Allowed:
		c.Allowed++
	case Denied:
		c.Denied++
	case Tripped:
		c.Denied++
		c.Tripped++
	}
}

// Memory keeps totals in process. Nothing expires.
type Memory struct {
	mu         sync.Mutex
	total      Counters
	byIdentity map[string]Counters
}

func NewMemory() *Memory {
	return &Memory{byIdentity: make(map[string]Counters)}
}

func (m *Memory) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.add(ev.Outcome)
	c := m.byIdentity[ev.Identity]
	c.add(ev.Outcome)
	m.byIdentity[ev.Identity] = c
	return nil
}

func (m *Memory) Total() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *Memory) ByIdentity(identity string) Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byIdentity[identity]
}
