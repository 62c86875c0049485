package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps cumulative totals plus per-minute buckets:
//
//	<prefix>:total                 hash allowed/denied/tripped
//	<prefix>:minute:<yyyymmddhhmm> hash, expires after ttl
//	<prefix>:route                 hash "<route>:<outcome>"
//	<prefix>:identity:<id>         hash, only with WithTrackIdentities
type Redis struct {
	rdb             redis.Cmdable
	prefix          string
	ttl             time.Duration
	trackIdentities bool
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) { s.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *Redis) { s.ttl = d }
}

func WithTrackIdentities(track bool) RedisOption {
	return func(s *Redis) { s.trackIdentities = track }
}

func NewRedis(rdb redis.Cmdable, opts ...RedisOption) *Redis {
	s := &Redis{
		rdb:    rdb,
		prefix: "supportbot:admission",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := []string{string(ev.Outcome)}
	if ev.Outcome == Tripped {
		fields = append(fields, string(Denied))
	}

	pipe := s.rdb.Pipeline()
	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	for _, f := range fields {
		pipe.HIncrBy(ctx, s.prefix+":total", f, 1)
		pipe.HIncrBy(ctx, bucketKey, f, 1)
		if ev.Route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", ev.Route+":"+f, 1)
		}
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if s.trackIdentities && ev.Identity != "" {
		idKey := s.prefix + ":identity:" + ev.Identity
		for _, f := range fields {
			pipe.HIncrBy(ctx, idKey, f, 1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, idKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Totals reads the cumulative counters.
func (s *Redis) Totals(ctx context.Context) (Counters, error) {
	m, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, err
	}
	return Counters{
		Allowed: parseCount(m[string(Allowed)]),
		Denied:  parseCount(m[string(Denied)]),
		Tripped: parseCount(m[string(Tripped)]),
	}, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
