package obs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/gateway"
	"github.com/AlexKimmel/supportbot/internal/routing"
)

type Metrics struct {
	UpdatesTotal   *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	RateLimited    *prometheus.CounterVec
	LimiterErrors  *prometheus.CounterVec
	LimiterTrips   prometheus.Counter
	LimiterEvicted prometheus.Counter

	reg prometheus.Registerer
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportbot_updates_total",
				Help: "Total chat updates processed",
			},
			[]string{"route", "outcome"},
		),
		UpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "supportbot_update_duration_seconds",
				Help:    "Update handling duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportbot_rate_limited_total",
				Help: "Total updates rejected by admission control",
			},
			[]string{"route"},
		),
		LimiterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportbot_limiter_errors_total",
				Help: "Total admission controller errors",
			},
			[]string{"route"},
		),
		LimiterTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supportbot_limiter_trips_total",
			Help: "Total identities moved into the blocked state",
		}),
		LimiterEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supportbot_limiter_evicted_total",
			Help: "Total idle limiter records evicted by the janitor",
		}),
		reg: reg,
	}

	reg.MustRegister(m.UpdatesTotal, m.UpdateDuration, m.RateLimited, m.LimiterErrors, m.LimiterTrips, m.LimiterEvicted)
	return m
}

// RegisterRecords exports the live limiter record count.
func (m *Metrics) RegisterRecords(size func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "supportbot_limiter_records",
		Help: "Identities currently tracked by the admission controller",
	}, func() float64 { return float64(size()) }))
}

func (m *Metrics) OnLimited(routeID string, tripped bool) {
	m.RateLimited.WithLabelValues(routeID).Inc()
	if tripped {
		m.LimiterTrips.Inc()
	}
}

func (m *Metrics) OnLimiterError(routeID string) {
	m.LimiterErrors.WithLabelValues(routeID).Inc()
}

func (m *Metrics) OnEvict(n int) {
	m.LimiterEvicted.Add(float64(n))
}

// Middleware records per-update metrics. It must run after
// gateway.RouteMatcher so the route label is known.
func (m *Metrics) Middleware() gateway.Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			start := time.Now()
			err := next.Handle(ctx, u)

			route := routing.RouteID(ctx)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.UpdateDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			m.UpdatesTotal.WithLabelValues(route, outcome).Inc()
			return err
		})
	}
}
