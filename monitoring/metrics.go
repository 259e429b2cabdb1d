package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	ticketVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_verifications_total",
			Help: "Verification attempts by outcome",
		},
		[]string{"status"},
	)

	checksumMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_checksum_mismatch_total",
			Help: "Credentials that failed the checksum check, a potential tampering signal",
		},
	)

	ticketIssuance = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_issuance_total",
			Help: "Issuance attempts by outcome",
		},
		[]string{"status"},
	)

	issuanceCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_issuance_collisions_total",
			Help: "Credential uniqueness conflicts resolved by serial retry",
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_cache_lookups_total",
			Help: "Verification cache operations by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickets_issued",
			Help: "Total tickets currently in the store",
		},
	)

	cacheUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verify_cache_up",
			Help: "1 when redis answers ping, 0 otherwise",
		},
	)
)

// TrackVerification counts one verification attempt.
func TrackVerification(status string) {
	ticketVerifications.WithLabelValues(status).Inc()
}

// TrackChecksumMismatch counts a failed checksum check.
func TrackChecksumMismatch() {
	checksumMismatches.Inc()
}

// TrackIssuance counts one issuance attempt outcome.
func TrackIssuance(status string) {
	ticketIssuance.WithLabelValues(status).Inc()
}

// TrackIssuanceCollision counts one duplicate-credential retry.
func TrackIssuanceCollision() {
	issuanceCollisions.Inc()
}

// TrackCacheLookup counts one cache operation outcome.
func TrackCacheLookup(outcome string) {
	cacheLookups.WithLabelValues(outcome).Inc()
}

// TicketCounter is the slice of the store the monitor needs.
type TicketCounter interface {
	CountTickets(ctx context.Context) (int, error)
}

type Monitor struct {
	redis *redis.Client
	store TicketCounter
}

// NewMonitor starts periodic gauge collection until ctx is cancelled.
func NewMonitor(ctx context.Context, redisClient *redis.Client, st TicketCounter) *Monitor {
	monitor := &Monitor{redis: redisClient, store: st}
	go monitor.collectMetrics(ctx)
	return monitor
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectOnce(ctx)
		}
	}
}

func (m *Monitor) collectOnce(ctx context.Context) {
	if m.store != nil {
		if n, err := m.store.CountTickets(ctx); err == nil {
			ticketsIssued.Set(float64(n))
		}
	}

	if m.redis != nil {
		if err := m.redis.Ping(ctx).Err(); err != nil {
			cacheUp.Set(0)
		} else {
			cacheUp.Set(1)
		}
	}
}
