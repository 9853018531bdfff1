package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding module: how many invites
// get saved, how many promotions succeed, and where the non-rolled-back
// promotion sequence fails when it does.
type Metrics struct {
	InvitesSaved      prometheus.Counter
	UsersPromoted     prometheus.Counter
	PromotionFailures *prometheus.CounterVec
	SaveDuration      prometheus.Histogram
	PromoteDuration   prometheus.Histogram
	PendingInvites    prometheus.Gauge
}

// New creates a Metrics instance with all onboarding metrics registered on
// the default registerer. Construct once per process.
func New() *Metrics {
	return &Metrics{
		InvitesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetdir_invites_saved_total",
			Help: "Total number of invites persisted to the pending namespace",
		}),
		UsersPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetdir_users_promoted_total",
			Help: "Total number of invites promoted to live users",
		}),
		PromotionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meetdir_promotion_failures_total",
			Help: "Promotion failures by failing step; these leave the directory in an intermediate state",
		}, []string{"step"}),
		SaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetdir_invite_save_duration_seconds",
			Help:    "Duration of invite validation plus persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PromoteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetdir_promotion_duration_seconds",
			Help:    "Duration of the full three-step promotion sequence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PendingInvites: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meetdir_pending_invites",
			Help: "Current number of entries in the pending namespace",
		}),
	}
}

// IncrementInviteSaved records a successful save.
func (m *Metrics) IncrementInviteSaved() {
	m.InvitesSaved.Inc()
}

// IncrementUserPromoted records a completed promotion.
func (m *Metrics) IncrementUserPromoted() {
	m.UsersPromoted.Inc()
}

// IncrementPromotionFailure records a promotion failure at the given step.
func (m *Metrics) IncrementPromotionFailure(step string) {
	m.PromotionFailures.WithLabelValues(step).Inc()
}

// ObserveSave records the duration of a Save. Call with time.Now() taken at
// the start of the operation.
func (m *Metrics) ObserveSave(start time.Time) {
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

// ObservePromote records the duration of a Promote.
func (m *Metrics) ObservePromote(start time.Time) {
	m.PromoteDuration.Observe(time.Since(start).Seconds())
}

// SetPendingInvites records the pending backlog size.
func (m *Metrics) SetPendingInvites(n int) {
	m.PendingInvites.Set(float64(n))
}
