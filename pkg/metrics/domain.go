package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics records counters for the separation and gifting workflows.
type DomainMetrics struct {
	scans         *prometheus.CounterVec
	giftsApplied  *prometheus.CounterVec
	giftsRevoked  prometheus.Counter
	transitions   *prometheus.CounterVec
	labelsPrinted prometheus.Counter
	evalDuration  prometheus.Histogram
}

// NewDomainMetrics registers the workflow metrics on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bag_scans_total",
		Help: "Bag scans grouped by outcome.",
	}, []string{"result"})
	giftsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gifts_applied_total",
		Help: "Gifts awarded grouped by condition type.",
	}, []string{"condition"})
	giftsRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gifts_revoked_total",
		Help: "Gift awards revoked before separation.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "separation_transitions_total",
		Help: "Bag separation status transitions.",
	}, []string{"to"})
	labelsPrinted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labels_printed_total",
		Help: "Bag labels rendered for print.",
	})
	evalDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gift_evaluation_seconds",
		Help:    "Duration of gift rule evaluation per cart.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(scans, giftsApplied, giftsRevoked, transitions, labelsPrinted, evalDuration)
	return &DomainMetrics{
		scans:         scans,
		giftsApplied:  giftsApplied,
		giftsRevoked:  giftsRevoked,
		transitions:   transitions,
		labelsPrinted: labelsPrinted,
		evalDuration:  evalDuration,
	}
}

// IncScan increments the scan counter for the given outcome.
func (m *DomainMetrics) IncScan(result string) {
	if m == nil || m.scans == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncGiftApplied increments the award counter for the given condition type.
func (m *DomainMetrics) IncGiftApplied(condition string) {
	if m == nil || m.giftsApplied == nil {
		return
	}
	m.giftsApplied.WithLabelValues(normalizeLabel(condition)).Inc()
}

// IncGiftRevoked increments the revocation counter.
func (m *DomainMetrics) IncGiftRevoked() {
	if m == nil || m.giftsRevoked == nil {
		return
	}
	m.giftsRevoked.Inc()
}

// IncTransition increments the transition counter toward the given status.
func (m *DomainMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncLabelPrinted increments the printed label counter.
func (m *DomainMetrics) IncLabelPrinted() {
	if m == nil || m.labelsPrinted == nil {
		return
	}
	m.labelsPrinted.Inc()
}

// ObserveEvaluation records the duration of one gift evaluation pass.
func (m *DomainMetrics) ObserveEvaluation(d time.Duration) {
	if m == nil || m.evalDuration == nil {
		return
	}
	m.evalDuration.Observe(d.Seconds())
}
