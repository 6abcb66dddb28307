package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendcore/core/events"
)

// EventMetrics derives counters from committed ledger events. Reverted
// executions never reach it, so volumes only count settled flows.
type EventMetrics struct {
	events *prometheus.CounterVec
	volume *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the registry tracking committed bank events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "total",
				Help:      "Committed ledger events by type.",
			}, []string{"type"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bank",
				Name:      "volume_total",
				Help:      "Borrowed and repaid amounts in base units, by bank and direction.",
			}, []string{"bank", "direction"}),
		}
		prometheus.MustRegister(eventRegistry.events, eventRegistry.volume)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	switch e := evt.(type) {
	case events.Borrow:
		m.addVolume(e.Bank.Hex(), "borrow", e.Amount)
	case events.Repay:
		m.addVolume(e.Bank.Hex(), "repay", e.Amount)
	}
}

func (m *EventMetrics) addVolume(bank, direction string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	m.volume.WithLabelValues(strings.ToLower(bank), direction).Add(f)
}
