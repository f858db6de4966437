package gravity

import "github.com/prometheus/client_golang/prometheus"

// Metrics — Prometheus-метрики движка. Все методы безопасны для nil.
type Metrics struct {
	collapsed  *prometheus.CounterVec
	queueDepth prometheus.Gauge
	drainTicks prometheus.Counter
	denied     prometheus.Counter
	landings   *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg (если reg != nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		collapsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gravity",
			Name:      "collapsed_total",
			Help:      "Число обрушившихся блоков (phase=event|tick).",
		}, []string{"phase"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gravity",
			Name:      "queue_depth",
			Help:      "Количество клеток в очереди обрушения.",
		}),
		drainTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gravity",
			Name:      "drain_ticks_total",
			Help:      "Число тиков, в которых выполнялся разбор очереди.",
		}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gravity",
			Name:      "placements_denied_total",
			Help:      "Отклонённые установки блоков без опоры.",
		}),
		landings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gravity",
			Name:      "landings_total",
			Help:      "Приземления падающих блоков (action=place|drop).",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.collapsed, m.queueDepth, m.drainTicks, m.denied, m.landings)
	}
	return m
}

func (m *Metrics) collapsedInc(phase string) {
	if m != nil {
		m.collapsed.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) drainTick() {
	if m != nil {
		m.drainTicks.Inc()
	}
}

func (m *Metrics) deniedInc() {
	if m != nil {
		m.denied.Inc()
	}
}

func (m *Metrics) landingInc(action string) {
	if m != nil {
		m.landings.WithLabelValues(action).Inc()
	}
}
