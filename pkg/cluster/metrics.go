package cluster

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the prometheus vectors shared by every cluster of a process.
type Collector struct {
	operations   *prometheus.CounterVec
	nodeFailures *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	aliveNodes   *prometheus.GaugeVec
}

// NewCollector creates the cluster metrics and registers them with reg.
// Vectors already registered by an earlier collector are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memcluster",
			Name:      "operations_total",
			Help:      "Operations submitted to the cluster, by outcome of routing.",
		}, []string{"cluster", "result"}),
		nodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memcluster",
			Name:      "node_failures_total",
			Help:      "Node I/O failures, by severity.",
		}, []string{"cluster", "kind"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memcluster",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts for dead nodes, by outcome.",
		}, []string{"cluster", "outcome"}),
		aliveNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "memcluster",
			Name:      "alive_nodes",
			Help:      "Nodes currently in the working set.",
		}, []string{"cluster"}),
	}

	if reg == nil {
		return c, nil
	}
	var err error
	if c.operations, err = register(reg, c.operations); err != nil {
		return nil, err
	}
	if c.nodeFailures, err = register(reg, c.nodeFailures); err != nil {
		return nil, err
	}
	if c.reconnects, err = register(reg, c.reconnects); err != nil {
		return nil, err
	}
	if c.aliveNodes, err = register(reg, c.aliveNodes); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ForCluster returns the metrics handle for one cluster.
func (c *Collector) ForCluster(name string) *Metrics {
	if c == nil {
		return nil
	}
	return &Metrics{collector: c, cluster: name}
}

// Metrics records events for one cluster. A nil *Metrics records nothing.
type Metrics struct {
	collector *Collector
	cluster   string
}

func (m *Metrics) operation(result string) {
	if m == nil {
		return
	}
	m.collector.operations.WithLabelValues(m.cluster, result).Inc()
}

func (m *Metrics) nodeFailed(kind string) {
	if m == nil {
		return
	}
	m.collector.nodeFailures.WithLabelValues(m.cluster, kind).Inc()
}

func (m *Metrics) reconnect(outcome string) {
	if m == nil {
		return
	}
	m.collector.reconnects.WithLabelValues(m.cluster, outcome).Inc()
}

func (m *Metrics) setAlive(n int) {
	if m == nil {
		return
	}
	m.collector.aliveNodes.WithLabelValues(m.cluster).Set(float64(n))
}
