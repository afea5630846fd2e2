package ipc

import prom "github.com/prometheus/client_golang/prometheus"

// Recorder receives daemon lifecycle observations. Implementations must be
// safe for concurrent use.
type Recorder interface {
	IncBindAttempt(name string)
	IncStartOutcome(name string, outcome string)
	IncShutdownTimeout(name string)
	SetState(name string, s State)
}

// Start outcomes other than OutcomeReady use the failure Kind's name.
const OutcomeReady = "ready"

// NoopRecorder discards everything; it is the default.
type NoopRecorder struct{}

func (NoopRecorder) IncBindAttempt(string)          {}
func (NoopRecorder) IncStartOutcome(string, string) {}
func (NoopRecorder) IncShutdownTimeout(string)      {}
func (NoopRecorder) SetState(string, State)         {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	bindAttempts     *prom.CounterVec
	startOutcomes    *prom.CounterVec
	shutdownTimeouts *prom.CounterVec
	state            *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the daemon metrics on reg,
// or on a private registry when reg is nil.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		bindAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ipcd",
			Name:      "bind_attempts_total",
			Help:      "Listener bind attempts, including retries",
		}, []string{"name"}),
		startOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ipcd",
			Name:      "start_outcomes_total",
			Help:      "Startup handshake outcomes by result",
		}, []string{"name", "outcome"}),
		shutdownTimeouts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ipcd",
			Name:      "shutdown_timeouts_total",
			Help:      "Stops where the listener did not exit within the join timeout",
		}, []string{"name"}),
		state: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "ipcd",
			Name:      "listener_state",
			Help:      "Current listener state (0=not started,1=starting,2=running,3=failed,4=stopping,5=stopped)",
		}, []string{"name"}),
	}
	reg.MustRegister(pr.bindAttempts, pr.startOutcomes, pr.shutdownTimeouts, pr.state)
	return pr
}

func (p *PrometheusRecorder) IncBindAttempt(name string) {
	p.bindAttempts.WithLabelValues(name).Inc()
}

func (p *PrometheusRecorder) IncStartOutcome(name string, outcome string) {
	p.startOutcomes.WithLabelValues(name, outcome).Inc()
}

func (p *PrometheusRecorder) IncShutdownTimeout(name string) {
	p.shutdownTimeouts.WithLabelValues(name).Inc()
}

func (p *PrometheusRecorder) SetState(name string, s State) {
	p.state.WithLabelValues(name).Set(float64(s))
}
