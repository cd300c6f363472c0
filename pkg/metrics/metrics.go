// Package metrics exposes the Prometheus counters/gauges the Reactor
// shares across every NeoCam/CamThread instance (SPEC_FULL.md §4.17). A
// nil *Registry is valid and records nothing, matching spec.md's
// "PushNoti (optional)" precedent for features nobody is required to wire
// up.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry owns the vectors this module records against. Construct it
// once per process and share it; Register panics on a duplicate
// registration, same as any other prometheus collector.
type Registry struct {
	CameraState        *prometheus.GaugeVec
	Reconnects         *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	MessagesReceived   *prometheus.CounterVec
	PermitActivations  *prometheus.CounterVec
	KeepaliveMisses    *prometheus.CounterVec
}

// New builds a Registry and registers every vector against reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across packages.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CameraState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bc_camera_state",
			Help: "CamThread state per camera: 1 on the series for the current state label, 0 on the others.",
		}, []string{"name", "state"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bc_camera_reconnects_total",
			Help: "Count of CamThread reconnect attempts per camera.",
		}, []string{"name"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bc_messages_sent_total",
			Help: "Count of BC messages sent per camera and msg_id.",
		}, []string{"name", "msg_id"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bc_messages_received_total",
			Help: "Count of BC messages received per camera and msg_id.",
		}, []string{"name", "msg_id"}),
		PermitActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bc_permit_activations_total",
			Help: "Count of 0->n>0 permit activations per camera.",
		}, []string{"name"}),
		KeepaliveMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bc_keepalive_misses_total",
			Help: "Count of missed keepalive pings per camera.",
		}, []string{"name"}),
	}

	for _, c := range []prometheus.Collector{
		r.CameraState, r.Reconnects, r.MessagesSent, r.MessagesReceived,
		r.PermitActivations, r.KeepaliveMisses,
	} {
		reg.MustRegister(c)
	}
	return r
}

// camStates lists every state label SetCameraState writes.
var camStates = []string{"disconnected", "connecting", "connected", "disconnecting"}

// SetCameraState records name's current state, nil-safe. It clears every
// other state label for name while setting the new one, so the gauge never
// reports a camera as being in two states simultaneously.
func (r *Registry) SetCameraState(name, state string) {
	if r == nil {
		return
	}
	for _, s := range camStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.CameraState.WithLabelValues(name, s).Set(v)
	}
}

// IncReconnect records one reconnect attempt, nil-safe.
func (r *Registry) IncReconnect(name string) {
	if r == nil {
		return
	}
	r.Reconnects.WithLabelValues(name).Inc()
}

// IncMessageSent records one outbound message, nil-safe.
func (r *Registry) IncMessageSent(name, msgID string) {
	if r == nil {
		return
	}
	r.MessagesSent.WithLabelValues(name, msgID).Inc()
}

// IncMessageReceived records one inbound message, nil-safe.
func (r *Registry) IncMessageReceived(name, msgID string) {
	if r == nil {
		return
	}
	r.MessagesReceived.WithLabelValues(name, msgID).Inc()
}

// IncPermitActivation records one 0->n>0 permit transition, nil-safe.
func (r *Registry) IncPermitActivation(name string) {
	if r == nil {
		return
	}
	r.PermitActivations.WithLabelValues(name).Inc()
}

// IncKeepaliveMiss records one missed ping, nil-safe.
func (r *Registry) IncKeepaliveMiss(name string) {
	if r == nil {
		return
	}
	r.KeepaliveMisses.WithLabelValues(name).Inc()
}
