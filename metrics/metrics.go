// Package metrics exposes Prometheus collectors for the reservation client,
// the transmit scheduler and the receive demultiplexer.
//
// All recording methods are nil-safe so components can run without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "avb"

// Reservation holds control-channel metrics.
type Reservation struct {
	CommandsSent    *prometheus.CounterVec
	CommandFailures *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

// NewReservation creates and registers the control-channel collectors.
func NewReservation(reg prometheus.Registerer) (*Reservation, error) {
	m := &Reservation{
		CommandsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "msrp",
				Name:      "commands_sent_total",
				Help:      "Control datagrams sent to the MRP daemon",
			},
			[]string{"command"},
		),
		CommandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "msrp",
				Name:      "command_failures_total",
				Help:      "Control datagrams that failed or were truncated",
			},
			[]string{"command"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "msrp",
				Name:      "notifications_total",
				Help:      "Notifications received from the MRP daemon by kind",
			},
			[]string{"kind"},
		),
	}
	if err := register(reg, m.CommandsSent, m.CommandFailures, m.Notifications); err != nil {
		return nil, err
	}
	return m, nil
}

// CommandSent records a successful command.
func (m *Reservation) CommandSent(command string) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(command).Inc()
}

// CommandFailed records a failed command.
func (m *Reservation) CommandFailed(command string) {
	if m == nil {
		return
	}
	m.CommandFailures.WithLabelValues(command).Inc()
}

// Notification records a parsed notification.
func (m *Reservation) Notification(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}

// Talker holds transmit scheduler metrics.
type Talker struct {
	PacketsSent     prometheus.Counter
	QueueFull       prometheus.Counter
	Reclaimed       prometheus.Counter
	Starved         prometheus.Counter
	StreamsReserved prometheus.Gauge
}

// NewTalker creates and registers the transmit collectors.
func NewTalker(reg prometheus.Registerer) (*Talker, error) {
	m := &Talker{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "talker",
			Name:      "packets_sent_total",
			Help:      "Frames accepted by the transmit queue",
		}),
		QueueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "talker",
			Name:      "queue_full_total",
			Help:      "Submissions retried because the transmit queue was full",
		}),
		Reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "talker",
			Name:      "buffers_reclaimed_total",
			Help:      "Buffers returned to the free list after transmission",
		}),
		Starved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "talker",
			Name:      "buffer_starvation_total",
			Help:      "Iterations that found the free list empty",
		}),
		StreamsReserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "talker",
			Name:      "streams_reserved",
			Help:      "Streams currently advertised and scheduled",
		}),
	}
	if err := register(reg, m.PacketsSent, m.QueueFull, m.Reclaimed, m.Starved, m.StreamsReserved); err != nil {
		return nil, err
	}
	return m, nil
}

// PacketSent records one transmitted frame.
func (m *Talker) PacketSent() {
	if m == nil {
		return
	}
	m.PacketsSent.Inc()
}

// QueueWasFull records one queue-full retry.
func (m *Talker) QueueWasFull() {
	if m == nil {
		return
	}
	m.QueueFull.Inc()
}

// BuffersReclaimed records n reclaimed buffers.
func (m *Talker) BuffersReclaimed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Reclaimed.Add(float64(n))
}

// BufferStarved records an empty free list.
func (m *Talker) BufferStarved() {
	if m == nil {
		return
	}
	m.Starved.Inc()
}

// SetStreamsReserved sets the reserved stream gauge.
func (m *Talker) SetStreamsReserved(n int) {
	if m == nil {
		return
	}
	m.StreamsReserved.Set(float64(n))
}

// Listener holds receive demultiplexer metrics.
type Listener struct {
	FramesReceived  *prometheus.CounterVec
	FramesDiscarded *prometheus.CounterVec
	Consumers       prometheus.Gauge
}

// NewListener creates and registers the receive collectors.
func NewListener(reg prometheus.Registerer) (*Listener, error) {
	m := &Listener{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "listener",
				Name:      "frames_received_total",
				Help:      "Frames accepted for a stream",
			},
			[]string{"stream"},
		),
		FramesDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "listener",
				Name:      "frames_discarded_total",
				Help:      "Captured frames dropped by a consumer",
			},
			[]string{"stream", "reason"},
		),
		Consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "consumers",
			Help:      "Running per-stream consumers",
		}),
	}
	if err := register(reg, m.FramesReceived, m.FramesDiscarded, m.Consumers); err != nil {
		return nil, err
	}
	return m, nil
}

// FrameReceived records an accepted frame.
func (m *Listener) FrameReceived(streamID string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(streamID).Inc()
}

// FrameDiscarded records a dropped frame.
func (m *Listener) FrameDiscarded(streamID, reason string) {
	if m == nil {
		return
	}
	m.FramesDiscarded.WithLabelValues(streamID, reason).Inc()
}

// ConsumerStarted increments the consumer gauge.
func (m *Listener) ConsumerStarted() {
	if m == nil {
		return
	}
	m.Consumers.Inc()
}

// ConsumerStopped decrements the consumer gauge.
func (m *Listener) ConsumerStopped() {
	if m == nil {
		return
	}
	m.Consumers.Dec()
}

func register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	if reg == nil {
		return nil
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
