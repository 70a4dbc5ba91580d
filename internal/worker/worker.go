// Package worker drains check-in events and mirrors them into the
// attendance sheet.
package worker

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"checkin/internal/attendance"
	"checkin/internal/queue"
)

// Sink receives mirrored records.
type Sink interface {
	Append(rec attendance.Record) error
}

// Metrics counts processed events.
type Metrics struct {
	processed *prometheus.CounterVec
}

// NewMetrics registers worker collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_mirror_events_total",
			Help: "Check-in events handled by the sheet mirror, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.processed)
	return m
}

func (m *Metrics) inc(result string) {
	if m != nil {
		m.processed.WithLabelValues(result).Inc()
	}
}

// Worker consumes queue messages and appends check-ins to a sink.
type Worker struct {
	q       queue.Queue
	sink    Sink
	metrics *Metrics
}

// New creates a worker. metrics may be nil.
func New(q queue.Queue, sink Sink, metrics *Metrics) *Worker {
	return &Worker{q: q, sink: sink, metrics: metrics}
}

// Run processes messages until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		w.handle(msg)
	}
	return nil
}

func (w *Worker) handle(msg queue.Message) {
	if msg.Type != queue.TypeCheckin {
		w.metrics.inc("skipped")
		return
	}
	rec, err := msg.Checkin()
	if err != nil {
		log.Printf("worker: %v", err)
		w.metrics.inc("invalid")
		return
	}
	if err := w.sink.Append(rec); err != nil {
		log.Printf("worker: mirror %s/%s failed: %v", rec.Identifier, rec.Session, err)
		w.metrics.inc("failed")
		return
	}
	w.metrics.inc("mirrored")
}
