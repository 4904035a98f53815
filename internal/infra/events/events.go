// Package events delivers committed marketplace events to indexers.
// Delivery is best effort: a sink logs and counts what it cannot deliver
// and never fails the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
)

// SubjectPrefix prefixes every published subject.
const SubjectPrefix = "distri.events."

// Subject returns the NATS subject for an event topic.
func Subject(topic string) string { return SubjectPrefix + topic }

// Message is the wire form of an event.
type Message struct {
	Topic     string       `json:"topic"`
	Published int64        `json:"published"` // unix seconds
	Event     domain.Event `json:"event"`
}

// Encode renders an event as a JSON message.
func Encode(ev domain.Event, now time.Time) ([]byte, error) {
	return json.Marshal(Message{Topic: ev.Topic(), Published: now.Unix(), Event: ev})
}

// ─── Log Sink ───────────────────────────────────────────────────────────────

// LogSink writes events to a zap logger.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("events")}
}

func (s *LogSink) Publish(_ context.Context, evs []domain.Event) {
	for _, ev := range evs {
		s.log.Info("event", zap.String("topic", ev.Topic()), zap.Any("event", ev))
		metrics.EventsPublished.WithLabelValues("log", ev.Topic()).Inc()
	}
}

// ─── Fan-out ────────────────────────────────────────────────────────────────

// Multi publishes to every sink in order.
type Multi []domain.EventSink

func (m Multi) Publish(ctx context.Context, evs []domain.Event) {
	for _, s := range m {
		s.Publish(ctx, evs)
	}
}

// ─── Recorder ───────────────────────────────────────────────────────────────

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, evs []domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
