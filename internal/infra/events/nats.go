package events

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
)

// NATSSink publishes events as JSON to distri.events.<topic>.
type NATSSink struct {
	nc     *nats.Conn
	log    *zap.Logger
	closed chan struct{}
}

// drainTimeout bounds how long Close waits for pending messages.
const drainTimeout = 10 * time.Second

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url, name string, log *zap.Logger) (*NATSSink, error) {
	log = log.Named("nats")
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name(name),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSink{nc: nc, log: log, closed: closed}, nil
}

func (s *NATSSink) Publish(_ context.Context, evs []domain.Event) {
	now := time.Now()
	for _, ev := range evs {
		if err := s.publish(ev, now); err != nil {
			metrics.EventsDropped.WithLabelValues("nats").Inc()
			s.log.Warn("event dropped", zap.String("topic", ev.Topic()), zap.Error(err))
			continue
		}
		metrics.EventsPublished.WithLabelValues("nats", ev.Topic()).Inc()
	}
}

func (s *NATSSink) publish(ev domain.Event, now time.Time) error {
	if s.nc == nil || s.nc.IsClosed() {
		return errors.New("nats not connected")
	}
	data, err := Encode(ev, now)
	if err != nil {
		return err
	}
	return s.nc.Publish(Subject(ev.Topic()), data)
}

// Check reports whether the connection is up; used by health checks.
func (s *NATSSink) Check() error {
	if s.nc == nil || !s.nc.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

// Close drains pending messages and waits for the connection to close.
func (s *NATSSink) Close() {
	if s.nc == nil {
		return
	}
	if err := awaitDrain(s.nc.Drain, s.closed, drainTimeout+time.Second); err != nil {
		s.log.Warn("nats drain incomplete", zap.Error(err))
		s.nc.Close()
	}
}

// awaitDrain starts a drain and blocks until closed fires or timeout passes.
func awaitDrain(drain func() error, closed <-chan struct{}, timeout time.Duration) error {
	if err := drain(); err != nil {
		return err
	}
	select {
	case <-closed:
		return nil
	case <-time.After(timeout):
		return errors.New("timed out waiting for drain")
	}
}
