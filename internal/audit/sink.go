// Package audit emits structured records of staff actions.
//
// Auditing is best-effort: a failure to persist an event is logged
// locally and swallowed, never surfaced to the workflow that emitted
// it. Every mutating orchestration attempt produces exactly one event.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one audited attempt of a mutating action.
type Event struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink records events. Implementations must never block the caller and
// never propagate persistence failures.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Store persists events; a Sink drains into it in the background.
type Store interface {
	Write(ctx context.Context, ev Event) error
}

// BufferedSink queues events onto a background writer.
//
// When the buffer is full the event is dropped with a local warning,
// keeping the primary workflow unblocked.
type BufferedSink struct {
	ch     chan Event
	store  Store
	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewBufferedSink starts a sink draining into store.
func NewBufferedSink(store Store, logger *zap.Logger, bufferSize int) *BufferedSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	s := &BufferedSink{
		ch:     make(chan Event, bufferSize),
		store:  store,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record enqueues the event; it never blocks and never fails. Events
// recorded after Close are dropped, not panicked on: detached work such
// as a clear-shelf sweep may outlive the server's shutdown sequence.
func (s *BufferedSink) Record(_ context.Context, ev Event) {
	select {
	case <-s.stop:
		s.logger.Warn("audit sink closed, dropping event",
			zap.String("action", ev.Action),
			zap.String("request_id", ev.RequestID))
		return
	default:
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case s.ch <- ev:
	default:
		s.logger.Warn("audit buffer full, dropping event",
			zap.String("action", ev.Action),
			zap.String("request_id", ev.RequestID))
	}
}

// Close stops the writer after draining queued events. The event
// channel is never closed, so late Record calls stay safe; Close is
// idempotent.
func (s *BufferedSink) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *BufferedSink) drain() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.ch:
			s.write(ev)
		case <-s.stop:
			// Flush whatever was queued before the stop.
			for {
				select {
				case ev := <-s.ch:
					s.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *BufferedSink) write(ev Event) {
	// Store writes get their own deadline; a stuck store must not
	// wedge the drain loop forever.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Write(ctx, ev); err != nil {
		s.logger.Warn("failed to persist audit event",
			zap.String("action", ev.Action),
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}
}

// LogStore writes audit events to the structured log. It is the
// default store when no external persistence is configured.
type LogStore struct {
	logger *zap.Logger
}

// NewLogStore creates a log-backed store.
func NewLogStore(logger *zap.Logger) *LogStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogStore{logger: logger.Named("audit")}
}

// Write emits the event as one structured log line.
func (s *LogStore) Write(_ context.Context, ev Event) error {
	s.logger.Info("audit event",
		zap.String("id", ev.ID),
		zap.String("action", ev.Action),
		zap.String("actor", ev.Actor),
		zap.String("ip", ev.IP),
		zap.String("user_agent", ev.UserAgent),
		zap.String("request_id", ev.RequestID),
		zap.String("status", ev.Status),
		zap.Any("details", ev.Details),
		zap.String("error", ev.Error),
		zap.Time("at", ev.At),
	)
	return nil
}
