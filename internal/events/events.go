package events

import (
	"context"
	"sync/atomic"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/ui"
)

const (
	DefaultBufferSize = 256
	DefaultRetention  = 10000

	// number of appended events after which old events are trimmed
	trimInterval = 100
)

// Sink accepts events. Emit never blocks and never fails.
type Sink interface {
	Emit(level model.EventLevel, message string, context string)
}

// Store persists events
type Store interface {
	AppendEvent(level model.EventLevel, message string, context string) (*model.Event, error)
	TrimEvents(keep int) (int, error)
}

type event struct {
	level   model.EventLevel
	message string
	context string
}

// AsyncSink writes events to a Store on a separate goroutine.
// If the buffer is full, new events are dropped.
type AsyncSink struct {
	store     Store
	queue     chan event
	retention int
	dropped   atomic.Int64
}

func NewAsyncSink(store Store, bufferSize int, retention int) *AsyncSink {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &AsyncSink{
		store:     store,
		queue:     make(chan event, bufferSize),
		retention: retention,
	}
}

func (s *AsyncSink) Emit(level model.EventLevel, message string, context string) {
	select {
	case s.queue <- event{level: level, message: message, context: context}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events that have been discarded because the buffer was full
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Run writes queued events until ctx is cancelled. Remaining events are flushed before returning.
func (s *AsyncSink) Run(ctx context.Context) error {
	written := 0
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-s.queue:
					s.write(e, &written)
				default:
					return nil
				}
			}
		case e := <-s.queue:
			s.write(e, &written)
		}
	}
}

func (s *AsyncSink) write(e event, written *int) {
	if _, err := s.store.AppendEvent(e.level, e.message, e.context); err != nil {
		ui.Warning("Unable to store event '%s': %v", e.message, err)
		return
	}
	*written++
	if *written%trimInterval == 0 {
		if _, err := s.store.TrimEvents(s.retention); err != nil {
			ui.Warning("Unable to trim events: %v", err)
		}
	}
}

// LogSink prints events to the console
type LogSink struct{}

func (LogSink) Emit(level model.EventLevel, message string, context string) {
	format := "%s"
	args := []interface{}{message}
	if len(context) > 0 {
		format = "%s: %s"
		args = append(args, context)
	}

	switch level {
	case model.EventLevelError:
		ui.Error(format, args...)
	case model.EventLevelWarning:
		ui.Warning(format, args...)
	case model.EventLevelDebug:
		ui.Debug(format, args...)
	default:
		ui.Info(format, args...)
	}
}

// MultiSink forwards every event to all of its sinks
type MultiSink []Sink

func (m MultiSink) Emit(level model.EventLevel, message string, context string) {
	for _, sink := range m {
		sink.Emit(level, message, context)
	}
}

// MemorySink keeps all events in memory
type MemorySink struct {
	Events chan model.Event
}

func NewMemorySink(size int) *MemorySink {
	return &MemorySink{Events: make(chan model.Event, size)}
}

func (m *MemorySink) Emit(level model.EventLevel, message string, context string) {
	select {
	case m.Events <- model.Event{Level: level, Message: message, Context: context}:
	default:
	}
}

// Drain returns all events received so far
func (m *MemorySink) Drain() []model.Event {
	var result []model.Event
	for {
		select {
		case e := <-m.Events:
			result = append(result, e)
		default:
			return result
		}
	}
}
