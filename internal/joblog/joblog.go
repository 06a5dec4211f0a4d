// Package joblog streams per-job audit milestones to pluggable sinks. It
// replaces ad hoc per-domain log files with a structured, injected
// collaborator keyed by job key.
package joblog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported job stages.
const (
	StageJobStart  Stage = "JOB_START"
	StageCrawlDone Stage = "CRAWL_DONE"
	StagePageDone  Stage = "PAGE_DONE"
	StagePageFail  Stage = "PAGE_FAIL"
	StagePublish   Stage = "PUBLISH"
	StageCleanup   Stage = "CLEANUP"
	StageJobDone   Stage = "JOB_DONE"
	StageJobError  Stage = "JOB_ERROR"
)

// Event captures a single audit-job milestone.
type Event struct {
	Key   string
	TS    time.Time
	Stage Stage
	URL   string
	Note  string
	Err   string
}

// Sink consumes events. Implementations must be safe for concurrent use.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// orchestrator and pipeline stay agnostic about buffering.
type Emitter interface {
	Emit(evt Event)
}

const defaultBufferSize = 1024

// Hub fans events out to its sinks from a single background goroutine. Emit
// never blocks; when the buffer is full the event is dropped.
type Hub struct {
	events chan Event
	sinks  []Sink
	logger *zap.Logger

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewHub starts a Hub over the given sinks.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		events: make(chan Event, defaultBufferSize),
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go h.run()
	return h
}

// Emit enqueues an event without blocking the caller.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	select {
	case h.events <- evt:
	case <-h.stopCh:
	default:
		h.logger.Warn("job log event dropped", zap.String("key", evt.Key), zap.String("stage", string(evt.Stage)))
	}
}

// Close drains buffered events, closes the sinks, and waits for the
// background goroutine to exit.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		case <-h.stopCh:
			for {
				select {
				case evt := <-h.events:
					h.dispatch(evt)
				default:
					h.closeSinks()
					return
				}
			}
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Consume(context.Background(), evt); err != nil {
			h.logger.Warn("job log sink consume failed", zap.Error(err))
		}
	}
}

func (h *Hub) closeSinks() {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(context.Background()); err != nil {
			h.logger.Warn("job log sink close failed", zap.Error(err))
		}
	}
}
