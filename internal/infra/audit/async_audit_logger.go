package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

// AsyncRecorderConfig holds the configuration for the asynchronous recorder.
type AsyncRecorderConfig struct {
	ChannelBufferSize int
	WorkerCount       int
	BatchSize         int
	BatchTimeout      time.Duration
}

func (c *AsyncRecorderConfig) withDefaults() {
	if c.ChannelBufferSize <= 0 {
		c.ChannelBufferSize = 1024
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 100 * time.Millisecond
	}
}

type queuedEvent struct {
	ctx context.Context
	req *domain.IngestRequest
}

// AsyncRecorder is a non-blocking domain.AuditLogger. Events are queued and ingested by
// background workers; a full queue drops the event rather than blocking the caller.
type AsyncRecorder struct {
	logger       *slog.Logger
	ingester     Ingester
	eventChannel chan queuedEvent
	waitGroup    sync.WaitGroup
	config       AsyncRecorderConfig
	running      atomic.Bool
	closeMu      sync.RWMutex
	closed       bool
}

func NewAsyncRecorder(logger *slog.Logger, ingester Ingester, config AsyncRecorderConfig) *AsyncRecorder {
	config.withDefaults()
	return &AsyncRecorder{
		logger:       logger,
		ingester:     ingester,
		eventChannel: make(chan queuedEvent, config.ChannelBufferSize),
		config:       config,
	}
}

// Start begins the worker goroutines that process audit events.
func (r *AsyncRecorder) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return nil
	}
	r.waitGroup.Add(r.config.WorkerCount)
	for i := 0; i < r.config.WorkerCount; i++ {
		go r.worker()
	}
	return nil
}

// Stop closes the queue and waits for queued events to be ingested or for ctx to end.
func (r *AsyncRecorder) Stop(ctx context.Context) error {
	r.closeMu.Lock()
	if !r.closed {
		r.logger.Info("shutting down audit recorder")
		r.closed = true
		r.running.Store(false)
		close(r.eventChannel)
	}
	r.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("audit recorder shut down successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) Health(ctx context.Context) lifecycle.HealthStatus {
	if !r.running.Load() {
		return lifecycle.HealthStatus{Ready: false, Message: "recorder not running"}
	}
	queued := len(r.eventChannel)
	if queued >= cap(r.eventChannel) {
		return lifecycle.HealthStatus{Ready: false, Message: "recorder queue is full"}
	}
	return lifecycle.HealthStatus{Ready: true}
}

// Record queues req. The caller's context values are kept but its cancellation is not, so an
// event recorded at the end of a request still gets written.
func (r *AsyncRecorder) Record(ctx context.Context, req *domain.IngestRequest) {
	if req == nil {
		return
	}
	req = WithRequestEnvironment(ctx, req)

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed || !r.running.Load() {
		metrics.RecorderDropped.Inc()
		r.logger.WarnContext(ctx, "audit recorder is not running, event dropped", "event_type", req.EventType)
		return
	}

	select {
	case r.eventChannel <- queuedEvent{ctx: context.WithoutCancel(ctx), req: req}:
	default:
		metrics.RecorderDropped.Inc()
		r.logger.WarnContext(ctx, "audit event channel is full, event dropped",
			"event_type", req.EventType, "action", req.Action)
	}
}

func (r *AsyncRecorder) worker() {
	defer r.waitGroup.Done()

	ticker := time.NewTicker(r.config.BatchTimeout)
	defer ticker.Stop()

	batch := make([]queuedEvent, 0, r.config.BatchSize)

	for {
		select {
		case event, ok := <-r.eventChannel:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= r.config.BatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush ingests a batch in arrival order. Each event still takes its own turn on the chain.
func (r *AsyncRecorder) flush(batch []queuedEvent) {
	for _, event := range batch {
		if _, err := r.ingester.Ingest(event.ctx, event.req); err != nil {
			metrics.RecorderDropped.Inc()
			r.logger.ErrorContext(event.ctx, "failed to write queued audit event",
				slog.String("event_type", event.req.EventType),
				slog.String("error", err.Error()))
		}
	}
}
