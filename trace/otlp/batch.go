package otlp

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/kzs0/callspan/trace"
)

// BatchProcessorConfig configures the batch processor.
type BatchProcessorConfig struct {
	// MaxQueueSize is the maximum number of spans to queue; the oldest are dropped beyond it.
	MaxQueueSize int
	// BatchSize is the maximum number of spans per export.
	BatchSize int
	// BatchTimeout is the maximum time a span waits before export.
	BatchTimeout time.Duration
	// ExportTimeout bounds each background export.
	ExportTimeout time.Duration
}

// DefaultBatchConfig returns default batch processor configuration.
func DefaultBatchConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		MaxQueueSize:  2048,
		BatchSize:     512,
		BatchTimeout:  5 * time.Second,
		ExportTimeout: 30 * time.Second,
	}
}

// BatchProcessor queues closed spans and exports them in batches.
type BatchProcessor struct {
	cfg      BatchProcessorConfig
	exporter trace.Exporter
	logger   *slog.Logger

	mu      sync.Mutex
	queue   *queue.Queue
	timer   *time.Timer
	stopped bool

	inflight sync.WaitGroup
	dropped  atomic.Uint64
}

var _ trace.Processor = (*BatchProcessor)(nil)

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(exporter trace.Exporter, cfg BatchProcessorConfig, logger *slog.Logger) *BatchProcessor {
	def := DefaultBatchConfig()
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = def.ExportTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &BatchProcessor{
		cfg:      cfg,
		exporter: exporter,
		logger:   logger,
		queue:    queue.New(),
	}
}

// OnEnd queues a closed span.
func (bp *BatchProcessor) OnEnd(span *trace.Span) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.stopped {
		return
	}

	if bp.queue.Length() >= bp.cfg.MaxQueueSize {
		bp.queue.Remove()
		bp.dropped.Add(1)
	}
	bp.queue.Add(span)

	if bp.queue.Length() == 1 {
		bp.timer = time.AfterFunc(bp.cfg.BatchTimeout, bp.flush)
	}
	if bp.queue.Length() >= bp.cfg.BatchSize {
		bp.exportLocked()
	}
}

// Dropped returns how many spans were dropped because the queue was full.
func (bp *BatchProcessor) Dropped() uint64 {
	return bp.dropped.Load()
}

func (bp *BatchProcessor) flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.exportLocked()
}

// drainLocked removes up to n spans from the queue.
func (bp *BatchProcessor) drainLocked(n int) []*trace.Span {
	if n > bp.queue.Length() {
		n = bp.queue.Length()
	}
	spans := make([]*trace.Span, 0, n)
	for i := 0; i < n; i++ {
		spans = append(spans, bp.queue.Remove().(*trace.Span))
	}
	return spans
}

func (bp *BatchProcessor) exportLocked() {
	if bp.timer != nil {
		bp.timer.Stop()
		bp.timer = nil
	}
	if bp.queue.Length() == 0 {
		return
	}

	spans := bp.drainLocked(bp.cfg.BatchSize)
	if bp.queue.Length() > 0 {
		bp.timer = time.AfterFunc(bp.cfg.BatchTimeout, bp.flush)
	}

	bp.inflight.Add(1)
	go func() {
		defer bp.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), bp.cfg.ExportTimeout)
		defer cancel()
		if err := bp.exporter.ExportSpans(ctx, spans); err != nil {
			bp.logger.Warn("span batch export failed", slog.Int("spans", len(spans)), slog.Any("error", err))
		}
	}()
}

// ForceFlush exports everything queued and waits for in-flight exports.
func (bp *BatchProcessor) ForceFlush(ctx context.Context) error {
	bp.mu.Lock()
	spans := bp.takeAllLocked()
	bp.mu.Unlock()

	return bp.exportRemaining(ctx, spans)
}

// Shutdown stops the processor, exports remaining spans and shuts the exporter down.
// Spans ended after Shutdown begins are ignored.
func (bp *BatchProcessor) Shutdown(ctx context.Context) error {
	bp.mu.Lock()
	if bp.stopped {
		bp.mu.Unlock()
		return nil
	}
	bp.stopped = true
	spans := bp.takeAllLocked()
	bp.mu.Unlock()

	err := bp.exportRemaining(ctx, spans)
	if serr := bp.exporter.Shutdown(ctx); err == nil {
		err = serr
	}
	return err
}

func (bp *BatchProcessor) takeAllLocked() []*trace.Span {
	if bp.timer != nil {
		bp.timer.Stop()
		bp.timer = nil
	}
	return bp.drainLocked(bp.queue.Length())
}

// exportRemaining waits for background exports, then exports spans inline.
func (bp *BatchProcessor) exportRemaining(ctx context.Context, spans []*trace.Span) error {
	if err := bp.wait(ctx); err != nil {
		return err
	}
	if len(spans) == 0 {
		return nil
	}
	return bp.exporter.ExportSpans(ctx, spans)
}

func (bp *BatchProcessor) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		bp.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
