package audit

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"go.uber.org/zap"
)

const (
	defaultCapacity        = 1000
	defaultBatchSize       = 50
	defaultBatchInterval   = 200 * time.Millisecond
	defaultShutdownTimeout = 5 * time.Second
)

// Option configures a Logger.
type Option func(*Logger)

// WithExporter attaches a remote Exporter. Default is NoopExporter.
func WithExporter(exporter Exporter) Option {
	return func(l *Logger) { l.exporter = exporter }
}

// WithLogger overrides the Logger's internal zap logger. Default is
// zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(l *Logger) { l.log = log }
}

// WithCapacity bounds how many undrained events may sit in the queue
// before the oldest is dropped to make room for the newest.
func WithCapacity(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithBatchSize caps how many events a single drain pulls off the queue.
func WithBatchSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithBatchInterval sets how often the background consumer wakes to
// drain the queue even if it hasn't filled a batch.
func WithBatchInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.batchInterval = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the final drain of
// whatever remains queued.
func WithShutdownTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.shutdownTimeout = d
		}
	}
}

// Logger is the async security event pipeline from spec.md §4.G.
// LogSecurityEvent never blocks the caller: it appends to an in-memory
// queue bounded by capacity, dropping the oldest entry on overflow. A
// single background goroutine drains size- and time-bounded batches to
// the configured Store, falling back to per-item stores when a batch
// write fails outright.
type Logger struct {
	store    Store
	exporter Exporter
	log      *zap.Logger

	capacity        int
	batchSize       int
	batchInterval   time.Duration
	shutdownTimeout time.Duration

	mu      sync.Mutex
	queue   []SecurityEvent
	stopped bool
	dropped int64

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewLogger returns a Logger storing events to store. Start must be
// called before any enqueued event is drained.
func NewLogger(store Store, opts ...Option) *Logger {
	l := &Logger{
		store:           store,
		exporter:        NoopExporter{},
		log:             zap.NewNop(),
		capacity:        defaultCapacity,
		batchSize:       defaultBatchSize,
		batchInterval:   defaultBatchInterval,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the background drain loop. Calling Start more than
// once has no additional effect.
func (l *Logger) Start() {
	l.startOnce.Do(func() {
		l.stopCh = make(chan struct{})
		l.doneCh = make(chan struct{})
		go l.run()
	})
}

// Stop signals the drain loop to flush whatever remains queued and
// waits up to shutdownTimeout for it to finish. After Stop returns, all
// further LogSecurityEvent calls are silently dropped. Stop is
// idempotent.
func (l *Logger) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		if l.stopCh == nil {
			return
		}
		close(l.stopCh)
		select {
		case <-l.doneCh:
		case <-time.After(l.shutdownTimeout):
		}
	})
}

// Dispose is an alias for Stop, matching the collaborator's disposable
// lifecycle in spec.md §4.G.
func (l *Logger) Dispose() { l.Stop() }

// DroppedCount reports how many events were discarded because the queue
// was at capacity when LogSecurityEvent was called.
func (l *Logger) DroppedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// LogSecurityEvent builds a SecurityEvent from eventType, description,
// severity and the calling dispatch's MessageContext (mc may be nil) and
// enqueues it. The call never blocks and never returns an error: a full
// queue drops its oldest entry, and a logger that has been Stopped
// silently discards the event.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType EventType, description string, severity Severity, mc *dispatchcore.MessageContext) {
	ev := buildEvent(eventType, description, severity, mc)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if len(l.queue) >= l.capacity {
		l.queue = l.queue[1:]
		l.dropped++
		l.log.Warn("audit queue full, dropping oldest event", zap.Int64("dropped_total", l.dropped))
	}
	l.queue = append(l.queue, ev)
}

func (l *Logger) run() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.batchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			l.drainAll()
			return
		case <-ticker.C:
			l.drainOnce(context.Background())
		}
	}
}

func (l *Logger) drainOnce(ctx context.Context) {
	batch := l.popBatch(l.batchSize)
	if len(batch) == 0 {
		return
	}
	l.storeBatch(ctx, batch)
}

func (l *Logger) drainAll() {
	ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()
	for {
		batch := l.popBatch(l.batchSize)
		if len(batch) == 0 {
			return
		}
		l.storeBatch(ctx, batch)
	}
}

func (l *Logger) popBatch(max int) []SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	n := max
	if n > len(l.queue) {
		n = len(l.queue)
	}
	batch := l.queue[:n]
	l.queue = l.queue[n:]
	return batch
}

func (l *Logger) storeBatch(ctx context.Context, batch []SecurityEvent) {
	if err := l.store.StoreEvents(ctx, batch); err != nil {
		l.log.Warn("audit batch store failed, falling back to per-item stores", zap.Error(err), zap.Int("batch_size", len(batch)))
		for _, ev := range batch {
			if serr := l.store.StoreEvent(ctx, ev); serr != nil {
				l.log.Error("dropping security event after per-item store failure", zap.String("event_id", ev.ID), zap.Error(serr))
			}
		}
	}
	if err := l.exporter.ExportBatch(ctx, batch); err != nil {
		l.log.Warn("audit exporter failed", zap.Error(err))
	}
}
