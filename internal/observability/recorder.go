// Package observability records per-query pipeline outcomes without ever
// blocking the response path.
package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askdesk/askdesk/internal/pkg/logger"
)

// Sink receives flushed query log batches. Sink failures are swallowed and
// logged; they never surface to the query path.
type Sink interface {
	Write(ctx context.Context, batch []QueryLog) error
	Close() error
}

// Recorder buffers query logs in a bounded queue owned by a single background
// flushing goroutine. Producers never block: when the queue is full the
// oldest entry is dropped. That backpressure policy is deliberate — losing a
// log record is always preferable to delaying an answer.
type Recorder struct {
	queue   chan QueryLog
	sinks   []Sink
	log     *logger.Logger
	cfg     Config
	dropped atomic.Int64

	stop     chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

// Config configures the recorder.
type Config struct {
	// QueueSize is the bounded queue capacity.
	QueueSize int

	// FlushInterval is how often buffered entries are flushed.
	FlushInterval time.Duration

	// FlushBatch flushes early once this many entries are buffered.
	FlushBatch int

	// WriteTimeout bounds each sink write.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible recorder defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:     4096,
		FlushInterval: time.Second,
		FlushBatch:    128,
		WriteTimeout:  5 * time.Second,
	}
}

// NewRecorder creates a recorder and starts its flushing goroutine.
func NewRecorder(cfg Config, log *logger.Logger, sinks ...Sink) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.FlushBatch <= 0 {
		cfg.FlushBatch = 128
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		queue: make(chan QueryLog, cfg.QueueSize),
		sinks: sinks,
		log:   log,
		cfg:   cfg,
		stop:  make(chan struct{}),
	}

	r.done.Add(1)
	go r.run()

	return r
}

// Record enqueues a query log. Fire-and-forget: it never blocks, and when the
// queue is full the oldest buffered entry is evicted to make room.
func (r *Recorder) Record(q QueryLog) {
	select {
	case r.queue <- q:
		return
	default:
	}

	// Queue full: drop the oldest entry, then retry once. A concurrent
	// producer may win the freed slot; in that case this entry is dropped
	// instead, which is equally acceptable.
	select {
	case <-r.queue:
		r.dropped.Add(1)
	default:
	}

	select {
	case r.queue <- q:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of evicted or discarded entries.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes remaining entries and shuts the recorder down.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.done.Wait()

	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.log.Warn("closing query log sink", "error", err)
		}
	}
	return nil
}

func (r *Recorder) run() {
	defer r.done.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]QueryLog, 0, r.cfg.FlushBatch)

	for {
		select {
		case q := <-r.queue:
			batch = append(batch, q)
			if len(batch) >= r.cfg.FlushBatch {
				batch = r.flush(batch)
			}
		case <-ticker.C:
			batch = r.flush(batch)
		case <-r.stop:
			// Drain whatever is still queued, then flush once.
			for {
				select {
				case q := <-r.queue:
					batch = append(batch, q)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes the batch to every sink and returns an empty reusable batch.
func (r *Recorder) flush(batch []QueryLog) []QueryLog {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	for _, s := range r.sinks {
		if err := s.Write(ctx, batch); err != nil {
			r.log.Warn("query log sink write failed", "error", err, "batch", len(batch))
		}
	}

	return batch[:0]
}
