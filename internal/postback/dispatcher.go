package postback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/resilience"
)

// LogWriter persists postback outcomes.
type LogWriter interface {
	InsertPostbackLog(ctx context.Context, log *model.PostbackLog) error
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single delivery, retries included.
	Timeout time.Duration
	Breaker resilience.CircuitBreakerConfig
}

// Dispatcher hands review events to a Notifier on background workers.
type Dispatcher struct {
	notifier Notifier
	logs     LogWriter
	cfg      DispatcherConfig
	breakers *resilience.ServiceBreakers

	queue   chan Event
	g       errgroup.Group
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewDispatcher starts cfg.Workers workers draining the queue.
func NewDispatcher(n Notifier, logs LogWriter, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := &Dispatcher{
		notifier: n,
		logs:     logs,
		cfg:      cfg,
		breakers: resilience.NewServiceBreakers(cfg.Breaker),
		queue:    make(chan Event, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.g.Go(func() error {
			for ev := range d.queue {
				d.deliver(ev)
			}
			return nil
		})
	}
	return d
}

// Enqueue queues ev without blocking. It reports false when the event was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	log := zap.L().With(
		zap.String("component", "postback"),
		zap.String("document_id", ev.DocumentID),
		zap.String("review_id", ev.ReviewSessionID),
	)
	if d.closed {
		log.Warn("postback: dispatcher closed, event dropped")
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		log.Warn("postback: queue full, event dropped", zap.Int("queue_size", d.cfg.QueueSize))
		return false
	}
}

// Close stops accepting events and waits for queued ones to finish or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "postback: drain queue")
	}
}

// Breakers exposes per-target circuit state.
func (d *Dispatcher) Breakers() *resilience.ServiceBreakers { return d.breakers }

// Dropped counts events rejected by a full queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) deliver(ev Event) {
	target := d.notifier.Target()
	log := zap.L().With(
		zap.String("component", "postback"),
		zap.String("target", target),
		zap.String("document_id", ev.DocumentID),
		zap.String("version_id", ev.VersionID),
		zap.String("review_id", ev.ReviewSessionID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	var res *Result
	err := d.breakers.Get(target).Execute(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("postback: notifier panic: %v", r)
			}
		}()
		res, err = d.notifier.Notify(ctx, ev)
		return err
	})

	entry := &model.PostbackLog{
		ID:         uuid.NewString(),
		DocumentID: ev.DocumentID,
		VersionID:  ev.VersionID,
		ReviewID:   ev.ReviewSessionID,
		Target:     target,
		CreatedAt:  time.Now().UTC(),
	}
	if res != nil {
		entry.Endpoint = res.Endpoint
		entry.Payload = res.Payload
		entry.ResponseBody = res.ResponseBody
		entry.Skipped = res.Skipped
		entry.Attempts = res.Attempts
		if res.StatusCode > 0 {
			code := res.StatusCode
			entry.StatusCode = &code
		}
	}

	switch {
	case err != nil:
		entry.Error = err.Error()
		log.Warn("postback: delivery failed",
			zap.String("endpoint", entry.Endpoint),
			zap.Int("attempts", entry.Attempts),
			zap.Error(err),
		)
	case entry.Skipped:
		log.Debug("postback: skipped", zap.String("endpoint", entry.Endpoint))
	default:
		entry.Success = true
		log.Info("postback: delivered",
			zap.String("endpoint", entry.Endpoint),
			zap.Int("attempts", entry.Attempts),
		)
	}

	if d.logs == nil {
		return
	}
	logCtx, logCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer logCancel()
	if err := d.logs.InsertPostbackLog(logCtx, entry); err != nil {
		log.Error("postback: persist log failed", zap.Error(err))
	}
}
