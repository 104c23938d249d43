package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/payflow/internal/metrics"
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// Dispatcher queues events and delivers them from a fixed pool of workers.
// Enqueue never blocks; a full queue drops the event.
type Dispatcher struct {
	cfg      DispatcherConfig
	jobs     chan Event
	notifier Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg DispatcherConfig, notifier Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Dispatcher{
		cfg:      cfg,
		jobs:     make(chan Event, cfg.QueueSize),
		notifier: notifier,
		logger:   logger,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for e := range d.jobs {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, e); err != nil {
		metrics.RecordNotification(string(e.Kind), "failed")
		d.logger.Error("notification delivery failed",
			"kind", e.Kind,
			"invoice_id", e.InvoiceID,
			"transaction_id", e.TransactionID,
			"error", err,
		)

		return
	}

	metrics.RecordNotification(string(e.Kind), "sent")
}

// Enqueue reports whether the event was accepted.
func (d *Dispatcher) Enqueue(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(e, "dispatcher closed")
		return false
	}

	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	select {
	case d.jobs <- e:
		return true
	default:
		d.drop(e, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(e Event, reason string) {
	metrics.RecordNotification(string(e.Kind), "dropped")
	d.logger.Warn("notification dropped",
		"reason", reason,
		"kind", e.Kind,
		"invoice_id", e.InvoiceID,
		"transaction_id", e.TransactionID,
	)
}

// Shutdown stops accepting events and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
