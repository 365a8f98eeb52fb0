package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/holster/v4/clock"

	"github.com/mattjoyce/hookgate/internal/delivery"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/replay"
)

// Queue is the subset of delivery.Queue the dispatcher uses.
type Queue interface {
	Dequeue(ctx context.Context) (*delivery.Delivery, error)
	Complete(ctx context.Context, id string, status delivery.Status, lastError *string) error
}

// Handler processes one verified payload.
type Handler interface {
	Handle(ctx context.Context, deliveryID string, payload []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, deliveryID string, payload []byte) error

func (f HandlerFunc) Handle(ctx context.Context, deliveryID string, payload []byte) error {
	return f(ctx, deliveryID, payload)
}

// Options tune the dispatch loop.
type Options struct {
	PollInterval  time.Duration
	PruneInterval time.Duration

	// Guard, if set, is pruned every PruneInterval.
	Guard replay.Guard
}

// Dispatcher dequeues deliveries and runs the handler on them.
type Dispatcher struct {
	queue   Queue
	handler Handler
	opts    Options
	logger  *slog.Logger
}

// New creates a new Dispatcher.
func New(q Queue, h Handler, opts Options) *Dispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = 5 * time.Minute
	}
	return &Dispatcher{
		queue:   q,
		handler: h,
		opts:    opts,
		logger:  log.WithComponent("dispatch"),
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "poll_interval", d.opts.PollInterval.String())
	defer d.logger.Info("dispatch loop stopped")

	poll := clock.NewTicker(d.opts.PollInterval)
	defer poll.Stop()

	var pruneC <-chan time.Time
	if d.opts.Guard != nil {
		prune := clock.NewTicker(d.opts.PruneInterval)
		defer prune.Stop()
		pruneC = prune.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C():
			if _, err := d.ProcessNext(ctx); err != nil {
				// Keep the loop alive on individual failures.
				d.logger.Error("failed to process delivery", "error", err)
			}
		case <-pruneC:
			if err := d.opts.Guard.Prune(ctx); err != nil {
				d.logger.Error("failed to prune replay guard", "error", err)
			}
		}
	}
}

// ProcessNext handles the oldest queued delivery. It returns false when the
// queue was empty.
func (d *Dispatcher) ProcessNext(ctx context.Context) (bool, error) {
	dl, err := d.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if dl == nil {
		return false, nil
	}

	logger := log.WithDelivery(dl.ID).With("source", dl.Source)
	logger.Debug("processing delivery", "bytes", len(dl.Payload))

	status := delivery.StatusDone
	var lastErr *string
	if err := d.handler.Handle(ctx, dl.ID, dl.Payload); err != nil {
		msg := err.Error()
		status = delivery.StatusFailed
		lastErr = &msg
		logger.Warn("delivery failed", "error", err)
	}

	if err := d.queue.Complete(ctx, dl.ID, status, lastErr); err != nil {
		return true, fmt.Errorf("complete delivery %s: %w", dl.ID, err)
	}
	logger.Info("delivery completed", "status", string(status))
	return true, nil
}
