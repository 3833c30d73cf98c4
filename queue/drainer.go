package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

// Replayer re-invokes the resource-service operation a queued mutation
// recorded. The Engine implements it.
type Replayer interface {
	Replay(ctx context.Context, op clowddav.PendingOperation) error
}

// Drainer binds the queue to a replayer and drains it strictly FIFO on
// connectivity transitions. Drain is idempotent: a concurrent call no-ops
// while another drain is in flight.
type Drainer struct {
	queue    *Queue
	replayer Replayer
	logger   *slog.Logger

	online   atomic.Bool
	draining atomic.Bool
}

// NewDrainer creates a drainer; the logger may be nil.
func NewDrainer(q *Queue, r Replayer, logger *slog.Logger) *Drainer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Drainer{queue: q, replayer: r, logger: logger}
}

// Online reports the last observed connectivity state.
func (d *Drainer) Online() bool {
	return d.online.Load()
}

// SetOnline records a connectivity transition. The offline-to-online edge
// triggers exactly one drain attempt; going offline never touches the
// queue.
func (d *Drainer) SetOnline(ctx context.Context, online bool) {
	was := d.online.Swap(online)
	if online && !was {
		if err := d.Drain(ctx); err != nil {
			d.logger.Warn("drain after reconnect failed", "error", err)
		}
	}
}

// Drain replays queued operations in FIFO order while connectivity holds.
// The first failure stops the drain so later operations never skip ahead
// of a failed earlier one; partial progress is expected and correct.
func (d *Drainer) Drain(ctx context.Context) error {
	if !d.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer d.draining.Store(false)

	for d.online.Load() {
		op, ok := d.queue.Head()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.replayer.Replay(ctx, op); err != nil {
			d.logger.Warn("replay failed, stopping drain",
				"op_id", op.ID,
				"op_type", op.Type,
				"resource", op.Resource,
				"error", err)
			return fmt.Errorf("replay of %s %s failed: %w", op.Type, op.Resource, err)
		}
		if err := d.queue.Ack(op.ID); err != nil {
			return fmt.Errorf("failed to remove replayed operation: %w", err)
		}
		d.logger.Debug("replayed pending operation", "op_id", op.ID, "op_type", op.Type)
	}
	return nil
}
