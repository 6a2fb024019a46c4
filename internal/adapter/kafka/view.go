package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lovoo/goka"

	"github.com/niksmo/repair-shop/internal/core/port"
)

var ErrViewNotReady = errors.New("view is not recovered yet")

var _ port.RecordBlockView = (*RecordBlockView)(nil)

// A RecordBlockView reads block flags from the block group table.
type RecordBlockView struct {
	opPrefix string
	gv       *goka.View
}

func NewRecordBlockView(
	seedBrokers []string, blockGroupTable string,
) (*RecordBlockView, error) {
	const op = "NewRecordBlockView"

	gv, err := goka.NewView(
		seedBrokers,
		goka.GroupTable(goka.Group(blockGroupTable)),
		blockValueCodec{},
	)
	if err != nil {
		return nil, opErr(err, op)
	}

	return &RecordBlockView{opPrefix: "RecordBlockView", gv: gv}, nil
}

// Run starts the view in a separate goroutine. The view stops with ctx.
func (v *RecordBlockView) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	defer wg.Done()
	go v.runView(ctx, stopFn)
}

func (v *RecordBlockView) runView(ctx context.Context, stopFn context.CancelFunc) {
	const op = "run"
	log := slog.With("op", makeOp(v.opPrefix, op))

	defer stopFn()

	log.Info("running")
	if err := v.gv.Run(ctx); err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (v *RecordBlockView) IsBlocked(
	ctx context.Context, recordID string,
) (bool, error) {
	const op = "IsBlocked"

	if err := ctx.Err(); err != nil {
		return false, opErr(err, v.opPrefix, op)
	}

	if !v.gv.Recovered() {
		return false, opErr(ErrViewNotReady, v.opPrefix, op)
	}

	value, err := v.gv.Get(recordID)
	if err != nil {
		return false, opErr(err, v.opPrefix, op)
	}
	return isBlocked(value), nil
}
