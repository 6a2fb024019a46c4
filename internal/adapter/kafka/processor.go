package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/lovoo/goka"

	"github.com/niksmo/repair-shop/internal/core/port"
	"github.com/niksmo/repair-shop/pkg/schema"
)

var _ port.RecordBlockProcessor = (*RecordBlockProcessor)(nil)
var _ port.RecordBlockerProcessor = (*RecordBlockerProcessor)(nil)

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

func (p *processor) run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer wg.Done()

	go p.runProc(ctx, stopFn)

	log.Info("preparing...")
	p.waitForReady(ctx)
	log.Info("running")
}

func (p *processor) runProc(ctx context.Context, stopFn context.CancelFunc) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer stopFn()

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
	}
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// A blockEventCodec used for serde [schema.RecordBlockV1]
type blockEventCodec struct {
	serde Serde
}

func (c blockEventCodec) Encode(v any) ([]byte, error) {
	const op = "blockEventCodec.Encode"
	if _, ok := v.(schema.RecordBlockV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c blockEventCodec) Decode(data []byte) (any, error) {
	const op = "blockEventCodec.Decode"
	var s schema.RecordBlockV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// A blockValue is the group table value for a particular record id.
type blockValue bool

// A blockValueCodec used for serde [blockValue]
type blockValueCodec struct{}

func (blockValueCodec) Encode(v any) ([]byte, error) {
	const op = "blockValueCodec.Encode"
	bv, ok := v.(blockValue)
	if !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return strconv.AppendBool(nil, bool(bv)), nil
}

func (blockValueCodec) Decode(data []byte) (any, error) {
	const op = "blockValueCodec.Decode"
	bv, err := strconv.ParseBool(string(data))
	if err != nil {
		return nil, opErr(err, op)
	}
	return blockValue(bv), nil
}

// A recordEventCodec used for serde [schema.RecordV1]
type recordEventCodec struct {
	serde Serde
}

func (c recordEventCodec) Encode(v any) ([]byte, error) {
	const op = "recordEventCodec.Encode"
	if _, ok := v.(schema.RecordV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c recordEventCodec) Decode(data []byte) (any, error) {
	const op = "recordEventCodec.Decode"
	var s schema.RecordV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// A RecordBlockProcessor keeps the latest block flag of every record id
// from the block stream in its group table.
type RecordBlockProcessor struct {
	opPrefix string
	proc     processor
}

func NewRecordBlockProc(
	seedBrokers []string,
	inputStream string,
	groupTable string,
	blockSerde Serde,
) (*RecordBlockProcessor, error) {
	const op = "NewRecordBlockProc"

	p := RecordBlockProcessor{opPrefix: "RecordBlockProcessor"}

	gg := goka.DefineGroup(goka.Group(groupTable),
		goka.Input(
			goka.Stream(inputStream),
			blockEventCodec{blockSerde},
			p.processFn,
		),
		goka.Persist(blockValueCodec{}),
	)

	gp, err := goka.NewProcessor(seedBrokers, gg, withNonlogProcOpt())
	if err != nil {
		return nil, opErr(err, op)
	}

	p.proc = processor{opPrefix: p.opPrefix, gp: gp}
	return &p, nil
}

func (p *RecordBlockProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	p.proc.run(ctx, stopFn, wg)
}

func (p *RecordBlockProcessor) Close() {
	p.proc.close()
}

func (p *RecordBlockProcessor) processFn(ctx goka.Context, msg any) {
	const op = "processFn"
	log := slog.With("op", makeOp(p.opPrefix, op))

	event, ok := msg.(schema.RecordBlockV1)
	if !ok {
		log.Error("unexpected message", "err", ErrInvalidValueType)
		return
	}
	ctx.SetValue(blockValue(event.Blocked))
	log.Info(
		"set block value",
		"recordID", event.RecordID,
		"isBlocked", event.Blocked,
	)
}

// A RecordBlockerProcessor passes imported records to the storage topic
// unless the joined block table marks the record id as blocked.
type RecordBlockerProcessor struct {
	opPrefix     string
	proc         processor
	joinedTable  goka.Table
	outputStream goka.Stream
}

func NewRecordBlockerProc(
	seedBrokers []string,
	group string,
	inputStream string,
	blockGroupTable string,
	outputTopic string,
	recordSerde Serde,
) (*RecordBlockerProcessor, error) {
	const op = "NewRecordBlockerProc"

	p := RecordBlockerProcessor{
		opPrefix:     "RecordBlockerProcessor",
		joinedTable:  goka.GroupTable(goka.Group(blockGroupTable)),
		outputStream: goka.Stream(outputTopic),
	}

	codec := recordEventCodec{recordSerde}

	gg := goka.DefineGroup(goka.Group(group),
		goka.Input(goka.Stream(inputStream), codec, p.processFn),
		goka.Join(p.joinedTable, blockValueCodec{}),
		goka.Output(p.outputStream, codec),
	)

	gp, err := goka.NewProcessor(seedBrokers, gg, withNonlogProcOpt())
	if err != nil {
		return nil, opErr(err, op)
	}

	p.proc = processor{opPrefix: p.opPrefix, gp: gp}
	return &p, nil
}

func (p *RecordBlockerProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	p.proc.run(ctx, stopFn, wg)
}

func (p *RecordBlockerProcessor) Close() {
	p.proc.close()
}

func (p *RecordBlockerProcessor) processFn(ctx goka.Context, msg any) {
	const op = "processFn"

	record, ok := msg.(schema.RecordV1)
	log := slog.With("op", makeOp(p.opPrefix, op), "recordID", record.RecordID)
	if !ok {
		log.Error("unexpected message", "err", ErrInvalidValueType)
		return
	}

	if isBlocked(ctx.Join(p.joinedTable)) {
		log.Warn("record is blocked")
		return
	}
	ctx.Emit(p.outputStream, record.RecordID, record)
	log.Debug("record is allowed")
}

func isBlocked(v any) bool {
	bv, ok := v.(blockValue)
	return ok && bool(bv)
}
