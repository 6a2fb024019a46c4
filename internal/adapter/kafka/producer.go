package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

var _ port.RecordsProducer = RecordsProducer{}
var _ port.RecordBlockProducer = RecordBlockProducer{}

// A producer is used for composition.
//
// Producing records to kafka broker and closing underlying [kgo.Client].
type producer struct {
	opPrefix string
	cl       ProducerClient
}

func (p producer) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p producer) produce(
	ctx context.Context, rs ...*kgo.Record,
) error {
	const op = "produce"
	res := p.cl.ProduceSync(ctx, rs...)
	if err := res.FirstErr(); err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

func newProducer(opPrefix, op string, opts []ProducerOpt) (producerOpts, producer, error) {
	if len(opts) != 2 {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return producerOpts{}, producer{}, opErr(err, op)
		}
	}

	return options, producer{opPrefix: opPrefix, cl: options.cl}, nil
}

// A RecordsProducer publishes imported [domain.Record] keyed by record id.
type RecordsProducer struct {
	producer producer
	encoder  Encoder
	opPrefix string
}

func NewRecordsProducer(
	opts ...ProducerOpt,
) (RecordsProducer, error) {
	const op = "NewRecordsProducer"
	opPrefix := "RecordsProducer"

	options, p, err := newProducer(opPrefix, op, opts)
	if err != nil {
		return RecordsProducer{}, err
	}

	return RecordsProducer{
		encoder:  options.encoder,
		producer: p,
		opPrefix: opPrefix,
	}, nil
}

func (p RecordsProducer) Close() {
	p.producer.close()
}

func (p RecordsProducer) ProduceRecords(
	ctx context.Context, vs []domain.Record,
) error {
	const op = "ProduceRecords"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	rs, err := p.createRecords(vs)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	if err := p.producer.produce(ctx, rs...); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	return nil
}

func (p RecordsProducer) createRecords(
	vs []domain.Record,
) (rs []*kgo.Record, err error) {
	const op = "createRecords"

	for _, v := range vs {
		s := recordToSchemaV1(v)
		b, err := p.encoder.Encode(s)
		if err != nil {
			return nil, opErr(err, p.opPrefix, op)
		}
		rs = append(rs, &kgo.Record{Key: []byte(s.RecordID), Value: b})
	}

	return rs, nil
}

// A RecordBlockProducer publishes [domain.RecordBlock] keyed by record id.
type RecordBlockProducer struct {
	producer producer
	encoder  Encoder
	opPrefix string
}

func NewRecordBlockProducer(
	opts ...ProducerOpt,
) (RecordBlockProducer, error) {
	const op = "NewRecordBlockProducer"
	opPrefix := "RecordBlockProducer"

	options, p, err := newProducer(opPrefix, op, opts)
	if err != nil {
		return RecordBlockProducer{}, err
	}

	return RecordBlockProducer{
		producer: p,
		encoder:  options.encoder,
		opPrefix: opPrefix,
	}, nil
}

func (p RecordBlockProducer) Close() {
	p.producer.close()
}

func (p RecordBlockProducer) ProduceBlock(
	ctx context.Context, v domain.RecordBlock,
) error {
	const op = "ProduceBlock"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	s := recordBlockToSchemaV1(v)
	b, err := p.encoder.Encode(s)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	r := &kgo.Record{Key: []byte(s.RecordID), Value: b}
	if err := p.producer.produce(ctx, r); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	return nil
}
