package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
	"github.com/niksmo/repair-shop/pkg/retry"
	"github.com/niksmo/repair-shop/pkg/schema"
)

type ConsumerOpt func(*consumerOpts) error

func ConsumerClientOpt(
	seedBrokers []string, topic, group string, sec Security,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kgoOpts := append([]kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		}, sec.kgoOpts()...)

		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func RecordsConsumerSaverOpt(rs port.RecordsSaver) ConsumerOpt {
	return func(co *consumerOpts) error {
		if rs == nil {
			return errors.New("records saver is nil")
		}
		co.recordsSaver = rs
		return nil
	}
}

type consumerOpts struct {
	cl           ConsumerClient
	decoder      Decoder
	recordsSaver port.RecordsSaver
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	if co.cl == nil || co.decoder == nil || co.recordsSaver == nil {
		return ErrTooFewOpts
	}
	return nil
}

type consumerParent interface {
	processFetches(context.Context, kgo.Fetches) error
}

// A consumer polls the broker and hands fetches to its parent.
//
// Offsets are committed only after the parent has processed a fetch.
// Consecutive poll failures and processing retries are spaced out by backoff.
type consumer struct {
	opPrefix string
	parent   consumerParent
	cl       ConsumerClient
	backoff  retry.Backoff
}

func (c consumer) run(ctx context.Context) {
	log := slog.With("op", makeOp(c.opPrefix, "run"))
	log.Info("running")

	failures := 0
	for ctx.Err() == nil {
		err := c.consume(ctx)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, context.Canceled):
		default:
			failures++
			wait := c.backoff(failures)
			log.Error("failed to consume",
				"err", err, "failures", failures, "wait", wait)
			sleep(ctx, wait)
		}
	}
}

func (c consumer) consume(ctx context.Context) error {
	op := makeOp(c.opPrefix, "consume")

	fetches := c.cl.PollFetches(ctx)
	if err := fetchesErr(fetches); err != nil {
		return opErr(err, op)
	}
	if fetches.Empty() {
		return nil
	}

	if err := c.process(ctx, fetches); err != nil {
		return opErr(err, op)
	}

	if err := ctx.Err(); err != nil {
		return opErr(err, op)
	}
	if err := c.cl.CommitUncommittedOffsets(ctx); err != nil {
		return opErr(fmt.Errorf("commit: %w", err), op)
	}
	return nil
}

// process retries the same fetches until the parent accepts them.
//
// The client has already advanced past these records, polling again
// would skip them. Gives up only when ctx is done, offsets stay
// uncommitted and the batch is redelivered to the next group member.
func (c consumer) process(ctx context.Context, fetches kgo.Fetches) error {
	log := slog.With("op", makeOp(c.opPrefix, "process"))

	return retry.Do(ctx, retry.RetryConfig{
		MaxAttempts: math.MaxInt,
		Backoff:     c.backoff,
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Error("failed to process fetches",
				"err", err, "attempt", attempt, "wait", wait)
		},
	}, func() error {
		return c.parent.processFetches(ctx, fetches)
	})
}

func (c consumer) close() {
	log := slog.With("op", makeOp(c.opPrefix, "close"))
	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}

// fetchesErr joins the errors of every failed topic partition.
func fetchesErr(fetches kgo.Fetches) error {
	var errs []error
	for _, fe := range fetches.Errors() {
		errs = append(errs, fmt.Errorf(
			"topic %q partition %d: %w", fe.Topic, fe.Partition, fe.Err,
		))
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// A RecordsConsumer consumes records passed by the blocker processor
// then sends them to the core service for save.
type RecordsConsumer struct {
	opPrefix string
	consumer consumer
	saver    port.RecordsSaver
	decoder  Decoder
}

func NewRecordsConsumer(opts ...ConsumerOpt) (rc RecordsConsumer, err error) {
	const op = "NewRecordsConsumer"

	var options consumerOpts
	if err := options.apply(opts...); err != nil {
		return rc, opErr(err, op)
	}

	opPrefix := "RecordsConsumer"

	rc.opPrefix = opPrefix
	rc.saver = options.recordsSaver
	rc.decoder = options.decoder

	rc.consumer = consumer{
		opPrefix: opPrefix,
		parent:   rc,
		cl:       options.cl,
		backoff:  retry.ExponentialBackoff(500 * time.Millisecond),
	}

	return rc, nil
}

func (c RecordsConsumer) Run(ctx context.Context) {
	c.consumer.run(ctx)
}

func (c RecordsConsumer) Close() {
	c.consumer.close()
}

func (c RecordsConsumer) processFetches(
	ctx context.Context, fetches kgo.Fetches,
) error {
	const op = "processFetches"

	values := c.toDomain(fetches)
	if len(values) == 0 {
		return nil
	}

	err := c.saver.SaveRecords(ctx, values)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c RecordsConsumer) toDomain(
	fetches kgo.Fetches,
) (vs []domain.Record) {
	const op = "toDomain"
	log := slog.With("op", makeOp(c.opPrefix, op))

	fetches.EachRecord(func(r *kgo.Record) {
		v, err := c.decodeRecValue(r)
		if err != nil {
			log.Error(
				"failed to decode value",
				"err", opErr(err, c.opPrefix, op),
				"offset", r.Offset,
			)
			return
		}
		vs = append(vs, v)
	})
	return vs
}

func (c RecordsConsumer) decodeRecValue(
	r *kgo.Record,
) (domain.Record, error) {
	var s schema.RecordV1
	err := c.decoder.Decode(r.Value, &s)
	if err != nil {
		return domain.Record{}, err
	}
	return schemaV1ToRecord(s)
}
