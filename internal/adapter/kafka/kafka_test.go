package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/pkg/retry"
	"github.com/niksmo/repair-shop/pkg/schema"
)

// avroSerde encodes plain avro without registry header.
type avroSerde struct {
	s avro.Schema
}

func (a avroSerde) Encode(v any) ([]byte, error) {
	return avro.Marshal(a.s, v)
}

func (a avroSerde) Decode(data []byte, v any) error {
	return avro.Unmarshal(a.s, data, v)
}

type MockProducerClient struct {
	mock.Mock
}

func (c *MockProducerClient) ProduceSync(
	ctx context.Context, rs ...*kgo.Record,
) kgo.ProduceResults {
	args := c.Called(ctx, rs)
	return args.Get(0).(kgo.ProduceResults)
}

func (c *MockProducerClient) Close() {
	c.Called()
}

type MockRecordsSaver struct {
	mock.Mock
}

func (s *MockRecordsSaver) SaveRecords(
	ctx context.Context, rs []domain.Record,
) error {
	args := s.Called(ctx, rs)
	return args.Error(0)
}

func clientOpt(cl ProducerClient) ProducerOpt {
	return func(o *producerOpts) error {
		o.cl = cl
		return nil
	}
}

func sampleRecord() domain.Record {
	return domain.Record{
		ID:    "6f1b7a52-3c1f-4b55-9d43-0c3d8f1b2a01",
		Brand: "Samsung",
		Model: "A52",
		Attributes: domain.Attributes{
			domain.AttrColor: "Negro",
			domain.AttrFrame: domain.FrameWithout,
			domain.AttrType:  "OLED",
		},
		Prices: domain.Prices{
			domain.PriceModuleRepair: decimal.RequireFromString("5000"),
			domain.PricePinRepair:    decimal.RequireFromString("1200.50"),
		},
	}
}

func TestRecordSchemaConversion(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		v1 := sampleRecord()
		s := recordToSchemaV1(v1)

		require.NotNil(t, s.Frame)
		assert.False(t, *s.Frame)
		assert.Nil(t, s.Version)
		assert.Nil(t, s.BatteryRepair)

		v2, err := schemaV1ToRecord(s)
		require.NoError(t, err)
		assert.Equal(t, v1.ID, v2.ID)
		assert.Equal(t, v1.Attributes, v2.Attributes)
		require.Len(t, v2.Prices, 2)
		for k, p := range v1.Prices {
			assert.True(t, p.Equal(v2.Prices[k]), k.String())
		}
	})

	t.Run("BadPrice", func(t *testing.T) {
		bad := "cinco mil"
		_, err := schemaV1ToRecord(schema.RecordV1{
			RecordID: "id", Brand: "b", Model: "m", ModuleRepair: &bad,
		})
		assert.Error(t, err)
	})

	t.Run("EmptyAttributeIsAbsent", func(t *testing.T) {
		empty := ""
		v, err := schemaV1ToRecord(schema.RecordV1{
			RecordID: "id", Brand: "b", Model: "m", Color: &empty,
		})
		require.NoError(t, err)
		_, ok := v.Attributes.Get(domain.AttrColor)
		assert.False(t, ok)
	})
}

func TestRecordsProducer(t *testing.T) {
	serde := avroSerde{schema.RecordV1Avro()}

	t.Run("TooFewOpts", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewRecordsProducer(ProducerEncoderOpt(serde))
		})
	})

	t.Run("KeyedByRecordID", func(t *testing.T) {
		cl := new(MockProducerClient)
		p, err := NewRecordsProducer(clientOpt(cl), ProducerEncoderOpt(serde))
		require.NoError(t, err)

		var produced []*kgo.Record
		cl.On("ProduceSync", t.Context(), mock.Anything).
			Run(func(args mock.Arguments) {
				produced = args.Get(1).([]*kgo.Record)
			}).
			Return(kgo.ProduceResults{})

		err = p.ProduceRecords(t.Context(), []domain.Record{sampleRecord()})
		require.NoError(t, err)
		require.Len(t, produced, 1)
		assert.Equal(t, []byte(sampleRecord().ID), produced[0].Key)

		var s schema.RecordV1
		require.NoError(t, serde.Decode(produced[0].Value, &s))
		assert.Equal(t, "A52", s.Model)
	})

	t.Run("ProduceError", func(t *testing.T) {
		cl := new(MockProducerClient)
		p, err := NewRecordsProducer(clientOpt(cl), ProducerEncoderOpt(serde))
		require.NoError(t, err)

		brokerErr := errors.New("broker is down")
		cl.On("ProduceSync", t.Context(), mock.Anything).
			Return(kgo.ProduceResults{{Err: brokerErr}})

		err = p.ProduceRecords(t.Context(), []domain.Record{sampleRecord()})
		assert.ErrorIs(t, err, brokerErr)
	})
}

func TestRecordBlockProducer(t *testing.T) {
	serde := avroSerde{schema.RecordBlockV1Avro()}
	cl := new(MockProducerClient)
	p, err := NewRecordBlockProducer(clientOpt(cl), ProducerEncoderOpt(serde))
	require.NoError(t, err)

	var produced []*kgo.Record
	cl.On("ProduceSync", t.Context(), mock.Anything).
		Run(func(args mock.Arguments) {
			produced = args.Get(1).([]*kgo.Record)
		}).
		Return(kgo.ProduceResults{})

	b := domain.RecordBlock{RecordID: sampleRecord().ID, Blocked: true}
	require.NoError(t, p.ProduceBlock(t.Context(), b))
	require.Len(t, produced, 1)

	var s schema.RecordBlockV1
	require.NoError(t, serde.Decode(produced[0].Value, &s))
	assert.Equal(t, schema.RecordBlockV1{RecordID: b.RecordID, Blocked: true}, s)

	cl.On("Close").Once()
	p.Close()
	cl.AssertExpectations(t)
}

func TestRecordsConsumerProcessFetches(t *testing.T) {
	serde := avroSerde{schema.RecordV1Avro()}
	saver := new(MockRecordsSaver)

	c := RecordsConsumer{
		opPrefix: "RecordsConsumer",
		saver:    saver,
		decoder:  serde,
	}

	good, err := serde.Encode(recordToSchemaV1(sampleRecord()))
	require.NoError(t, err)

	fetches := kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic: "records_to_storage",
			Partitions: []kgo.FetchPartition{{
				Partition: 0,
				Records: []*kgo.Record{
					{Value: good},
					{Value: []byte{0xff}},
				},
			}},
		}},
	}}

	var saved []domain.Record
	saver.On("SaveRecords", t.Context(), mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).([]domain.Record)
		}).
		Return(nil)

	require.NoError(t, c.processFetches(t.Context(), fetches))
	require.Len(t, saved, 1)
	assert.Equal(t, sampleRecord().ID, saved[0].ID)
}

func TestBlockValueCodec(t *testing.T) {
	var c blockValueCodec

	data, err := c.Encode(blockValue(true))
	require.NoError(t, err)

	v, err := c.Decode(data)
	require.NoError(t, err)
	assert.True(t, isBlocked(v))

	_, err = c.Encode(true)
	assert.ErrorIs(t, err, ErrInvalidValueType)

	assert.False(t, isBlocked(nil))
}

func TestRecordEventCodecRejectsForeignValue(t *testing.T) {
	c := recordEventCodec{avroSerde{schema.RecordV1Avro()}}
	_, err := c.Encode(schema.RecordBlockV1{})
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func TestFetchesErr(t *testing.T) {
	assert.NoError(t, fetchesErr(kgo.Fetches{}))

	brokerErr := errors.New("not leader")
	fetches := kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic: "records_to_storage",
		Partitions: []kgo.FetchPartition{
			{Partition: 0},
			{Partition: 2, Err: brokerErr},
			{Partition: 3, Err: context.Canceled},
		},
	}}}}

	err := fetchesErr(fetches)
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), `topic "records_to_storage" partition 2`)
}

// fakeConsumerClient serves batches once, like kgo after the fetch
// position moved, then cancels the run.
type fakeConsumerClient struct {
	mu      sync.Mutex
	batches []kgo.Fetches
	stop    context.CancelFunc
	saver   *MockRecordsSaver
	commits [][]string
}

func (c *fakeConsumerClient) PollFetches(ctx context.Context) kgo.Fetches {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		c.stop()
		return kgo.Fetches{}
	}
	f := c.batches[0]
	c.batches = c.batches[1:]
	return f
}

func (c *fakeConsumerClient) CommitUncommittedOffsets(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, savedIDs(c.saver))
	return nil
}

func (c *fakeConsumerClient) Close() {}

func savedIDs(saver *MockRecordsSaver) (ids []string) {
	for _, call := range saver.Calls {
		if call.ReturnArguments.Error(0) != nil {
			continue
		}
		for _, r := range call.Arguments.Get(1).([]domain.Record) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func recordFetches(t *testing.T, serde Serde, offset int64, id string) kgo.Fetches {
	t.Helper()
	v := sampleRecord()
	v.ID = id
	b, err := serde.Encode(recordToSchemaV1(v))
	require.NoError(t, err)
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic: "records_to_storage",
		Partitions: []kgo.FetchPartition{{
			Partition: 0,
			Records:   []*kgo.Record{{Value: b, Offset: offset}},
		}},
	}}}}
}

func TestRecordsConsumerRetriesFailedBatch(t *testing.T) {
	const (
		idA = "11111111-1111-4111-8111-111111111111"
		idB = "22222222-2222-4222-8222-222222222222"
	)
	serde := avroSerde{schema.RecordV1Avro()}
	saver := new(MockRecordsSaver)
	saver.On("SaveRecords", mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()
	saver.On("SaveRecords", mock.Anything, mock.Anything).
		Return(nil)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	cl := &fakeConsumerClient{
		batches: []kgo.Fetches{
			recordFetches(t, serde, 0, idA),
			recordFetches(t, serde, 1, idB),
		},
		stop:  cancel,
		saver: saver,
	}

	rc, err := NewRecordsConsumer(
		func(co *consumerOpts) error { co.cl = cl; return nil },
		ConsumerDecoderOpt(serde),
		RecordsConsumerSaverOpt(saver),
	)
	require.NoError(t, err)
	rc.consumer.backoff = retry.LinearBackoff(time.Millisecond)

	rc.Run(ctx)

	saver.AssertNumberOfCalls(t, "SaveRecords", 3)
	assert.Equal(t, []string{idA, idB}, savedIDs(saver))
	assert.Equal(t, [][]string{{idA}, {idA, idB}}, cl.commits)
}

func TestRecordsConsumerStopsRetryingOnCancel(t *testing.T) {
	serde := avroSerde{schema.RecordV1Avro()}
	saver := new(MockRecordsSaver)
	saver.On("SaveRecords", mock.Anything, mock.Anything).
		Return(errors.New("db down"))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	cl := &fakeConsumerClient{
		batches: []kgo.Fetches{recordFetches(t, serde, 0, sampleRecord().ID)},
		stop:    cancel,
		saver:   saver,
	}

	rc, err := NewRecordsConsumer(
		func(co *consumerOpts) error { co.cl = cl; return nil },
		ConsumerDecoderOpt(serde),
		RecordsConsumerSaverOpt(saver),
	)
	require.NoError(t, err)
	rc.consumer.backoff = retry.LinearBackoff(5 * time.Millisecond)

	rc.Run(ctx)

	assert.Empty(t, cl.commits)
	assert.Greater(t, len(saver.Calls), 1)
}
