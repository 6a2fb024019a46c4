package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var ErrTooFewOpts = errors.New("too few options")

// A Serde encodes values in the schema registry wire format:
// magic byte, schema id, then avro binary.
type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type Opt func(*serdeOpts) error

type serdeOpts struct {
	subject string
	si      SchemaIdentifier
}

func SubjectOpt(subject string) Opt {
	return func(so *serdeOpts) error {
		if subject == "" {
			return errors.New("subject is empty string")
		}
		so.subject = subject
		return nil
	}
}

func SchemaIdentifierOpt(si SchemaIdentifier) Opt {
	return func(so *serdeOpts) error {
		if si == nil {
			return errors.New("schema identifier is nil")
		}
		so.si = si
		return nil
	}
}

// NewSerdeRecordV1 returns serde of [RecordV1] registered under subject.
func NewSerdeRecordV1(ctx context.Context, opts ...Opt) (Serde, error) {
	return newAvroSerde[RecordV1](ctx, "NewSerdeRecordV1", RecordSchemaTextV1, opts)
}

// NewSerdeRecordBlockV1 returns serde of [RecordBlockV1] registered under subject.
func NewSerdeRecordBlockV1(ctx context.Context, opts ...Opt) (Serde, error) {
	return newAvroSerde[RecordBlockV1](
		ctx, "NewSerdeRecordBlockV1", RecordBlockSchemaTextV1, opts,
	)
}

// newAvroSerde requires both [SubjectOpt] and [SchemaIdentifierOpt].
func newAvroSerde[T any](
	ctx context.Context, op, schemaText string, opts []Opt,
) (Serde, error) {
	var so serdeOpts
	for _, o := range opts {
		if err := o(&so); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if so.subject == "" || so.si == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	avroSchema, err := avro.Parse(schemaText)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := so.si.DetermineID(ctx, so.subject, schemaText)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var s sr.Serde
	var example T
	s.Register(id, example,
		sr.EncodeFn(func(v any) ([]byte, error) {
			return avro.Marshal(avroSchema, v)
		}),
		sr.DecodeFn(func(data []byte, v any) error {
			return avro.Unmarshal(avroSchema, data, v)
		}),
	)
	return &s, nil
}
