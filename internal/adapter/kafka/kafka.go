package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/IBM/sarama"
	"github.com/lovoo/goka"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/pkg/schema"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

// Security holds the optional broker connection security.
//
// Nil TLS means plaintext, empty User disables SASL.
type Security struct {
	TLS  *tls.Config
	User string
	Pass string
}

func (s Security) kgoOpts() []kgo.Opt {
	var opts []kgo.Opt
	if s.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(s.TLS))
	}
	if s.User != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: s.User,
			Pass: s.Pass,
		}.AsMechanism()))
	}
	return opts
}

// ApplyGokaSecurity replaces goka global sarama config.
//
// Must be called before any processor or view is created.
func ApplyGokaSecurity(s Security) {
	cfg := goka.DefaultConfig()
	if s.TLS != nil {
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = s.TLS
	}
	if s.User != "" {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		cfg.Net.SASL.User = s.User
		cfg.Net.SASL.Password = s.Pass
	}
	goka.ReplaceGlobalConfig(cfg)
}

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, sec Security,
) ProducerOpt {
	return func(opts *producerOpts) error {
		kgoOpts := append([]kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.DefaultProduceTopicAlways(),
			kgo.DefaultProduceTopic(topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		}, sec.kgoOpts()...)

		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

func withNonlogProcOpt() goka.ProcessorOption {
	return goka.WithLogger(log.New(io.Discard, "", 0))
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func recordToSchemaV1(v domain.Record) (s schema.RecordV1) {
	s.RecordID = v.ID
	s.Brand = v.Brand
	s.Model = v.Model
	s.Color = attrPtr(v.Attributes, domain.AttrColor)
	s.Version = attrPtr(v.Attributes, domain.AttrVersion)
	s.Type = attrPtr(v.Attributes, domain.AttrType)
	if frame, ok := v.Attributes.Get(domain.AttrFrame); ok {
		if hasFrame, ok := domain.ParseFrame(frame); ok {
			s.Frame = &hasFrame
		}
	}
	s.ModuleRepair = pricePtr(v.Prices, domain.PriceModuleRepair)
	s.BatteryRepair = pricePtr(v.Prices, domain.PriceBatteryRepair)
	s.PinRepair = pricePtr(v.Prices, domain.PricePinRepair)
	return
}

func schemaV1ToRecord(s schema.RecordV1) (domain.Record, error) {
	v := domain.Record{
		ID:         s.RecordID,
		Brand:      s.Brand,
		Model:      s.Model,
		Attributes: make(domain.Attributes),
		Prices:     make(domain.Prices),
	}

	setAttr(v.Attributes, domain.AttrColor, s.Color)
	setAttr(v.Attributes, domain.AttrVersion, s.Version)
	setAttr(v.Attributes, domain.AttrType, s.Type)
	if s.Frame != nil {
		v.Attributes[domain.AttrFrame] = domain.FrameValue(*s.Frame)
	}

	prices := []struct {
		k domain.PriceKey
		v *string
	}{
		{domain.PriceModuleRepair, s.ModuleRepair},
		{domain.PriceBatteryRepair, s.BatteryRepair},
		{domain.PricePinRepair, s.PinRepair},
	}
	for _, p := range prices {
		if p.v == nil {
			continue
		}
		amount, err := decimal.NewFromString(*p.v)
		if err != nil {
			return domain.Record{}, fmt.Errorf("%s price: %w", p.k, err)
		}
		v.Prices[p.k] = amount
	}
	return v, nil
}

func recordBlockToSchemaV1(v domain.RecordBlock) schema.RecordBlockV1 {
	return schema.RecordBlockV1{RecordID: v.RecordID, Blocked: v.Blocked}
}

func attrPtr(a domain.Attributes, k domain.AttributeKey) *string {
	v, ok := a.Get(k)
	if !ok {
		return nil
	}
	return &v
}

func setAttr(a domain.Attributes, k domain.AttributeKey, v *string) {
	if v != nil && *v != "" {
		a[k] = *v
	}
}

func pricePtr(p domain.Prices, k domain.PriceKey) *string {
	price := p.Get(k)
	if !price.Valid {
		return nil
	}
	s := price.Decimal.String()
	return &s
}
