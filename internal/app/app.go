package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/twmb/franz-go/pkg/sr"

	"github.com/niksmo/repair-shop/config"
	"github.com/niksmo/repair-shop/internal/adapter"
	"github.com/niksmo/repair-shop/internal/adapter/httphandler"
	"github.com/niksmo/repair-shop/internal/adapter/kafka"
	"github.com/niksmo/repair-shop/internal/adapter/storage"
	"github.com/niksmo/repair-shop/internal/core/quote"
	"github.com/niksmo/repair-shop/internal/core/service"
	"github.com/niksmo/repair-shop/pkg/schema"
)

type serdes struct {
	record      schema.Serde
	recordBlock schema.Serde
}

type producers struct {
	records     kafka.RecordsProducer
	recordBlock kafka.RecordBlockProducer
}

type processors struct {
	recordBlock   *kafka.RecordBlockProcessor
	recordBlocker *kafka.RecordBlockerProcessor
	recordBlockV  *kafka.RecordBlockView
}

type repositories struct {
	sqldb   storage.SQLDB
	records storage.RecordsRepository
	carts   storage.CartsRepository
}

// App wires adapters around the core service.
//
// Any failure during construction panics.
type App struct {
	ctx             context.Context
	cfg             config.Config
	security        kafka.Security
	serdes          serdes
	producers       producers
	processors      processors
	repositories    repositories
	service         service.Service
	recordsConsumer kafka.RecordsConsumer
	httpServer      httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initSecurity()
	app.initSerdes()
	app.initOutboundAdapters()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initSecurity() {
	const op = "App.initSecurity"

	b := app.cfg.Broker
	app.security = kafka.Security{User: b.SASL.User, Pass: b.SASL.Pass}
	if b.TLS.Enabled {
		tlsCfg, err := adapter.MakeTLSConfig(b.TLS.CA, b.TLS.Cert, b.TLS.Key)
		if err != nil {
			app.fallDown(op, err)
		}
		app.security.TLS = tlsCfg
	}
	kafka.ApplyGokaSecurity(app.security)
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"

	srOpts := []sr.ClientOpt{sr.URLs(app.cfg.Broker.SchemaRegistryURLs...)}
	if app.security.TLS != nil {
		srOpts = append(srOpts, sr.DialTLSConfig(app.security.TLS))
	}
	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	schemaCreater := schema.NewSchemaCreater(srClient)
	topics := app.cfg.Broker.Topics

	recordSerde, err := schema.NewSerdeRecordV1(
		app.ctx,
		schema.SubjectOpt(topics.RecordsFromAdmin+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	recordBlockSerde, err := schema.NewSerdeRecordBlockV1(
		app.ctx,
		schema.SubjectOpt(topics.RecordBlockStream+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.record = recordSerde
	app.serdes.recordBlock = recordBlockSerde
}

func (app *App) initOutboundAdapters() {
	app.initProducers()
	app.initProcessors()
	app.initRepositories()
}

func (app *App) initProducers() {
	const op = "App.initProducers"

	ctx := app.ctx
	seedBrokers := app.cfg.Broker.SeedBrokers
	topics := app.cfg.Broker.Topics

	recordsProducer, err := kafka.NewRecordsProducer(
		kafka.ProducerClientOpt(
			ctx, seedBrokers, topics.RecordsFromAdmin, app.security,
		),
		kafka.ProducerEncoderOpt(app.serdes.record),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	recordBlockProducer, err := kafka.NewRecordBlockProducer(
		kafka.ProducerClientOpt(
			ctx, seedBrokers, topics.RecordBlockStream, app.security,
		),
		kafka.ProducerEncoderOpt(app.serdes.recordBlock),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.producers.records = recordsProducer
	app.producers.recordBlock = recordBlockProducer
}

func (app *App) initProcessors() {
	const op = "App.initProcessors"

	seedBrokers := app.cfg.Broker.SeedBrokers
	topics := app.cfg.Broker.Topics
	consumers := app.cfg.Broker.Consumers

	blockProc, err := kafka.NewRecordBlockProc(
		seedBrokers,
		topics.RecordBlockStream,
		consumers.RecordBlockGroup,
		app.serdes.recordBlock,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	blockerProc, err := kafka.NewRecordBlockerProc(
		seedBrokers,
		consumers.RecordBlockerGroup,
		topics.RecordsFromAdmin,
		consumers.RecordBlockGroup,
		topics.RecordsToStorage,
		app.serdes.record,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	blockView, err := kafka.NewRecordBlockView(
		seedBrokers, consumers.RecordBlockGroup,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.processors.recordBlock = blockProc
	app.processors.recordBlocker = blockerProc
	app.processors.recordBlockV = blockView
}

func (app *App) initRepositories() {
	const op = "App.initRepositories"

	sqldb, err := storage.NewSQLDB(app.ctx, app.cfg.SQLDB)
	if err != nil {
		app.fallDown(op, err)
	}

	app.repositories.sqldb = sqldb
	app.repositories.records = storage.NewRecordsRepository(sqldb)
	app.repositories.carts = storage.NewCartsRepository(sqldb)
}

func (app *App) initCoreService() {
	const op = "App.initCoreService"

	messenger, err := quote.NewMessenger(
		app.cfg.Contact.Phone, app.cfg.Contact.MessageTemplate,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.service = service.New(
		app.producers.records,
		app.producers.recordBlock,
		app.repositories.records,
		app.repositories.carts,
		app.processors.recordBlock,
		app.processors.recordBlocker,
		app.processors.recordBlockV,
		messenger,
	)
}

func (app *App) initInboundAdapters() {
	const op = "App.initInboundAdapters"

	recordsConsumer, err := kafka.NewRecordsConsumer(
		kafka.ConsumerClientOpt(
			app.cfg.Broker.SeedBrokers,
			app.cfg.Broker.Topics.RecordsToStorage,
			app.cfg.Broker.Consumers.RecordSaverGroup,
			app.security,
		),
		kafka.ConsumerDecoderOpt(app.serdes.record),
		kafka.RecordsConsumerSaverOpt(app.service),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.recordsConsumer = recordsConsumer

	mux := http.NewServeMux()
	httphandler.RegisterCatalog(mux, app.service)
	httphandler.RegisterVariants(mux, app.service)
	httphandler.RegisterRecords(mux, app.service)
	httphandler.RegisterFilter(mux, app.service, app.service)
	httphandler.RegisterCarts(mux, app.service)

	app.httpServer = httphandler.NewHTTPServer(app.cfg.HTTPServerAddr, mux)
}

// Run blocks until the stream processors are ready,
// then starts the storage consumer and the http server.
func (app *App) Run(stopFn context.CancelFunc) {
	app.service.Run(app.ctx, stopFn)
	go app.recordsConsumer.Run(app.ctx)
	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.recordsConsumer.Close()
	app.service.Close()
	app.producers.records.Close()
	app.producers.recordBlock.Close()
	app.repositories.sqldb.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
