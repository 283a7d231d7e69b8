package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	paymentsapp "staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/notify"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/infra/broker/kafka"
	redisstore "staybook/internal/infra/cache/redis"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/postgres"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/inbox"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/payments/breaker"
	"staybook/internal/infra/payments/chapa"
	"staybook/internal/infra/payments/sandbox"
	"staybook/internal/infra/storage/memory"
)

const callbackConsumer = "payment-callbacks"

type application struct {
	factory        uow.UoWFactory
	handlers       ginserver.Handlers
	metrics        *obs.Metrics
	checks         map[string]obs.Check
	worker         *infraoutbox.Worker
	sweeper        *bookingapp.Sweeper
	consumer       *kafka.Consumer
	callbackTopics []string
	closers        []func(context.Context) error
}

// storage is what a store driver contributes to the application.
type storage struct {
	factory     uow.UoWFactory
	source      infraoutbox.Source
	inbox       paymentsapp.Inbox
	idempotency middleware.IdempotencyStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{checks: map[string]obs.Check{}}

	store, err := app.openStorage(ctx, cfg)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		store.idempotency = redisstore.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		app.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
	}
	app.factory = store.factory

	metrics := obs.NewMetrics()
	app.metrics = metrics
	sysClock := clock.System{}

	lifecycle := &bookingapp.Lifecycle{
		Clock:    sysClock,
		Policy:   domainbooking.CancellationPolicy{Cutoff: cfg.CancellationCutoff},
		Notifier: notify.OutboxNotifier{},
		Metrics:  metrics,
		Logger:   logger,
	}
	ledger := paymentsapp.NewLedger(paymentsapp.LedgerDeps{
		UoWFactory: store.factory,
		Gateway:    buildGateway(cfg, logger),
		Lifecycle:  lifecycle,
		Clock:      sysClock,
		Metrics:    metrics,
		Logger:     logger,
	})
	ledger.CancelOnFailure = cfg.CancelOnFailure

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(cmdBus, queryBus,
		&bookingapp.ReserveBookingHandler{UoWFactory: store.factory, Clock: sysClock, Metrics: metrics, Logger: logger},
		&bookingapp.CancelBookingHandler{UoWFactory: store.factory, Lifecycle: lifecycle},
		&bookingapp.GetBookingHandler{UoWFactory: store.factory},
		&bookingapp.ListBookingsHandler{UoWFactory: store.factory},
	)
	paymentsapp.Register(cmdBus, ledger, store.inbox, logger)

	validator := middleware.NewStructValidator()
	commandBus := middleware.ChainCommands(cmdBus,
		middleware.Logging(logger),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Validation(validator),
		middleware.Idempotency(store.idempotency, nil),
		middleware.Transaction(store.factory),
	)
	guardedQueries := middleware.ChainQueries(queryBus,
		middleware.QueryAuthorization(middleware.RequireActor{}),
		middleware.QueryValidation(validator),
	)

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: commandBus, Queries: guardedQueries},
		Payment: ginserver.PaymentHandler{Commands: commandBus},
		Metrics: metrics.Handler(),
	}

	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("staybook"))
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		producer = p
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
	}
	app.worker = &infraoutbox.Worker{
		Store:       store.source,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	app.sweeper = &bookingapp.Sweeper{
		UoWFactory: store.factory,
		Lifecycle:  lifecycle,
		Clock:      sysClock,
		PendingTTL: cfg.BookingPendingTTL,
		Interval:   cfg.SweepInterval,
		Logger:     logger,
	}

	if cfg.KafkaCallbackTopic != "" {
		handler := kafka.CallbackHandler{Commands: commandBus, Logger: logger, Backoff: time.Second}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig("staybook-callbacks"), handler, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.consumer = consumer
		app.callbackTopics = []string{cfg.KafkaCallbackTopic}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	}
	return app, nil
}

func (a *application) openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("mongo: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		factory := mongodb.NewFactory(client.DB)
		box, err := inbox.NewStore(ctx, client.DB, callbackConsumer)
		if err != nil {
			return storage{}, fmt.Errorf("mongo inbox: %w", err)
		}
		idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return storage{}, fmt.Errorf("mongo idempotency: %w", err)
		}
		return storage{factory: factory, source: factory.OutboxStore, inbox: box, idempotency: idem}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return storage{}, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.checks["postgres"] = db.PingContext
		if err := postgres.Migrate(ctx, db); err != nil {
			return storage{}, err
		}
		factory := postgres.NewFactory(db)
		return storage{
			factory:     factory,
			source:      factory.OutboxStore,
			inbox:       postgres.NewInbox(db, callbackConsumer),
			idempotency: postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		}, nil
	default:
		store := memory.NewStore()
		return storage{
			factory:     memory.Factory{Store: store},
			source:      store,
			inbox:       memory.NewInbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}, nil
	}
}

func buildGateway(cfg config.Config, logger *slog.Logger) policies.PaymentGateway {
	var next policies.PaymentGateway
	switch cfg.PaymentProvider {
	case config.ProviderChapa:
		next = &chapa.Client{
			HTTP:        &http.Client{Timeout: cfg.GatewayTimeout},
			BaseURL:     cfg.ChapaBaseURL,
			SecretKey:   cfg.ChapaSecretKey,
			CallbackURL: cfg.ChapaCallbackURL,
			ReturnURL:   cfg.ChapaReturnURL,
			Logger:      logger,
		}
	default:
		gw := sandbox.New()
		if state, err := domainpayment.ParseGatewayState(cfg.SandboxSettle); err == nil {
			gw.Settle = state
		}
		next = gw
	}
	return breaker.Wrap(next, breaker.New(cfg.GatewayMaxFailures, cfg.GatewayResetTimeout), cfg.GatewayTimeout, logger)
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
