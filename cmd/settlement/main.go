package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/archive"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/handler"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/leader"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/oppdrag"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/postgres"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/rabbitmq"
	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/vedtak"
	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/service"
	"github.com/DanielPopoola/etterlatte-settlement/internal/worker"
	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator"
)

const defaultLeaderKey = "etterlatte-settlement:leader"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting settlement service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"leader_mode", cfg.Leader.Mode,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderStore := postgres.NewOrderStore(db, logger)
	batchStore := postgres.NewBatchStore(db)

	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		logger.Error("failed to create line id generator", "error", err)
		os.Exit(1)
	}

	conn, err := rabbitmq.Dial(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	orderPublisher := mustPublisher(logger, conn, cfg.RabbitMQ.OrderQueue, rabbitmq.ContentTypeXML)
	defer orderPublisher.Close()
	reportPublisher := mustPublisher(logger, conn, cfg.RabbitMQ.ReportQueue, rabbitmq.ContentTypeXML)
	defer reportPublisher.Close()
	statusPublisher := mustPublisher(logger, conn, cfg.RabbitMQ.StatusEventQueue, rabbitmq.ContentTypeJSON)
	defer statusPublisher.Close()
	statusEvents := rabbitmq.NewStatusEvents(statusPublisher)

	elector, resign, err := newElector(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up leader election", "error", err)
		os.Exit(1)
	}
	defer resign()

	reportArchive, err := newArchive(ctx, cfg.Minio)
	if err != nil {
		logger.Error("failed to set up report archive", "error", err)
		os.Exit(1)
	}

	vedtakClient := vedtak.NewClient(cfg.Vedtak)
	decisionSource := vedtak.NewRetryClient(vedtakClient, cfg.Retry)

	codec := oppdrag.NewCodec()
	verifier := service.NewDecisionVerifier()
	dispatcher := service.NewDispatcher(orderStore, codec, orderPublisher, cfg.RabbitMQ.PublishTimeout, logger)
	processor := service.NewDecisionProcessor(
		orderStore,
		service.NewPaymentLineBuilder(node),
		verifier,
		dispatcher,
		statusEvents,
		logger,
	)
	acknowledgements := service.NewAcknowledgementHandler(orderStore, codec, statusEvents, logger)

	grensesnitt := service.NewGrensesnittAvstemming(
		orderStore,
		batchStore,
		codec,
		reportPublisher,
		reportArchive,
		cfg.Reconciliation.ChunkSize,
		cfg.Reconciliation.DefaultWindow,
		cfg.Reconciliation.SettleDelay,
		cfg.RabbitMQ.PublishTimeout,
		logger,
	)
	konsistens := service.NewKonsistensAvstemming(
		orderStore,
		batchStore,
		codec,
		reportPublisher,
		reportArchive,
		cfg.Reconciliation.ChunkSize,
		cfg.Reconciliation.StuckAfter,
		cfg.RabbitMQ.PublishTimeout,
		logger,
	)
	sweep := service.NewVerificationSweep(orderStore, decisionSource, verifier, cfg.Reconciliation.DefaultWindow, logger)
	redispatcher := service.NewRedispatcher(
		orderStore,
		dispatcher,
		statusEvents,
		cfg.Reconciliation.RedispatchGrace,
		cfg.Reconciliation.RedispatchBatchSize,
		logger,
	)

	validate := validator.New()

	h := handler.NewSettlementHandler(processor, processor, orderStore, validate)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	router := http.Handler(mux)

	srvHandler := handler.Recovery(logger)(router)
	srvHandler = handler.Logging(logger)(srvHandler)
	srvHandler = handler.Timeout(cfg.Server.ReadTimeout)(srvHandler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      srvHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scheduler := worker.NewScheduler(elector, logger,
		worker.GrensesnittJob(grensesnitt, cfg.Reconciliation.GrensesnittInterval, logger),
		worker.KonsistensJob(konsistens, cfg.Reconciliation.KonsistensInterval, logger),
		worker.SweepJob(sweep, cfg.Reconciliation.SweepInterval, logger),
		worker.RedispatchJob(redispatcher, cfg.Reconciliation.RedispatchInterval, logger),
	)

	consumers := []*rabbitmq.Consumer{
		rabbitmq.NewConsumer(
			conn,
			cfg.RabbitMQ.ReceiptQueue,
			cfg.RabbitMQ.ReceiptDLQ,
			cfg.RabbitMQ.PrefetchCount,
			cfg.RabbitMQ.ConsumerWorkers,
			rabbitmq.NewReceiptHandler(acknowledgements),
			rabbitmq.ReceiptDisposition,
			logger,
		),
		rabbitmq.NewConsumer(
			conn,
			cfg.RabbitMQ.DecisionQueue,
			cfg.RabbitMQ.DecisionDLQ,
			cfg.RabbitMQ.PrefetchCount,
			cfg.RabbitMQ.ConsumerWorkers,
			rabbitmq.NewDecisionHandler(processor, validate),
			rabbitmq.DecisionDisposition,
			logger,
		),
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	transportErr := make(chan error, len(consumers))

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(workerCtx)
	}()

	for _, c := range consumers {
		wg.Add(1)
		go func(c *rabbitmq.Consumer) {
			defer wg.Done()
			if err := c.Run(workerCtx); err != nil {
				transportErr <- err
			}
		}(c)
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		logger.Info("shutting down server...")
	case err := <-transportErr:
		logger.Error("message transport lost, exiting", "error", err)
		exitCode = 1
	}

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("server exited")

	if exitCode != 0 {
		resign()
		conn.Close()
		db.Close()
		os.Exit(exitCode)
	}
}

func mustPublisher(logger *slog.Logger, conn *rabbitmq.Connection, queue, contentType string) *rabbitmq.Publisher {
	pub, err := rabbitmq.NewPublisher(conn, queue, "", contentType)
	if err != nil {
		logger.Error("failed to declare publisher", "queue", queue, "error", err)
		os.Exit(1)
	}
	return pub
}

// newElector returns the configured elector and a release func for shutdown.
func newElector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.LeaderElector, func(), error) {
	noop := func() {}

	switch cfg.Leader.Mode {
	case "redis":
		client, err := leader.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		key := cfg.Leader.Key
		if key == "" {
			key = defaultLeaderKey
		}
		ttl := cfg.Leader.TTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		elector := leader.NewRedisElector(client, key, ttl, logger)
		var once sync.Once
		return elector, func() {
			once.Do(func() {
				if err := elector.Resign(context.Background()); err != nil {
					logger.Warn("failed to resign leadership", "error", err)
				}
				_ = client.Close()
			})
		}, nil
	case "http":
		elector, err := leader.NewHTTPElector(cfg.Leader.ElectorURL, cfg.Vedtak.ConnTimeout, logger)
		if err != nil {
			return nil, noop, err
		}
		return elector, noop, nil
	case "static":
		return leader.NewStaticElector(cfg.Leader.Static), noop, nil
	default:
		return nil, noop, errors.New("unknown leader mode " + cfg.Leader.Mode)
	}
}

func newArchive(ctx context.Context, cfg config.MinioConfig) (ports.ReportArchive, error) {
	if !cfg.Enabled {
		return archive.Discard{}, nil
	}
	client, err := archive.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	a := archive.NewMinioArchive(client, cfg.Bucket)
	if err := a.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
