package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/auth"
	authpg "github.com/frahmantamala/credit-marketplace/internal/auth/postgres"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	"github.com/frahmantamala/credit-marketplace/internal/core/events"
	"github.com/frahmantamala/credit-marketplace/internal/eventsink"
	"github.com/frahmantamala/credit-marketplace/internal/image"
	"github.com/frahmantamala/credit-marketplace/internal/ledger"
	"github.com/frahmantamala/credit-marketplace/internal/metrics"
	"github.com/frahmantamala/credit-marketplace/internal/paymentgateway"
	"github.com/frahmantamala/credit-marketplace/internal/plan"
	"github.com/frahmantamala/credit-marketplace/internal/transaction"
	txpg "github.com/frahmantamala/credit-marketplace/internal/transaction/postgres"
	"github.com/frahmantamala/credit-marketplace/internal/transport"
	"github.com/frahmantamala/credit-marketplace/internal/transport/rest"
	"github.com/frahmantamala/credit-marketplace/internal/transport/swagger"
	"github.com/frahmantamala/credit-marketplace/internal/user"
	userpg "github.com/frahmantamala/credit-marketplace/internal/user/postgres"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

const openAPIPath = "./api/openapi.yml"

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	EventBus *events.EventBus
	Kafka    *eventsink.KafkaForwarder

	Plans        *plan.Catalog
	Gateway      *paymentgateway.Client
	Transactions *transaction.Service
	TxRepo       *txpg.TransactionRepository
	Users        *user.Service
	Auth         *auth.Service
	Images       *image.Service
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	router := chi.NewRouter()
	setupRoutes(router, deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(router chi.Router, deps *Dependencies) {
	base := transport.NewBaseHandler(deps.Logger)

	health := rest.NewHealthHandler(base, deps.DB.DB)
	health.AddCheck("payment_gateway", func(context.Context) error {
		return deps.Gateway.BreakerError()
	})

	handlers := rest.Handlers{
		Health:      health,
		Auth:        auth.NewHandler(deps.Auth),
		User:        user.NewHandler(deps.Users),
		Plan:        plan.NewHandler(deps.Plans),
		Transaction: transaction.NewHandler(deps.Transactions, deps.Gateway),
		Webhook:     transaction.NewWebhookHandler(base, deps.Transactions, deps.Gateway),
		Image:       image.NewHandler(deps.Images),
	}

	opts := rest.Options{
		AllowedOrigins: deps.Config.Server.Origins(),
		Metrics:        deps.Metrics,
	}
	if deps.Config.Observability.Metrics.Enabled {
		opts.MetricsPath = deps.Config.Observability.Metrics.Path
		opts.Gatherer = deps.Registry
	}
	if _, err := swagger.LoadSpec(context.Background(), openAPIPath); err != nil {
		deps.Logger.Warn("openapi document not served", "error", err)
	} else {
		opts.OpenAPIPath = openAPIPath
	}

	rest.RegisterAllRoutes(router, handlers, opts, deps.Logger)
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := database.OpenGorm(db.DB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bus := events.NewEventBus(lg)
	var forwarder *eventsink.KafkaForwarder
	if brokers := config.Events.Kafka.BrokerList(); len(brokers) > 0 {
		forwarder = eventsink.NewKafkaForwarder(brokers, config.Events.Kafka.Topic, config.Events.Kafka.WriteTimeout, lg)
		forwarder.Register(bus)
		lg.Info("forwarding lifecycle events to kafka", "brokers", brokers, "topic", config.Events.Kafka.Topic)
	}

	sheetLedger, err := initLedger(ctx, config.Ledger, lg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:             config.Payment.BaseURL,
		KeyID:               config.Payment.KeyID,
		KeySecret:           config.Payment.KeySecret,
		WebhookSecret:       config.Payment.WebhookSecret,
		Timeout:             config.Payment.Timeout,
		BreakerMaxRequests:  config.Payment.Breaker.MaxRequests,
		BreakerInterval:     config.Payment.Breaker.Interval,
		BreakerOpenTimeout:  config.Payment.Breaker.OpenTimeout,
		BreakerMinRequests:  config.Payment.Breaker.MinRequests,
		BreakerFailureRatio: config.Payment.Breaker.FailureRatio,
	}, m, lg)

	userRepo := userpg.NewRepository(gormDB)
	userService := user.NewService(userRepo, lg)

	authService := auth.NewService(
		authpg.NewRepository(gormDB),
		auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenDuration),
		auth.Config{BCryptCost: config.Security.BCryptCost, SignupBonus: config.Credits.SignupBonus},
		lg,
	)

	plans := plan.DefaultCatalog()
	txRepo := txpg.NewTransactionRepository(gormDB)
	txService := transaction.NewService(transaction.Deps{
		Repo:       txRepo,
		Gateway:    gateway,
		Ledger:     sheetLedger,
		Credits:    userService,
		Plans:      plans,
		Transactor: database.NewTransactor(gormDB),
		Events:     bus,
		Metrics:    m,
		Logger:     lg,
		Config: transaction.Config{
			Currency:        config.Payment.Currency,
			MinorUnitFactor: config.Payment.MinorUnitFactor,
			LedgerTimeout:   config.Ledger.Timeout,
		},
	})

	imageService := image.NewService(
		image.NewClipDropClient(image.ClipDropConfig{
			APIURL:  config.Image.APIURL,
			APIKey:  config.Image.APIKey,
			Timeout: config.Image.Timeout,
		}, lg),
		userService,
		m,
		lg,
	)

	return &Dependencies{
		Config:       config,
		DB:           db,
		Gorm:         gormDB,
		Logger:       lg,
		Registry:     registry,
		Metrics:      m,
		EventBus:     bus,
		Kafka:        forwarder,
		Plans:        plans,
		Gateway:      gateway,
		Transactions: txService,
		TxRepo:       txRepo,
		Users:        userService,
		Auth:         authService,
		Images:       imageService,
	}, nil
}

// Close drains in-flight event handlers before closing the sinks they write to.
func (d *Dependencies) Close() {
	d.EventBus.Wait()
	if d.Kafka != nil {
		if err := d.Kafka.Close(); err != nil {
			d.Logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initLedger(ctx context.Context, cfg internal.LedgerConfig, lg *slog.Logger) (ledger.Ledger, error) {
	if !cfg.Enabled {
		lg.Warn("ledger sync disabled; completed purchases will not be booked to the spreadsheet")
		return ledger.Nop{}, nil
	}

	sheetsCfg := ledger.SheetsConfig{
		SpreadsheetID:       cfg.SpreadsheetID,
		Range:               cfg.Range,
		ServiceAccountEmail: cfg.ServiceAccountEmail,
		PrivateKey:          cfg.PEMPrivateKey(),
		Timeout:             cfg.Timeout,
	}
	svc, err := ledger.NewSheetsService(ctx, sheetsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	return ledger.NewSheetsLedger(svc, sheetsCfg), nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
