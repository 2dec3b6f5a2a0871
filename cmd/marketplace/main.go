package main

import (
	"context"
	"log"
	"net/http"

	"github.com/duocun/marketplace/config"
	"github.com/duocun/marketplace/internal/events"
	handler "github.com/duocun/marketplace/internal/handler/http"
	"github.com/duocun/marketplace/internal/middleware"
	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/redisx"
	"github.com/duocun/marketplace/internal/repository"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/duocun/marketplace/internal/service"
	"github.com/duocun/marketplace/internal/worker"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {

	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

// seedSystemAccounts makes sure the platform-owned ledger accounts exist.
func seedSystemAccounts(ctx context.Context, repo *repository.AccountRepository, sys config.SystemAccounts) error {
	accounts := []models.Account{
		{ID: sys.CashID, Name: sys.CashName, Type: models.AccountTypeSystem},
		{ID: sys.CardBankID, Name: sys.CardBankName, Type: models.AccountTypeSystem},
		{ID: sys.WechatBankID, Name: sys.WechatBankName, Type: models.AccountTypeSystem},
	}
	for i := range accounts {
		if err := repo.EnsureAccount(ctx, &accounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	err = db.Migrate()
	if err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	// optional settlement locks
	var locker *redisx.Locker
	if cfg.RedisAddr != "" {
		locker = redisx.NewLocker(redisx.New(cfg.RedisAddr))
	}

	// optional event stream
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, logger)
		defer publisher.Close()
	}

	// dependency injection
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)

	if err := seedSystemAccounts(ctx, accountRepo, cfg.System); err != nil {
		logger.Fatal("Error seeding system accounts", zap.Error(err))
	}

	inventoryService := service.NewInventoryService(productRepo)
	ledgerService := service.NewLedgerService(transactionRepo, accountRepo, cfg.System, logger)
	orderService := service.NewOrderService(orderRepo, inventoryService, ledgerService, publisher, logger)
	settlementService := service.NewSettlementService(orderRepo, creditRepo, ledgerService, settlementRepo, locker, publisher, logger)

	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(settlementService, logger)
	balanceHandler := handler.NewBalanceHandler(ledgerService, logger)

	router := chi.NewRouter()

	router.Use(middleware.Logging(logger))

	// gateway callback is authenticated by the gateway, not by user tokens
	router.Post("/api/payments/notify", paymentHandler.GatewayNotify())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(middleware.Auth([]byte(cfg.AuthTokenKey)))
		group.Post("/api/orders", orderHandler.PlaceOrders())
		group.Delete("/api/orders/{id}", orderHandler.CancelOrder())
		group.Put("/api/orders/{id}/status", orderHandler.UpdateOrderStatus())
		group.Get("/api/orders/{id}/transactions", balanceHandler.ListOrderTransactions())
		group.Get("/api/payments/{paymentId}/orders", orderHandler.ListBatchOrders())
		group.Post("/api/credits", paymentHandler.RequestCredit())
		group.Get("/api/accounts/{id}/balance", balanceHandler.GetBalance())
		group.Post("/api/accounts/{id}/balance/rebuild", balanceHandler.RebuildBalance())
	})

	// sweep abandoned gateway checkouts
	sweeper := worker.NewTempOrderSweeper(orderService, cfg.TempOrderTTL, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	logger.Info("Running server", zap.String("addr", cfg.ServerAddr))

	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		logger.Fatal("Error starting server", zap.Error(err))
	}
}
