package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"purposepay/config"
	httpHandler "purposepay/internal/adapter/http/handler"
	memStorage "purposepay/internal/adapter/storage/memory"
	pgStorage "purposepay/internal/adapter/storage/postgres"
	redisStorage "purposepay/internal/adapter/storage/redis"
	"purposepay/internal/core/ports"
	"purposepay/internal/service"
	"purposepay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	wallets     ports.WalletRepository
	vouchers    ports.VoucherRepository
	redemptions ports.RedemptionRepository
	vendors     ports.VendorRepository
	finances    ports.VendorFinanceRepository
	ledger      ports.LedgerRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting PurposePay")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	rules, err := cfg.Ledger.Rules()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger configuration")
	}

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer repos.close()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional: without it idempotency falls back to the database
	// and rate limiting is disabled.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: rate limiting off, idempotency served from the database only")
	}

	gateway := service.NewSimulatedGateway(logger.Component(log, "gateway"))
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))
	defer auditSvc.Close()

	walletSvc := service.NewWalletService(
		repos.wallets,
		repos.ledger,
		repos.idempotency,
		idempotencyCache,
		gateway,
		repos.transactor,
		logger.Component(log, "wallet"),
	)
	voucherSvc := service.NewVoucherService(
		repos.wallets,
		repos.vouchers,
		repos.redemptions,
		repos.ledger,
		repos.idempotency,
		idempotencyCache,
		gateway,
		repos.transactor,
		rules,
		logger.Component(log, "voucher"),
	)
	redemptionSvc := service.NewRedemptionService(
		repos.vouchers,
		repos.redemptions,
		repos.vendors,
		repos.finances,
		repos.ledger,
		repos.transactor,
		rules,
		logger.Component(log, "redemption"),
	)
	vendorSvc := service.NewVendorService(
		repos.vendors,
		repos.finances,
		repos.redemptions,
		repos.ledger,
		gateway,
		repos.transactor,
		logger.Component(log, "vendor"),
	)

	apiSpec, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, /docs/spec will be unavailable")
		apiSpec = nil
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		VoucherSvc:     voucherSvc,
		RedemptionSvc:  redemptionSvc,
		VendorSvc:      vendorSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		APISpec:        apiSpec,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memStorage.NewStore()
		log.Warn().Msg("Using in-memory storage: data is lost on restart")
		return &repositories{
			wallets:     memStorage.NewWalletRepo(store),
			vouchers:    memStorage.NewVoucherRepo(store),
			redemptions: memStorage.NewRedemptionRepo(store),
			vendors:     memStorage.NewVendorRepo(store),
			finances:    memStorage.NewVendorFinanceRepo(store),
			ledger:      memStorage.NewLedgerRepo(store),
			idempotency: memStorage.NewIdempotencyRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			transactor:  memStorage.NewTransactor(store),
			health:      memStorage.HealthCheck{},
			close:       func() {},
		}, nil

	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")

		if cfg.Database.Migrate {
			if err := pgStorage.RunMigrations(ctx, pool, log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}

		return &repositories{
			wallets:     pgStorage.NewWalletRepo(pool),
			vouchers:    pgStorage.NewVoucherRepo(pool),
			redemptions: pgStorage.NewRedemptionRepo(pool),
			vendors:     pgStorage.NewVendorRepo(pool),
			finances:    pgStorage.NewVendorFinanceRepo(pool),
			ledger:      pgStorage.NewLedgerRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
