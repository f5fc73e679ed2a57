package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecom_ops_backend/internal/cache"
	"ecom_ops_backend/internal/clients/shippo"
	"ecom_ops_backend/internal/clients/woocommerce"
	"ecom_ops_backend/internal/config"
	"ecom_ops_backend/internal/database"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/internal/repositories/memory"
	"ecom_ops_backend/internal/router"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.InitLogger("info", "console")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.DataProvider).Msg("Failed to open data provider")
	}
	defer closeStore()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// Without redis the cost table is read from the store on every call
		// and sync locks are process-local.
		utils.LogError(err, "Redis unavailable, continuing without cache")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
		utils.LogInfo("Redis connected", map[string]interface{}{"addr": cfg.RedisAddr})
	}

	deps := router.Dependencies{
		Store:     store,
		CostCache: cache.NewCostTable(rdb, cfg.CostCacheTTL),
		Locker:    cache.NewLocker(rdb),
		Clock:     utils.NewZoneClock(cfg.Location()),
	}

	woo, err := woocommerce.New(cfg.WooBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret)
	switch {
	case err == nil:
		deps.OrderSource = woo
		deps.ProductSource = woo
	case errors.Is(err, woocommerce.ErrNotConfigured):
		utils.LogWarn("WooCommerce is not configured; order re-fetch and product sync are disabled")
	default:
		log.Fatal().Err(err).Msg("Failed to create WooCommerce client")
	}

	shippoClient, err := shippo.New(cfg.ShippoBaseURL, cfg.ShippoAPIToken)
	switch {
	case err == nil:
		deps.Shippo = shippoClient
	case errors.Is(err, shippo.ErrNotConfigured):
		utils.LogWarn("Shippo is not configured; shipping sync endpoints are disabled")
	default:
		log.Fatal().Err(err).Msg("Failed to create Shippo client")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "provider": cfg.DataProvider})
		serverErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		utils.LogInfo("Shutdown signal received")
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError(err, "Server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Graceful shutdown failed")
	}
}

// openStore selects the data provider named by DATA_PROVIDER.
func openStore(ctx context.Context, cfg *config.Config) (*repositories.Store, func(), error) {
	if cfg.DataProvider == config.ProviderMemory {
		var seed *memory.Seed
		if cfg.DemoSeedPath != "" {
			loaded, err := memory.LoadSeed(cfg.DemoSeedPath)
			if err != nil {
				return nil, nil, err
			}
			seed = loaded
		}
		store, err := memory.NewStore(seed)
		if err != nil {
			return nil, nil, err
		}
		utils.LogWarn("Using the in-memory data provider; data is lost on restart", map[string]interface{}{"seed": cfg.DemoSeedPath})
		return store, func() {}, nil
	}

	db, err := database.Open(ctx, database.Options{
		Host:        cfg.DB.Host,
		Port:        cfg.DB.Port,
		User:        cfg.DB.User,
		Password:    cfg.DB.Password,
		Name:        cfg.DB.Name,
		SSLMode:     cfg.DB.SSLMode,
		SchemaPath:  cfg.DB.SchemaPath,
		ApplySchema: cfg.DB.ApplySchema,
	})
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewPostgresStore(db), func() { db.Close() }, nil
}
