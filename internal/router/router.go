package router

import (
	"net/http"

	"ecom_ops_backend/internal/cache"
	"ecom_ops_backend/internal/config"
	"ecom_ops_backend/internal/handlers"
	"ecom_ops_backend/internal/middleware"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators chosen at startup. Only Store is
// required; nil integrations make their endpoints answer "not configured".
type Dependencies struct {
	Store         *repositories.Store
	CostCache     cache.CostTable
	Locker        cache.Locker
	OrderSource   services.OrderSource
	ProductSource services.ProductSource
	Shippo        services.ShippoAPI
	Clock         utils.Clock
}

// New builds the engine with the common middleware and every route.
func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(utils.RequestID())
	engine.Use(utils.GinLogger())
	engine.Use(gin.Recovery())
	engine.Use(metrics.PrometheusMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.APIKeyHeader, utils.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{utils.RequestIDHeader}
	engine.Use(cors.New(corsConfig))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	engine.GET("/metrics", metrics.Handler())

	Setup(engine, cfg, deps)
	return engine
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, cfg *config.Config, deps Dependencies) {
	clock := deps.Clock
	if clock == nil {
		clock = utils.NewZoneClock(cfg.Location())
	}
	store := deps.Store
	jwtSecret := []byte(cfg.JWTSecret)

	// Initialize Services
	guard := services.NewSyncGuard(deps.Locker, 0)
	costService := services.NewCostLookupService(store.CostLookups, deps.CostCache)
	ruleService := services.NewRuleService(store.Rules, cfg.RegexMaxPatternLength)
	affiliateService := services.NewAffiliateService(store, cfg.AffiliateRate, clock, guard)
	orderService := services.NewOrderService(store, costService, affiliateService, deps.OrderSource, guard, cfg.SyncBatchSize)
	productService := services.NewProductService(store.Products, costService, deps.ProductSource, guard, cfg.LowStockThreshold, cfg.SyncBatchSize)
	shippoService := services.NewShippoSyncService(deps.Shippo, store, clock, guard)
	importService := services.NewImportService(store, ruleService, clock)
	expenseService := services.NewExpenseService(store.Expenses, clock)
	reportService := services.NewReportService(store.Reports)
	authService := services.NewAuthService(store.Users, cfg.JWTSecret, cfg.JWTExpiration)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	orderHandler := handlers.NewOrderHandler(orderService)
	adminHandler := handlers.NewAdminHandler(orderService, productService, shippoService, affiliateService)
	importHandler := handlers.NewImportHandler(importService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	costHandler := handlers.NewCostLookupHandler(costService)
	productHandler := handlers.NewProductHandler(productService)
	reportHandler := handlers.NewReportHandler(reportService)

	if cfg.AutomationAuthDisabled() {
		utils.LogWarn("Automation endpoints are running without an API key (ALLOW_INSECURE_AUTOMATION)")
	}

	root := engine.Group("")
	SetupAuthRoutes(root, authHandler, jwtSecret)

	webhooks := root.Group("")
	webhooks.Use(middleware.APIKeyMiddleware(middleware.APIKeyOptions{
		Key:      cfg.AutomationAPIKey,
		Insecure: cfg.AllowInsecureAutomation,
	}))
	SetupWebhookRoutes(webhooks, orderHandler)

	admin := root.Group("")
	admin.Use(middleware.APIKeyMiddleware(middleware.APIKeyOptions{
		Key:       cfg.AutomationAPIKey,
		Insecure:  cfg.AllowInsecureAutomation,
		JWTSecret: jwtSecret,
	}))
	SetupAdminRoutes(admin, adminHandler)

	authenticated := root.Group("")
	authenticated.Use(middleware.AuthMiddleware(jwtSecret))
	{
		SetupImportRoutes(authenticated, importHandler)
		SetupRuleRoutes(authenticated, ruleHandler)
		SetupExpenseRoutes(authenticated, expenseHandler)
		SetupCostLookupRoutes(authenticated, costHandler)
		SetupOrderRoutes(authenticated, orderHandler)
		SetupProductRoutes(authenticated, productHandler)
		SetupDashboardRoutes(authenticated, reportHandler)
	}
}
