package router

import (
	"ecom_ops_backend/internal/handlers"
	"ecom_ops_backend/internal/middleware"
	"ecom_ops_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up the authentication routes.
func SetupAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler, jwtSecret []byte) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/register", middleware.OptionalAuthMiddleware(jwtSecret), authHandler.RegisterUser)
		authRoutes.POST("/login", authHandler.LoginUser)
		authRoutes.GET("/me", middleware.AuthMiddleware(jwtSecret), authHandler.GetCurrentUser)
	}
}

// SetupWebhookRoutes sets up the automation webhooks.
func SetupWebhookRoutes(automationGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	webhookRoutes := automationGroup.Group("/webhooks")
	{
		webhookRoutes.POST("/order", orderHandler.IngestOrder)
	}
}

// SetupAdminRoutes sets up the sync, backfill and maintenance passes.
func SetupAdminRoutes(automationGroup *gin.RouterGroup, adminHandler *handlers.AdminHandler) {
	adminRoutes := automationGroup.Group("/admin")
	{
		adminRoutes.GET("/sync-shipping-from-shippo", adminHandler.SyncShippingFromShippo)
		adminRoutes.POST("/resync-shippo-expenses", adminHandler.ResyncShippoExpenses)
		adminRoutes.POST("/sync-shippo-invoices", adminHandler.SyncShippoInvoices)
		adminRoutes.POST("/backfill-affiliate-expenses", adminHandler.BackfillAffiliateExpenses)
		adminRoutes.POST("/sync-order/:woo_id", adminHandler.SyncOrder)
		adminRoutes.POST("/sync-orders", adminHandler.SyncOrders)
		adminRoutes.POST("/sync-products", adminHandler.SyncProducts)
		adminRoutes.POST("/recompute-qty-sold", adminHandler.RecomputeQtySold)
	}
}

// SetupImportRoutes sets up the statement import workflow routes.
func SetupImportRoutes(authenticatedGroup *gin.RouterGroup, importHandler *handlers.ImportHandler) {
	importRoutes := authenticatedGroup.Group("/expenses/import")
	importRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		importRoutes.POST("", importHandler.UploadStatement)
		importRoutes.GET("", importHandler.ListBatches)
		importRoutes.GET("/:id", importHandler.GetBatch)
		importRoutes.PATCH("/:id/lines/:line_id", importHandler.SetLineCategory)
		importRoutes.POST("/:id/lines/:line_id/reject", importHandler.RejectLine)
		importRoutes.POST("/:id/approve", importHandler.Approve)
	}
}

// SetupRuleRoutes sets up the categorization rule routes.
func SetupRuleRoutes(authenticatedGroup *gin.RouterGroup, ruleHandler *handlers.RuleHandler) {
	ruleRoutes := authenticatedGroup.Group("/expenses/rules")
	ruleRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		ruleRoutes.GET("", ruleHandler.ListRules)
		ruleRoutes.POST("", ruleHandler.CreateRule)
		ruleRoutes.POST("/test", ruleHandler.TestRule)
		ruleRoutes.PATCH("/:id", ruleHandler.UpdateRule)
		ruleRoutes.DELETE("/:id", ruleHandler.DeleteRule)
	}
}

// SetupExpenseRoutes sets up the expense ledger routes.
func SetupExpenseRoutes(authenticatedGroup *gin.RouterGroup, expenseHandler *handlers.ExpenseHandler) {
	expenseRoutes := authenticatedGroup.Group("/expenses")
	expenseRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		expenseRoutes.GET("", expenseHandler.GetExpenses)
		expenseRoutes.POST("", expenseHandler.CreateExpense)
		expenseRoutes.DELETE("/:id", expenseHandler.DeleteExpense)
	}
}

// SetupCostLookupRoutes sets up the product cost table routes.
func SetupCostLookupRoutes(authenticatedGroup *gin.RouterGroup, costHandler *handlers.CostLookupHandler) {
	costRoutes := authenticatedGroup.Group("/cost-lookups")
	costRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		costRoutes.GET("", costHandler.ListCostLookups)
		costRoutes.POST("", costHandler.UpsertCostLookup)
		costRoutes.DELETE("/:id", costHandler.DeleteCostLookup)
	}
}

// SetupOrderRoutes sets up the order read routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:order_number", orderHandler.GetOrder)
	}
}

// SetupProductRoutes sets up the product routes.
func SetupProductRoutes(authenticatedGroup *gin.RouterGroup, productHandler *handlers.ProductHandler) {
	authenticatedGroup.GET("/products", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator), productHandler.GetProducts)
}

// SetupDashboardRoutes sets up the dashboard routes.
func SetupDashboardRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	dashboardRoutes := authenticatedGroup.Group("/dashboard")
	dashboardRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleOperator))
	{
		dashboardRoutes.GET("/summary", reportHandler.GetDashboardSummary)
	}
}
