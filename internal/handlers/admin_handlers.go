package handlers

import (
	"net/http"
	"strconv"
	"time"

	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the automation and maintenance passes.
type AdminHandler struct {
	orders     services.OrderService
	products   services.ProductService
	shippo     services.ShippoSyncService
	affiliates services.AffiliateService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orders services.OrderService, products services.ProductService, shippo services.ShippoSyncService, affiliates services.AffiliateService) *AdminHandler {
	return &AdminHandler{orders: orders, products: products, shippo: shippo, affiliates: affiliates}
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(utils.DateLayout, raw)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format. Use YYYY-MM-DD.", raw))
		return nil, false
	}
	return &t, true
}

// SyncShippingFromShippo runs the insert-only Shippo orders pass.
func (h *AdminHandler) SyncShippingFromShippo(c *gin.Context) {
	var req services.ShippoOrdersSyncRequest
	var ok bool
	if req.MaxPages, ok = queryInt(c, "max_pages", 0); !ok {
		return
	}
	if req.StartDate, ok = queryDate(c, "start_date"); !ok {
		return
	}
	if req.EndDate, ok = queryDate(c, "end_date"); !ok {
		return
	}

	result, err := h.shippo.SyncOrders(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "sync shipping from Shippo")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResyncShippoExpenses overwrites shipping costs from Shippo transactions.
func (h *AdminHandler) ResyncShippoExpenses(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	result, err := h.shippo.ResyncTransactions(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "resync Shippo expenses")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncShippoInvoices imports paid Shippo invoices as expenses.
func (h *AdminHandler) SyncShippoInvoices(c *gin.Context) {
	maxPages, ok := queryInt(c, "max_pages", 0)
	if !ok {
		return
	}
	result, err := h.shippo.SyncInvoices(c.Request.Context(), maxPages)
	if err != nil {
		respondServiceError(c, err, "sync Shippo invoices")
		return
	}
	c.JSON(http.StatusOK, result)
}

// BackfillAffiliateExpenses derives affiliate expenses for historical orders.
func (h *AdminHandler) BackfillAffiliateExpenses(c *gin.Context) {
	result, err := h.affiliates.Backfill(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "backfill affiliate expenses")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncOrder re-fetches one order from the storefront and ingests it.
func (h *AdminHandler) SyncOrder(c *gin.Context) {
	wooID, err := strconv.ParseInt(c.Param("woo_id"), 10, 64)
	if err != nil || wooID <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid woo_id format.", c.Param("woo_id")))
		return
	}
	result, err := h.orders.SyncOrder(c.Request.Context(), wooID)
	if err != nil {
		respondServiceError(c, err, "sync order")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncOrders ingests one page of storefront orders.
func (h *AdminHandler) SyncOrders(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	perPage, ok := queryInt(c, "per_page", 0)
	if !ok {
		return
	}
	result, err := h.orders.SyncOrdersPage(c.Request.Context(), page, perPage)
	if err != nil {
		respondServiceError(c, err, "sync orders")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncProducts pages storefront products into the local catalog.
func (h *AdminHandler) SyncProducts(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	perPage, ok := queryInt(c, "per_page", 0)
	if !ok {
		return
	}
	result, err := h.products.SyncPage(c.Request.Context(), page, perPage)
	if err != nil {
		respondServiceError(c, err, "sync products")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecomputeQtySold rebuilds every product's sold quantity from order lines.
func (h *AdminHandler) RecomputeQtySold(c *gin.Context) {
	updated, err := h.products.RecomputeQtySold(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "recompute quantity sold")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
