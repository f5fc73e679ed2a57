package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 2 << 20

// OrderHandler serves the order webhook and the order read paths.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

func isFormRequest(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// readOrderPayload accepts either a JSON object or flattened form fields.
func readOrderPayload(c *gin.Context) (services.OrderPayload, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	if isFormRequest(c.Request) {
		if strings.HasPrefix(strings.ToLower(c.ContentType()), "multipart/") {
			if err := c.Request.ParseMultipartForm(maxWebhookBody); err != nil {
				return nil, "", err
			}
		} else if err := c.Request.ParseForm(); err != nil {
			return nil, "", err
		}
		return services.NewOrderPayloadFromForm(c.Request.PostForm), services.OriginForm, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, "", errors.New("empty request body")
	}
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	var payload services.OrderPayload
	if err := d.Decode(&payload); err != nil {
		return nil, "", err
	}
	if payload == nil {
		return nil, "", errors.New("order payload must be a JSON object")
	}
	return payload, services.OriginWebhook, nil
}

// IngestOrder handles the order webhook (JSON or form-encoded).
func (h *OrderHandler) IngestOrder(c *gin.Context) {
	payload, origin, err := readOrderPayload(c)
	if err != nil {
		utils.LogError(err, "IngestOrder: Failed to read payload")
		respondBindError(c, err)
		return
	}

	result, err := h.orderService.Ingest(c.Request.Context(), payload, origin)
	if err != nil {
		respondServiceError(c, err, "ingest order")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOrders handles fetching orders with filters.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err)
		return
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 50
	}

	orders, totalCount, err := h.orderService.GetOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "fetch orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      orders,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetOrder handles fetching a single order, with its lines, by order number.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("order_number"))
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}
	c.JSON(http.StatusOK, order)
}
