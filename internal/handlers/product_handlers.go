package handlers

import (
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ProductHandler serves the catalog with derived stock figures.
type ProductHandler struct {
	productService services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(ps services.ProductService) *ProductHandler {
	return &ProductHandler{productService: ps}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	products, err := h.productService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}
