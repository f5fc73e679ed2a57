package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ecom_ops_backend/internal/clients/woocommerce"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// ProductSource lists catalog products from the storefront platform.
type ProductSource interface {
	ListProducts(ctx context.Context, page, perPage int) ([]woocommerce.Product, error)
}

// ProductSyncPage DTO
type ProductSyncPage struct {
	Page     int          `json:"page"`
	PerPage  int          `json:"per_page"`
	Created  int          `json:"created"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Details  []SyncDetail `json:"details"`
	NextPage *int         `json:"next_page"`
	Done     bool         `json:"done"`
}

// ProductService keeps the local catalog and its derived stock figures.
type ProductService interface {
	List(ctx context.Context) ([]models.Product, error)
	SyncPage(ctx context.Context, page, perPage int) (*ProductSyncPage, error)
	RecomputeQtySold(ctx context.Context) (int, error)
}

type productService struct {
	products     repositories.ProductRepository
	costs        CostLookupService
	source       ProductSource
	locks        *SyncGuard
	lowThreshold int
	defaultPage  int
}

// NewProductService creates a new instance of ProductService.
func NewProductService(products repositories.ProductRepository, costs CostLookupService, source ProductSource, locks *SyncGuard, lowThreshold, batchSize int) ProductService {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &productService{
		products:     products,
		costs:        costs,
		source:       source,
		locks:        locks,
		lowThreshold: lowThreshold,
		defaultPage:  batchSize,
	}
}

func (s *productService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	for i := range products {
		products[i].Refresh(s.lowThreshold)
	}
	return products, nil
}

func (s *productService) RecomputeQtySold(ctx context.Context) (int, error) {
	n, err := s.products.RecomputeQtySold(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}

// productFromPlatform maps a storefront product; unit cost comes from the
// cost table since the platform has no cost field.
func productFromPlatform(p woocommerce.Product, table CostTable) models.Product {
	wooID := p.ID
	out := models.Product{
		WooProductID: &wooID,
		Name:         strings.TrimSpace(p.Name),
		SKU:          strings.TrimSpace(p.SKU),
		StartingQty:  p.Stock(),
		UnitCost:     table.Match(p.Name, "").CostPerUnit,
	}
	if out.Name == "" {
		out.Name = "Product " + strconv.FormatInt(wooID, 10)
	}
	if d, ok := utils.ParseLooseAmount(p.RegularPrice); ok {
		out.RetailPrice = d
	} else if d, ok := utils.ParseLooseAmount(p.Price); ok {
		out.RetailPrice = d
	}
	if d, ok := utils.ParseLooseAmount(p.SalePrice); ok && d.IsPositive() {
		out.SalePrice = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return out
}

func (s *productService) SyncPage(ctx context.Context, page, perPage int) (*ProductSyncPage, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: woocommerce", ErrNotConfigured)
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.defaultPage
	}
	if perPage > 100 {
		perPage = 100
	}

	result := &ProductSyncPage{Page: page, PerPage: perPage, Details: []SyncDetail{}}
	err := s.locks.run(ctx, "woo_products", func(refresh func()) error {
		raw, err := s.source.ListProducts(ctx, page, perPage)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		table := s.costs.Table(ctx)
		for _, p := range raw {
			product := productFromPlatform(p, table)
			ref := strconv.FormatInt(p.ID, 10)
			created, err := s.products.UpsertFromPlatform(ctx, &product)
			if err != nil {
				result.Failed++
				metrics.RecordSyncError("woo_products")
				result.Details = append(result.Details, SyncDetail{Ref: ref, Status: "error", Error: err.Error()})
				continue
			}
			status := "updated"
			if created {
				status = "created"
				result.Created++
			} else {
				result.Updated++
			}
			result.Details = append(result.Details, SyncDetail{Ref: ref, Status: status, Note: product.Name})
		}
		refresh()
		result.Done = len(raw) < perPage
		if !result.Done {
			next := page + 1
			result.NextPage = &next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
