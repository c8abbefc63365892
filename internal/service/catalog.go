package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/search"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/pagination"
)

type CatalogService struct {
	Repo        *repo.GormRepo
	SearchIndex search.Index
}

var slugJunk = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	return strings.Trim(slugJunk.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	out, err := s.Repo.ListCategories(ctx)
	return out, dbErr(err, "categories")
}

func (s *CatalogService) CreateCategory(ctx context.Context, req transport.CategoryRequest) (*models.Category, error) {
	c := &models.Category{Name: strings.TrimSpace(req.Name), ParentID: req.ParentID}
	if err := s.fillCategory(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateCategory(ctx, c); err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, req transport.CategoryRequest) (*models.Category, error) {
	c, err := s.Repo.GetCategory(ctx, id)
	if err != nil {
		return nil, dbErr(err, "category")
	}
	if req.ParentID != nil && *req.ParentID == id {
		return nil, Invalid("parentId", "category cannot be its own parent")
	}
	c.Name = strings.TrimSpace(req.Name)
	c.ParentID = req.ParentID
	if err := s.fillCategory(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveCategory(ctx, c); err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

func (s *CatalogService) fillCategory(ctx context.Context, c *models.Category, req transport.CategoryRequest) error {
	c.Slug = Slugify(req.Slug)
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Name == "" || c.Slug == "" {
		return Invalid("name", "required")
	}
	if c.ParentID != nil {
		if _, err := s.Repo.GetCategory(ctx, *c.ParentID); err != nil {
			return dbErr(err, "parent category")
		}
	}
	return nil
}

func categoryErr(err error) error {
	if isUniqueViolation(err) {
		return &ConflictError{Field: "name", Message: "category name or slug already exists"}
	}
	return dbErr(err, "save category")
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	return dbErr(s.Repo.DeleteCategory(ctx, id), "category")
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	return p, dbErr(err, "product")
}

func (s *CatalogService) ListProducts(ctx context.Context, f repo.ProductFilter, page, size int) (*pagination.Page[models.Product], error) {
	offset, limit := pagination.Calculate(page, size)
	total, items, err := s.Repo.ListProducts(ctx, f, offset, limit)
	if err != nil {
		return nil, dbErr(err, "products")
	}
	return &pagination.Page[models.Product]{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor Actor, req transport.CreateProductRequest) (*models.Product, error) {
	if !actor.IsSeller() && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only sellers list products", ErrForbidden)
	}
	p := &models.Product{
		VendorID:            actor.ID,
		CategoryID:          req.CategoryID,
		SKU:                 strings.TrimSpace(req.SKU),
		Name:                strings.TrimSpace(req.Name),
		Description:         req.Description,
		Stock:               req.Stock,
		MinThreshold:        req.MinThreshold,
		SuggestedReorderQty: req.SuggestedReorderQty,
		Active:              true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	verr := &ValidationError{}
	if req.Price == nil {
		verr.Add("price", "required")
	}
	centsInto(verr, req.Price, "price", &p.Price)
	centsInto(verr, req.OriginalPrice, "originalPrice", &p.OriginalPrice)
	centsInto(verr, req.PurchasePrice, "purchasePrice", &p.PurchasePrice)
	if p.SKU == "" {
		verr.Add("sku", "required")
	}
	if p.Name == "" {
		verr.Add("name", "required")
	}
	if p.Stock < 0 {
		verr.Add("stock", "must not be negative")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		return tx.IncStoreCounter(ctx, p.VendorID, repo.CounterProducts, 1)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Field: "sku", Message: "sku already exists"}
		}
		return nil, dbErr(err, "create product")
	}

	s.index(ctx, p)
	return p, nil
}

// centsInto converts d into dst, collecting any problem into verr. A nil d leaves dst unchanged.
func centsInto(verr *ValidationError, d *decimal.Decimal, field string, dst *int64) {
	if d == nil {
		return
	}
	v, err := cents(d, field)
	var ve *ValidationError
	if errors.As(err, &ve) {
		for k, m := range ve.Fields {
			verr.Add(k, m)
		}
		return
	}
	*dst = v
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := s.Repo.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Invalid("categoryId", "unknown category")
		}
		return dbErr(err, "category")
	}
	return nil
}

// UpdateProduct applies a partial update. Only the owning seller or an admin may edit.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor Actor, id uint, req transport.PatchProductRequest) (*models.Product, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	centsInto(verr, req.Price, "price", &p.Price)
	centsInto(verr, req.OriginalPrice, "originalPrice", &p.OriginalPrice)
	centsInto(verr, req.PurchasePrice, "purchasePrice", &p.PurchasePrice)
	if req.Name != nil {
		if n := strings.TrimSpace(*req.Name); n == "" {
			verr.Add("name", "must not be empty")
		} else {
			p.Name = n
		}
	}
	if req.MinThreshold != nil {
		if *req.MinThreshold < 0 {
			verr.Add("minThreshold", "must not be negative")
		} else {
			p.MinThreshold = *req.MinThreshold
		}
	}
	if req.SuggestedReorderQty != nil {
		if *req.SuggestedReorderQty < 0 {
			verr.Add("suggestedReorderQty", "must not be negative")
		} else {
			p.SuggestedReorderQty = *req.SuggestedReorderQty
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = req.CategoryID
	}

	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		return nil, dbErr(err, "update product")
	}
	s.index(ctx, p)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actor Actor, id uint) error {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.SoftDeleteProduct(ctx, p.ID); err != nil {
			return err
		}
		return tx.IncStoreCounter(ctx, p.VendorID, repo.CounterProducts, -1)
	})
	if err != nil {
		return dbErr(err, "delete product")
	}
	if s.SearchIndex != nil {
		if err := s.SearchIndex.DeleteProduct(ctx, p.ID); err != nil {
			logging.FromContext(ctx).Warnw("search_delete_error", "product_id", p.ID, "error", err)
		}
	}
	return nil
}

func (s *CatalogService) owned(ctx context.Context, actor Actor, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, dbErr(err, "product")
	}
	if !actor.IsAdmin() && p.VendorID != actor.ID {
		return nil, fmt.Errorf("%w: product belongs to another seller", ErrForbidden)
	}
	return p, nil
}

func (s *CatalogService) index(ctx context.Context, p *models.Product) {
	if s.SearchIndex == nil {
		return
	}
	if err := s.SearchIndex.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warnw("search_index_error", "product_id", p.ID, "error", err)
	}
}

// Search queries the index when configured and falls back to SQL LIKE otherwise
// or when the index is unreachable.
func (s *CatalogService) Search(ctx context.Context, query string, page, size int) (*pagination.Page[models.Product], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Invalid("q", "required")
	}
	offset, limit := pagination.Calculate(page, size)
	result := &pagination.Page[models.Product]{Page: offset/limit + 1, PageSize: limit}

	if s.SearchIndex != nil {
		total, ids, err := s.SearchIndex.Search(ctx, query, offset, limit)
		if err == nil {
			byID, err := s.Repo.ProductsByIDs(ctx, ids)
			if err != nil {
				return nil, dbErr(err, "search products")
			}
			result.Total = total
			result.Items = make([]models.Product, 0, len(ids))
			for _, id := range ids {
				if p, ok := byID[id]; ok && p.Active {
					result.Items = append(result.Items, p)
				}
			}
			return result, nil
		}
		logging.FromContext(ctx).Warnw("search_query_error", "query", query, "error", err)
	}

	total, items, err := s.Repo.SearchProductsLike(ctx, query, offset, limit)
	if err != nil {
		return nil, dbErr(err, "search products")
	}
	result.Total, result.Items = total, items
	return result, nil
}
