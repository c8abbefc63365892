package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type ProductFilter struct {
	CategoryID *uint
	VendorID   *uint
	ActiveOnly bool
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.db(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.db(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.db(ctx).Create(c).Error
}

func (r *GormRepo) SaveCategory(ctx context.Context, c *models.Category) error {
	return r.db(ctx).Save(c).Error
}

func (r *GormRepo) DeleteCategory(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductsByIDs returns non-deleted products keyed by id.
func (r *GormRepo) ProductsByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	var list []models.Product
	if len(ids) == 0 {
		return map[uint]models.Product{}, nil
	}
	if err := r.db(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r *GormRepo) productQuery(ctx context.Context, f ProductFilter) *gorm.DB {
	q := r.db(ctx).Model(&models.Product{})
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.VendorID != nil {
		q = q.Where("vendor_id = ?", *f.VendorID)
	}
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	return q
}

func (r *GormRepo) ListProducts(ctx context.Context, f ProductFilter, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.productQuery(ctx, f).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := r.productQuery(ctx, f).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.db(ctx).Create(p).Error
}

func (r *GormRepo) SaveProduct(ctx context.Context, p *models.Product) error {
	return r.db(ctx).Save(p).Error
}

func (r *GormRepo) SoftDeleteProduct(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchProductsLike is the SQL fallback when no search index is configured.
func (r *GormRepo) SearchProductsLike(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	where := "active = ? AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(sku) LIKE ?)"

	var total int64
	if err := r.db(ctx).Model(&models.Product{}).Where(where, true, pattern, pattern, pattern).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.db(ctx).Where(where, true, pattern, pattern, pattern).
		Order("name ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
