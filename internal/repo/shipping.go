package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) ListZones(ctx context.Context, activeOnly bool) ([]models.ShippingZone, error) {
	q := r.db(ctx).Preload("Carriers", func(db *gorm.DB) *gorm.DB {
		if activeOnly {
			db = db.Where("active = ?", true)
		}
		return db.Order("price ASC, id ASC")
	})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.ShippingZone
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetZone(ctx context.Context, id uint) (*models.ShippingZone, error) {
	var z models.ShippingZone
	if err := r.db(ctx).Preload("Carriers").First(&z, id).Error; err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *GormRepo) CreateZone(ctx context.Context, z *models.ShippingZone) error {
	return r.db(ctx).Create(z).Error
}

func (r *GormRepo) SaveZone(ctx context.Context, z *models.ShippingZone) error {
	return r.db(ctx).Omit("Carriers").Save(z).Error
}

func (r *GormRepo) DeleteZone(ctx context.Context, id uint) error {
	return r.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone_id = ?", id).Delete(&models.Carrier{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ShippingZone{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRepo) GetCarrier(ctx context.Context, id uint) (*models.Carrier, error) {
	var c models.Carrier
	if err := r.db(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) CreateCarrier(ctx context.Context, c *models.Carrier) error {
	return r.db(ctx).Create(c).Error
}

func (r *GormRepo) SaveCarrier(ctx context.Context, c *models.Carrier) error {
	return r.db(ctx).Save(c).Error
}

func (r *GormRepo) DeleteCarrier(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Carrier{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
