package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) UpsertUser(ctx context.Context, u *models.User) error {
	return r.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "phone", "role", "updated_at"}),
	}).Create(u).Error
}

func (r *GormRepo) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
