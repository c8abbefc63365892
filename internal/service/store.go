package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
)

type StoreService struct {
	Repo *repo.GormRepo
}

// CreateStore opens the caller's store. A seller owns at most one.
func (s *StoreService) CreateStore(ctx context.Context, actor Actor, req transport.StoreRequest) (*models.Store, error) {
	if !actor.IsSeller() {
		return nil, fmt.Errorf("%w: only sellers open stores", ErrForbidden)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, Invalid("name", "required")
	}

	if _, err := s.Repo.GetStoreBySeller(ctx, actor.ID); err == nil {
		return nil, &ConflictError{Field: "sellerId", Message: "seller already has a store"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err, "store")
	}

	st := &models.Store{SellerID: actor.ID, Name: name, Description: req.Description}
	if err := s.Repo.CreateStore(ctx, st); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Field: "sellerId", Message: "seller already has a store"}
		}
		return nil, dbErr(err, "create store")
	}
	return st, nil
}

func (s *StoreService) GetStore(ctx context.Context, id uint) (*models.Store, error) {
	st, err := s.Repo.GetStore(ctx, id)
	return st, dbErr(err, "store")
}

func (s *StoreService) MyStore(ctx context.Context, sellerID uint) (*models.Store, error) {
	st, err := s.Repo.GetStoreBySeller(ctx, sellerID)
	return st, dbErr(err, "store")
}

// UpsertProfile writes the caller's user row. The role always comes from the token.
func (s *StoreService) UpsertProfile(ctx context.Context, actor Actor, req transport.ProfileRequest) (*models.User, error) {
	u := &models.User{
		ID:       actor.ID,
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
		Role:     actor.Role,
	}
	if err := s.Repo.UpsertUser(ctx, u); err != nil {
		return nil, dbErr(err, "profile")
	}
	out, err := s.Repo.GetUser(ctx, actor.ID)
	return out, dbErr(err, "profile")
}

func (s *StoreService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.Repo.GetUser(ctx, userID)
	return u, dbErr(err, "profile")
}
