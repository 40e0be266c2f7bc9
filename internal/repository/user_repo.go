package repository

import (
	"context"
	"fmt"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("usuário %q já existe: %w", u.Username, apperrors.ErrValidation)
	}
	return err
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	// Login by username OR e-mail (case-insensitive e-mail match)
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND active = true", username, username).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "usuário", uuid.Nil)
	}
	return &u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "usuário", id)
	}
	return &u, nil
}
