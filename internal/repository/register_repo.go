package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterRepository persists cash registers. Every state transition runs in
// a single transaction that also re-checks its precondition, so the
// one-open-register-per-store invariant holds under concurrent callers.
type RegisterRepository interface {
	// Open inserts r as the store's open register, or fails with ErrConflict.
	Open(ctx context.Context, r *model.Register) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error)
	// FindOpenByStore returns (nil, nil) when the store has no open register.
	FindOpenByStore(ctx context.Context, storeID string) (*model.Register, error)
	AppendTransaction(ctx context.Context, registerID uuid.UUID, t *model.RegisterTransaction) error
	// Close locks the register, hands it to build with its transactions
	// loaded, and stores the returned snapshot in the same transaction.
	Close(ctx context.Context, id uuid.UUID, build ClosingBuilder) error
	Reopen(ctx context.Context, id uuid.UUID) error
	ListClosed(ctx context.Context, storeID string, page, limit int) ([]model.Register, int64, error)
}

// ClosingBuilder computes the closing snapshot of a locked, still open register.
type ClosingBuilder func(locked *model.Register) (closedAt time.Time, cv *model.ClosingValues, err error)

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository { return &registerRepo{db: db} }

// lockStore serialises open/reopen for one store until the transaction ends.
func lockStore(tx *gorm.DB, storeID string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", storeID).Error
}

func (r *registerRepo) Open(ctx context.Context, reg *model.Register) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockStore(tx, reg.StoreID); err != nil {
			return err
		}
		var open int64
		if err := tx.Model(&model.Register{}).
			Where("store_id = ? AND status = ?", reg.StoreID, model.RegisterOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperrors.ErrConflict
		}
		return tx.Omit(clause.Associations).Create(reg).Error
	})
	if isUniqueViolation(err) {
		return apperrors.ErrConflict
	}
	return err
}

func (r *registerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error) {
	var reg model.Register
	err := r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "caixa", id)
	}
	return &reg, nil
}

func (r *registerRepo) FindOpenByStore(ctx context.Context, storeID string) (*model.Register, error) {
	var reg model.Register
	err := r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("store_id = ? AND status = ?", storeID, model.RegisterOpen).
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// lockRegister loads the register row FOR UPDATE.
func lockRegister(tx *gorm.DB, id uuid.UUID) (*model.Register, error) {
	var reg model.Register
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "caixa", id)
	}
	return &reg, nil
}

func (r *registerRepo) AppendTransaction(ctx context.Context, registerID uuid.UUID, t *model.RegisterTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegister(tx, registerID)
		if err != nil {
			return err
		}
		if !reg.IsOpen() {
			return fmt.Errorf("caixa %s está fechado: %w", registerID, apperrors.ErrInvalidState)
		}

		var last int
		if err := tx.Model(&model.RegisterTransaction{}).
			Where("register_id = ?", registerID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		t.RegisterID = registerID
		t.Position = last + 1
		return tx.Create(t).Error
	})
}

func (r *registerRepo) Close(ctx context.Context, id uuid.UUID, build ClosingBuilder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegister(tx, id)
		if err != nil {
			return err
		}
		if !reg.IsOpen() {
			return fmt.Errorf("caixa %s já está fechado: %w", id, apperrors.ErrInvalidState)
		}
		// Appends wait on the row lock, so this list is final
		if err := tx.Where("register_id = ?", id).Order("position ASC").
			Find(&reg.Transactions).Error; err != nil {
			return err
		}
		closedAt, cv, err := build(reg)
		if err != nil {
			return err
		}
		if err := reg.SetClosing(cv); err != nil {
			return err
		}
		return tx.Model(reg).Updates(map[string]any{
			"status":         model.RegisterClosed,
			"closed_at":      closedAt,
			"closing_values": reg.ClosingValues,
		}).Error
	})
}

func (r *registerRepo) Reopen(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegister(tx, id)
		if err != nil {
			return err
		}
		if reg.IsOpen() {
			return fmt.Errorf("caixa %s já está aberto: %w", id, apperrors.ErrInvalidState)
		}
		if err := lockStore(tx, reg.StoreID); err != nil {
			return err
		}
		var open int64
		if err := tx.Model(&model.Register{}).
			Where("store_id = ? AND status = ? AND id <> ?", reg.StoreID, model.RegisterOpen, id).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperrors.ErrConflict
		}
		return tx.Model(reg).Updates(map[string]any{
			"status":         model.RegisterOpen,
			"closed_at":      gorm.Expr("NULL"),
			"closing_values": gorm.Expr("NULL"),
		}).Error
	})
	if isUniqueViolation(err) {
		return apperrors.ErrConflict
	}
	return err
}

func (r *registerRepo) ListClosed(ctx context.Context, storeID string, page, limit int) ([]model.Register, int64, error) {
	var regs []model.Register
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Register{}).
		Where("store_id = ? AND status = ?", storeID, model.RegisterClosed)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("closed_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&regs).Error
	return regs, total, err
}
