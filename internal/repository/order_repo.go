package repository

import (
	"context"

	"caixapdv/internal/dto"
	"caixapdv/internal/ledger"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	// Create assigns the next order number and stores the order with its payments.
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// ListByStore returns every order of the store with payments, unfiltered.
	ListByStore(ctx context.Context, storeID string) ([]model.Order, error)
	List(ctx context.Context, storeID string, filter dto.OrderFilter) ([]model.Order, int64, error)
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func paymentsInOrder(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// PostgreSQL sequence keeps numbers unique across concurrent writers
		if err := tx.Raw("SELECT nextval('orders_number_seq')").Scan(&o.Number).Error; err != nil {
			return err
		}
		for i := range o.Payments {
			o.Payments[i].Position = i + 1
		}
		return tx.Create(o).Error
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Preload("Payments", paymentsInOrder).First(&o, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "pedido", id)
	}
	return &o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "pedido", id)
	}
	return nil
}

func (r *orderRepo) ListByStore(ctx context.Context, storeID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Payments", paymentsInOrder).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) List(ctx context.Context, storeID string, filter dto.OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("store_id = ?", storeID)
	if filter.Status != "" {
		q = q.Where("LOWER(status) LIKE LOWER(?)", "%"+filter.Status+"%")
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Finalized {
		words := ledger.ClosedServiceOrderWords
		cond := r.db.Where("LOWER(status) LIKE ?", "%"+words[0]+"%")
		for _, w := range words[1:] {
			cond = cond.Or("LOWER(status) LIKE ?", "%"+w+"%")
		}
		q = q.Where(cond)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Payments", paymentsInOrder).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}
