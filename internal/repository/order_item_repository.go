package repository

import (
	"context"

	"gorm.io/gorm"

	"rental_manager/internal/models"
)

type OrderItemRepository interface {
	GetByOrderID(ctx context.Context, orderID uint) ([]*models.RentalItem, error)
	GetByReturnStatus(ctx context.Context, orderID uint, status string) ([]*models.RentalItem, error)
}

type orderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uint) ([]*models.RentalItem, error) {
	var items []*models.RentalItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

// GetByReturnStatus treats a NULL status as not_yet_returned.
func (r *orderItemRepository) GetByReturnStatus(ctx context.Context, orderID uint, status string) ([]*models.RentalItem, error) {
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if status == "" || status == "not_yet_returned" {
		query = query.Where("return_status IS NULL OR return_status IN ?", []string{"", "not_yet_returned"})
	} else {
		query = query.Where("return_status = ?", status)
	}

	var items []*models.RentalItem
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, translateError(err)
	}
	return items, nil
}
