package repository

import (
	"context"

	"gorm.io/gorm"

	"rental_manager/internal/models"
)

type ReturnEventRepository interface {
	GetByReference(ctx context.Context, reference string) (*models.ReturnEvent, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.ReturnEvent, error)
}

type returnEventRepository struct {
	db *gorm.DB
}

func NewReturnEventRepository(db *gorm.DB) ReturnEventRepository {
	return &returnEventRepository{db: db}
}

func (r *returnEventRepository) GetByReference(ctx context.Context, reference string) (*models.ReturnEvent, error) {
	var event models.ReturnEvent
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&event).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &event, nil
}

func (r *returnEventRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.ReturnEvent, error) {
	var events []models.ReturnEvent
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&events).Error
	return events, translateError(err)
}
