package repository

import (
	"context"

	"gorm.io/gorm"

	"rental_manager/internal/models"
)

type StaffRepository interface {
	Create(ctx context.Context, staff *models.Staff) error
	GetByID(ctx context.Context, id uint) (*models.Staff, error)
	GetByEmail(ctx context.Context, email string) (*models.Staff, error)
}

type staffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) Create(ctx context.Context, staff *models.Staff) error {
	return translateError(r.db.WithContext(ctx).Create(staff).Error)
}

func (r *staffRepository) GetByID(ctx context.Context, id uint) (*models.Staff, error) {
	var staff models.Staff
	err := r.db.WithContext(ctx).First(&staff, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &staff, nil
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var staff models.Staff
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&staff).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &staff, nil
}
