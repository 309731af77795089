package repository

import (
	"context"

	"gorm.io/gorm"

	"rental_manager/internal/models"
)

type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id uint) (*models.Branch, error)
	GetByName(ctx context.Context, name string) (*models.Branch, error)
	List(ctx context.Context) ([]models.Branch, error)
	Update(ctx context.Context, branch *models.Branch) error
}

type branchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *models.Branch) error {
	return translateError(r.db.WithContext(ctx).Create(branch).Error)
}

func (r *branchRepository) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).First(&branch, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &branch, nil
}

func (r *branchRepository) GetByName(ctx context.Context, name string) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&branch).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &branch, nil
}

func (r *branchRepository) List(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&branches).Error
	return branches, translateError(err)
}

func (r *branchRepository) Update(ctx context.Context, branch *models.Branch) error {
	return translateError(r.db.WithContext(ctx).Save(branch).Error)
}
