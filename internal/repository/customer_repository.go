package repository

import (
	"context"

	"gorm.io/gorm"

	"rental_manager/internal/models"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uint) (*models.Customer, error)
	ListByBranch(ctx context.Context, branchID uint, search string) ([]models.Customer, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return translateError(r.db.WithContext(ctx).Create(customer).Error)
}

func (r *customerRepository) GetByID(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &customer, nil
}

func (r *customerRepository) ListByBranch(ctx context.Context, branchID uint, search string) ([]models.Customer, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if branchID != 0 {
		query = query.Where("branch_id = ?", branchID)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR phone LIKE ?", like, like)
	}

	var customers []models.Customer
	err := query.Find(&customers).Error
	return customers, translateError(err)
}
