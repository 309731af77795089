package services

import (
	"context"
	"strings"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id uint) (*models.Customer, error)
	ListCustomers(ctx context.Context, branchID uint, search string) ([]models.Customer, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
	branchRepo   repository.BranchRepository
}

func NewCustomerService(customerRepo repository.CustomerRepository, branchRepo repository.BranchRepository) CustomerService {
	return &customerService{customerRepo: customerRepo, branchRepo: branchRepo}
}

func (s *customerService) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	if customer.Name == "" {
		return &rental.ValidationError{Field: "name", Message: "is required"}
	}
	if customer.BranchID == 0 {
		return &rental.ValidationError{Field: "branch_id", Message: "is required"}
	}
	if _, err := s.branchRepo.GetByID(ctx, customer.BranchID); err != nil {
		return notFound(err, ErrBranchNotFound)
	}
	return notFound(s.customerRepo.Create(ctx, customer), ErrCustomerNotFound)
}

func (s *customerService) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, branchID uint, search string) ([]models.Customer, error) {
	return s.customerRepo.ListByBranch(ctx, branchID, strings.TrimSpace(search))
}
