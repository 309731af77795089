package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

// GSTSettings is the branch-level tax configuration. Changing it never
// touches existing orders, which keep the snapshot taken at creation.
type GSTSettings struct {
	Enabled           bool
	Rate              decimal.Decimal
	Included          bool
	LateFeeMultiplier *decimal.Decimal
}

type BranchService interface {
	CreateBranch(ctx context.Context, branch *models.Branch) error
	GetBranch(ctx context.Context, id uint) (*models.Branch, error)
	ListBranches(ctx context.Context) ([]models.Branch, error)
	UpdateGSTSettings(ctx context.Context, id uint, settings GSTSettings) (*models.Branch, error)
}

type branchService struct {
	branchRepo repository.BranchRepository
}

func NewBranchService(branchRepo repository.BranchRepository) BranchService {
	return &branchService{branchRepo: branchRepo}
}

func (s *branchService) CreateBranch(ctx context.Context, branch *models.Branch) error {
	branch.Name = strings.TrimSpace(branch.Name)
	if branch.Name == "" {
		return &rental.ValidationError{Field: "name", Message: "is required"}
	}
	settings := GSTSettings{
		Enabled:           branch.GSTEnabled,
		Rate:              branch.GSTRate,
		Included:          branch.GSTIncluded,
		LateFeeMultiplier: branch.LateFeeMultiplier,
	}
	if err := validateGSTSettings(settings); err != nil {
		return err
	}
	branch.IsActive = true
	return notFound(s.branchRepo.Create(ctx, branch), ErrBranchNotFound)
}

func (s *branchService) GetBranch(ctx context.Context, id uint) (*models.Branch, error) {
	branch, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrBranchNotFound)
	}
	return branch, nil
}

func (s *branchService) ListBranches(ctx context.Context) ([]models.Branch, error) {
	return s.branchRepo.List(ctx)
}

func (s *branchService) UpdateGSTSettings(ctx context.Context, id uint, settings GSTSettings) (*models.Branch, error) {
	if err := validateGSTSettings(settings); err != nil {
		return nil, err
	}
	branch, err := s.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}

	branch.GSTEnabled = settings.Enabled
	branch.GSTRate = settings.Rate
	branch.GSTIncluded = settings.Included
	branch.LateFeeMultiplier = settings.LateFeeMultiplier
	if err := s.branchRepo.Update(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

func validateGSTSettings(settings GSTSettings) error {
	// pricing an empty order runs the same rate checks the calculator applies
	gst := rental.GSTConfig{Enabled: settings.Enabled, Rate: settings.Rate, Included: settings.Included}
	if _, err := rental.ComputeOrderTotals(nil, 1, gst); err != nil {
		return err
	}
	if settings.LateFeeMultiplier != nil && settings.LateFeeMultiplier.IsNegative() {
		return &rental.ValidationError{Field: "late_fee_multiplier", Message: "must not be negative"}
	}
	return nil
}
