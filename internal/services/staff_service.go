package services

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

const minPinLength = 4

type StaffService interface {
	CreateStaff(ctx context.Context, staff *models.Staff, pin string) error
	GetStaffByID(ctx context.Context, id uint) (*models.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error)
	ValidateStaffRole(ctx context.Context, staffID uint, allowed ...models.StaffRole) (*models.Staff, error)
}

type staffService struct {
	staffRepo repository.StaffRepository
}

func NewStaffService(staffRepo repository.StaffRepository) StaffService {
	return &staffService{staffRepo: staffRepo}
}

func (s *staffService) CreateStaff(ctx context.Context, staff *models.Staff, pin string) error {
	staff.Name = strings.TrimSpace(staff.Name)
	staff.Email = strings.ToLower(strings.TrimSpace(staff.Email))
	if staff.Name == "" {
		return &rental.ValidationError{Field: "name", Message: "is required"}
	}
	if staff.Email == "" {
		return &rental.ValidationError{Field: "email", Message: "is required"}
	}
	if staff.Role == "" {
		staff.Role = string(models.RoleStaff)
	}
	if !knownRole(models.StaffRole(staff.Role)) {
		return &rental.ValidationError{Field: "role", Message: "must be admin, manager or staff"}
	}
	if len(pin) < minPinLength {
		return &rental.ValidationError{Field: "pin", Message: "must be at least 4 characters"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	staff.PinHash = string(hashed)
	staff.IsActive = true

	return notFound(s.staffRepo.Create(ctx, staff), ErrStaffNotFound)
}

func (s *staffService) GetStaffByID(ctx context.Context, id uint) (*models.Staff, error) {
	staff, err := s.staffRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrStaffNotFound)
	}
	return staff, nil
}

func (s *staffService) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	staff, err := s.staffRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFound(err, ErrStaffNotFound)
	}
	return staff, nil
}

// ValidateStaffRole loads an active staff member and checks the role. With no
// roles given any active member passes.
func (s *staffService) ValidateStaffRole(ctx context.Context, staffID uint, allowed ...models.StaffRole) (*models.Staff, error) {
	staff, err := s.GetStaffByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !staff.IsActive {
		return nil, ErrInactiveStaff
	}
	if len(allowed) == 0 {
		return staff, nil
	}
	for _, role := range allowed {
		if staff.Role == string(role) {
			return staff, nil
		}
	}
	return nil, ErrInsufficientRole
}

func knownRole(role models.StaffRole) bool {
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleStaff:
		return true
	}
	return false
}
