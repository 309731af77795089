package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
	"rental_manager/internal/services"
)

const (
	orderStatusConstraint = "chk_rental_orders_status"
	itemStatusConstraint  = "chk_rental_items_return_status"
	defaultBranchName     = "Main Branch"
)

// Seed is the default data created on an empty database.
type Seed struct {
	GSTEnabled        bool
	GSTRate           decimal.Decimal
	GSTIncluded       bool
	LateFeeMultiplier decimal.Decimal
	AdminEmail        string
	AdminPin          string
}

// RunMigrations runs all database migrations and creates default data
func RunMigrations(ctx context.Context, db *gorm.DB, seed Seed, log zerolog.Logger) error {
	log.Info().Msg("running database migrations")

	err := db.WithContext(ctx).AutoMigrate(
		&models.Branch{},
		&models.Customer{},
		&models.Staff{},
		&models.RentalOrder{},
		&models.RentalItem{},
		&models.ReturnEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	if err := EnsureStatusConstraints(ctx, db); err != nil {
		return err
	}

	if err := createDefaultData(ctx, db, seed, log); err != nil {
		log.Warn().Err(err).Msg("failed to create default data")
	}

	log.Info().Msg("database migrations completed")
	return nil
}

// EnsureStatusConstraints recreates the status check constraints so storage
// accepts every status the resolver can produce.
func EnsureStatusConstraints(ctx context.Context, db *gorm.DB) error {
	for _, stmt := range statusConstraintStatements() {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to update status constraint: %w", err)
		}
	}
	return nil
}

func statusConstraintStatements() []string {
	orderStatuses := make([]string, 0, len(rental.OrderStatuses()))
	for _, s := range rental.OrderStatuses() {
		orderStatuses = append(orderStatuses, string(s))
	}
	itemStatuses := []string{
		rental.NotYetReturned.String(),
		rental.Returned.String(),
		rental.Missing.String(),
	}

	return []string{
		fmt.Sprintf(`ALTER TABLE rental_orders DROP CONSTRAINT IF EXISTS %s`, orderStatusConstraint),
		fmt.Sprintf(`ALTER TABLE rental_orders ADD CONSTRAINT %s CHECK (status IN (%s))`,
			orderStatusConstraint, quoteList(orderStatuses)),
		fmt.Sprintf(`ALTER TABLE rental_items DROP CONSTRAINT IF EXISTS %s`, itemStatusConstraint),
		fmt.Sprintf(`ALTER TABLE rental_items ADD CONSTRAINT %s CHECK (return_status IS NULL OR return_status IN (%s))`,
			itemStatusConstraint, quoteList(itemStatuses)),
	}
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

// createDefaultData creates the default branch and admin account
func createDefaultData(ctx context.Context, db *gorm.DB, seed Seed, log zerolog.Logger) error {
	branchRepo := repository.NewBranchRepository(db)
	branchService := services.NewBranchService(branchRepo)
	staffService := services.NewStaffService(repository.NewStaffRepository(db))

	branch, err := branchRepo.GetByName(ctx, defaultBranchName)
	if err != nil {
		multiplier := seed.LateFeeMultiplier
		branch = &models.Branch{
			Name:              defaultBranchName,
			GSTEnabled:        seed.GSTEnabled,
			GSTRate:           seed.GSTRate,
			GSTIncluded:       seed.GSTIncluded,
			LateFeeMultiplier: &multiplier,
		}
		if err := branchService.CreateBranch(ctx, branch); err != nil {
			return fmt.Errorf("failed to create default branch: %w", err)
		}
		log.Info().Uint("branch_id", branch.ID).Msg("default branch created")
	}

	if seed.AdminEmail == "" {
		return nil
	}
	if seed.AdminPin == "" {
		log.Warn().Str("email", seed.AdminEmail).Msg("SEED_ADMIN_PIN not set, skipping admin staff seed")
		return nil
	}
	if _, err := staffService.GetStaffByEmail(ctx, seed.AdminEmail); err == nil {
		return nil
	}

	admin := &models.Staff{
		Name:     "Administrator",
		Email:    seed.AdminEmail,
		Role:     string(models.RoleAdmin),
		BranchID: &branch.ID,
	}
	if err := staffService.CreateStaff(ctx, admin, seed.AdminPin); err != nil {
		return fmt.Errorf("failed to create admin staff: %w", err)
	}
	log.Info().Str("email", admin.Email).Msg("admin staff created")
	return nil
}
