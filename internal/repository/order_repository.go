package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
)

type OrderFilter struct {
	BranchID   uint
	CustomerID uint
	Status     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.RentalOrder) error
	GetByID(ctx context.Context, id uint) (*models.RentalOrder, error)
	GetForUpdate(ctx context.Context, id uint) (*models.RentalOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]models.RentalOrder, error)
	ListOpen(ctx context.Context, limit int) ([]models.RentalOrder, error)
	Save(ctx context.Context, order *models.RentalOrder) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	DeleteItem(ctx context.Context, orderID, itemID uint) error
	SaveReconciliation(ctx context.Context, order *models.RentalOrder, event *models.ReturnEvent) error
	Transaction(ctx context.Context, fn func(repo OrderRepository) error) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("rental_items.id ASC")
	})
}

func (r *orderRepository) Create(ctx context.Context, order *models.RentalOrder) error {
	return translateError(r.db.WithContext(ctx).Create(order).Error)
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*models.RentalOrder, error) {
	var order models.RentalOrder
	err := withItems(r.db.WithContext(ctx)).First(&order, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// GetForUpdate row-locks the order until the surrounding transaction ends.
func (r *orderRepository) GetForUpdate(ctx context.Context, id uint) (*models.RentalOrder, error) {
	var order models.RentalOrder
	err := withItems(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]models.RentalOrder, error) {
	query := withItems(r.db.WithContext(ctx)).Order("start_date DESC")
	if filter.BranchID != 0 {
		query = query.Where("branch_id = ?", filter.BranchID)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("start_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_date <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []models.RentalOrder
	err := query.Find(&orders).Error
	return orders, translateError(err)
}

// ListOpen returns orders whose status may still change with time.
func (r *orderRepository) ListOpen(ctx context.Context, limit int) ([]models.RentalOrder, error) {
	query := withItems(r.db.WithContext(ctx)).
		Where("status IN ?", []string{
			string(rental.StatusScheduled),
			string(rental.StatusActive),
		}).
		Where("cancelled_at IS NULL").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var orders []models.RentalOrder
	err := query.Find(&orders).Error
	return orders, translateError(err)
}

// Save writes the order row and every item it carries. Items without an ID
// are inserted.
func (r *orderRepository) Save(ctx context.Context, order *models.RentalOrder) error {
	db := r.db.WithContext(ctx)
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := db.Save(&order.Items[i]).Error; err != nil {
			return translateError(err)
		}
	}
	return translateError(db.Omit(clause.Associations).Save(order).Error)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	err := r.db.WithContext(ctx).Model(&models.RentalOrder{}).Where("id = ?", id).Update("status", status).Error
	return translateError(err)
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, itemID uint) error {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.RentalItem{}, itemID)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) SaveReconciliation(ctx context.Context, order *models.RentalOrder, event *models.ReturnEvent) error {
	if err := r.Save(ctx, order); err != nil {
		return err
	}
	event.OrderID = order.ID
	return translateError(r.db.WithContext(ctx).Create(event).Error)
}

func (r *orderRepository) Transaction(ctx context.Context, fn func(repo OrderRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&orderRepository{db: tx})
	})
}
