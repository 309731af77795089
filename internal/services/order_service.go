package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rental_manager/internal/metrics"
	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

var ErrOrderClosed = errors.New("order is already completed")

const openOrdersBatch = 500

type OrderLocker interface {
	WithOrderLock(ctx context.Context, orderID uint, ttl time.Duration, fn func(context.Context) error) error
}

type SummaryCache interface {
	SetOrderSummary(ctx context.Context, orderID uint, summary interface{}, ttl time.Duration) error
	GetOrderSummary(ctx context.Context, orderID uint, dest interface{}) error
	InvalidateOrderSummary(ctx context.Context, orderID uint) error
}

type ItemInput struct {
	ItemName    string
	Description string
	PhotoURL    string
	Quantity    int
	PricePerDay decimal.Decimal
}

type CreateOrderInput struct {
	BranchID        uint
	CustomerID      uint
	CreatedBy       uint
	StartDate       time.Time
	EndDate         time.Time
	RentalDays      int
	SecurityDeposit decimal.Decimal
	GST             *rental.GSTConfig
	Notes           string
	Items           []ItemInput
}

type OrderSummary struct {
	OrderID          uint            `json:"order_id"`
	Status           string          `json:"status"`
	TotalItems       int             `json:"total_items"`
	TotalQuantity    int             `json:"total_quantity"`
	ReturnedQuantity int             `json:"returned_quantity"`
	PendingQuantity  int             `json:"pending_quantity"`
	ReturnedItems    int             `json:"returned_items"`
	MissingItems     int             `json:"missing_items"`
	DamagedItems     int             `json:"damaged_items"`
	CompletionRate   float64         `json:"completion_rate"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	GSTAmount        decimal.Decimal `json:"gst_amount"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	LateFee          decimal.Decimal `json:"late_fee"`
	DamageTotal      decimal.Decimal `json:"damage_total"`
	TotalCharges     decimal.Decimal `json:"total_charges"`
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	NeedsReview      bool            `json:"needs_review"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.RentalOrder, error)
	GetOrderByID(ctx context.Context, id uint) (*models.RentalOrder, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.RentalOrder, error)
	CalculateFinancials(order *models.RentalOrder) error
	CancelOrder(ctx context.Context, orderID, staffID uint, reason string) (*models.RentalOrder, error)
	RefreshStatus(ctx context.Context, orderID uint) (*models.RentalOrder, error)
	RefreshOpenOrders(ctx context.Context) (int, error)

	// Order Items methods
	AddItemToOrder(ctx context.Context, orderID uint, input ItemInput) (*models.RentalOrder, error)
	UpdateOrderItem(ctx context.Context, orderID, itemID uint, input ItemInput) (*models.RentalOrder, error)
	DeleteOrderItem(ctx context.Context, orderID, itemID uint) (*models.RentalOrder, error)
	ListOrderItems(ctx context.Context, orderID uint, returnStatus string) ([]*models.RentalItem, error)
	GetOrderItemsSummary(ctx context.Context, orderID uint) (*OrderSummary, error)
}

type OrderServiceDeps struct {
	Orders     repository.OrderRepository
	Items      repository.OrderItemRepository
	Branches   repository.BranchRepository
	Customers  repository.CustomerRepository
	Staff      StaffService
	Locker     OrderLocker
	Cache      SummaryCache
	Clock      Clock
	IDs        IDGen
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	LockTTL    time.Duration
	SummaryTTL time.Duration
}

type orderService struct {
	orderRepo     repository.OrderRepository
	orderItemRepo repository.OrderItemRepository
	branchRepo    repository.BranchRepository
	customerRepo  repository.CustomerRepository
	staff         StaffService
	locker        OrderLocker
	cache         SummaryCache
	clock         Clock
	ids           IDGen
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	lockTTL       time.Duration
	summaryTTL    time.Duration
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.IDs == nil {
		deps.IDs = ulidGen{}
	}
	return &orderService{
		orderRepo:     deps.Orders,
		orderItemRepo: deps.Items,
		branchRepo:    deps.Branches,
		customerRepo:  deps.Customers,
		staff:         deps.Staff,
		locker:        deps.Locker,
		cache:         deps.Cache,
		clock:         deps.Clock,
		ids:           deps.IDs,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		lockTTL:       deps.LockTTL,
		summaryTTL:    deps.SummaryTTL,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.RentalOrder, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	branch, err := s.branchRepo.GetByID(ctx, input.BranchID)
	if err != nil {
		return nil, notFound(err, ErrBranchNotFound)
	}
	if _, err := s.customerRepo.GetByID(ctx, input.CustomerID); err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	if input.CreatedBy != 0 {
		if _, err := s.staff.ValidateStaffRole(ctx, input.CreatedBy); err != nil {
			return nil, err
		}
	}

	gst := rental.GSTConfig{Enabled: branch.GSTEnabled, Rate: branch.GSTRate, Included: branch.GSTIncluded}
	if input.GST != nil {
		gst = *input.GST
	}

	number, err := s.ids.New()
	if err != nil {
		return nil, err
	}

	order := &models.RentalOrder{
		OrderNumber:     "RO-" + number,
		BranchID:        branch.ID,
		CustomerID:      input.CustomerID,
		CreatedBy:       input.CreatedBy,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		RentalDays:      input.RentalDays,
		GSTEnabled:      gst.Enabled,
		GSTRate:         gst.Rate,
		GSTIncluded:     gst.Included,
		SecurityDeposit: input.SecurityDeposit,
		Notes:           strings.TrimSpace(input.Notes),
	}
	for _, in := range input.Items {
		item, err := newItem(in)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	// Calculate financials before creating
	if err := s.CalculateFinancials(order); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("grand_total", order.GrandTotal.String()).
		Str("status", order.Status).
		Msg("rental order created")
	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, id uint) (*models.RentalOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.RentalOrder, error) {
	if filter.Status != "" {
		if _, err := rental.ParseOrderStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	return s.orderRepo.List(ctx, filter)
}

// CalculateFinancials recomputes every derived field of the order: line
// totals, subtotal, GST, grand total, rental days and status.
func (s *orderService) CalculateFinancials(order *models.RentalOrder) error {
	engineOrder, err := toEngineOrder(order)
	if err != nil {
		return err
	}
	days, err := engineOrder.Days()
	if err != nil {
		return err
	}
	totals, err := engineOrder.Price()
	if err != nil {
		return err
	}

	for i := range order.Items {
		line, err := rental.ComputeLineTotal(order.Items[i].Quantity, order.Items[i].PricePerDay, days)
		if err != nil {
			return err
		}
		order.Items[i].LineTotal = line
	}

	now := s.clock.Now()
	order.RentalDays = days
	order.Subtotal = totals.Subtotal
	order.GSTAmount = totals.GSTAmount
	order.GrandTotal = totals.GrandTotal
	order.Status = string(rental.ResolveOrderStatus(engineOrder, now))
	order.CalculationTimestamp = now
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, staffID uint, reason string) (*models.RentalOrder, error) {
	if _, err := s.staff.ValidateStaffRole(ctx, staffID, models.RoleAdmin, models.RoleManager); err != nil {
		return nil, err
	}

	return s.mutate(ctx, orderID, func(ctx context.Context, tx repository.OrderRepository, order *models.RentalOrder) error {
		if order.Cancelled() {
			return nil
		}
		if rental.OrderStatus(order.Status).Terminal() {
			return ErrOrderClosed
		}

		now := s.clock.Now()
		order.CancelledAt = &now
		if reason = strings.TrimSpace(reason); reason != "" {
			order.Notes = strings.TrimSpace(order.Notes + "\nCancelled: " + reason)
		}
		if err := s.CalculateFinancials(order); err != nil {
			return err
		}
		if err := tx.Save(ctx, order); err != nil {
			return err
		}
		s.logger.Info().Uint("order_id", order.ID).Uint("staff_id", staffID).Msg("rental order cancelled")
		return nil
	})
}

// RefreshStatus re-resolves the status against the current time and stores it
// when it changed.
func (s *orderService) RefreshStatus(ctx context.Context, orderID uint) (*models.RentalOrder, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, tx repository.OrderRepository, order *models.RentalOrder) error {
		engineOrder, err := toEngineOrder(order)
		if err != nil {
			return err
		}
		next := string(rental.ResolveOrderStatus(engineOrder, s.clock.Now()))
		if next == order.Status {
			return nil
		}
		if err := tx.UpdateStatus(ctx, order.ID, next); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
}

// RefreshOpenOrders moves scheduled and active orders along the timeline and
// returns how many changed.
func (s *orderService) RefreshOpenOrders(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.ListOpen(ctx, openOrdersBatch)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, open := range orders {
		updated, err := s.RefreshStatus(ctx, open.ID)
		if err != nil {
			if rental.IsPersistenceRejected(err) {
				s.metrics.Rejected("refresh_status")
			}
			s.logger.Warn().Err(err).Uint("order_id", open.ID).Msg("failed to refresh order status")
			continue
		}
		if updated.Status != open.Status {
			changed++
			s.metrics.Refreshed(updated.Status)
		}
	}
	return changed, nil
}

// Order Items methods implementation

func (s *orderService) AddItemToOrder(ctx context.Context, orderID uint, input ItemInput) (*models.RentalOrder, error) {
	item, err := newItem(input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(ctx context.Context, tx repository.OrderRepository, order *models.RentalOrder) error {
		if err := checkEditable(order); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
		if err := s.CalculateFinancials(order); err != nil {
			return err
		}
		return tx.Save(ctx, order)
	})
}

func (s *orderService) UpdateOrderItem(ctx context.Context, orderID, itemID uint, input ItemInput) (*models.RentalOrder, error) {
	updated, err := newItem(input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(ctx context.Context, tx repository.OrderRepository, order *models.RentalOrder) error {
		if err := checkEditable(order); err != nil {
			return err
		}
		idx := findItem(order, itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &order.Items[idx]
		item.ItemName = updated.ItemName
		item.Description = updated.Description
		item.PhotoURL = updated.PhotoURL
		item.Quantity = updated.Quantity
		item.PricePerDay = updated.PricePerDay
		if err := s.CalculateFinancials(order); err != nil {
			return err
		}
		return tx.Save(ctx, order)
	})
}

func (s *orderService) DeleteOrderItem(ctx context.Context, orderID, itemID uint) (*models.RentalOrder, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, tx repository.OrderRepository, order *models.RentalOrder) error {
		if err := checkEditable(order); err != nil {
			return err
		}
		idx := findItem(order, itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if len(order.Items) == 1 {
			return ErrEmptyOrder
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return notFound(err, ErrItemNotFound)
		}
		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
		if err := s.CalculateFinancials(order); err != nil {
			return err
		}
		return tx.Save(ctx, order)
	})
}

// ListOrderItems returns the order's items, optionally narrowed to one
// return status.
func (s *orderService) ListOrderItems(ctx context.Context, orderID uint, returnStatus string) ([]*models.RentalItem, error) {
	if _, err := s.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	if returnStatus == "" {
		return s.orderItemRepo.GetByOrderID(ctx, orderID)
	}
	status, err := rental.ParseReturnStatus(returnStatus)
	if err != nil {
		return nil, err
	}
	return s.orderItemRepo.GetByReturnStatus(ctx, orderID, status.String())
}

func (s *orderService) GetOrderItemsSummary(ctx context.Context, orderID uint) (*OrderSummary, error) {
	var cached OrderSummary
	if s.cache != nil {
		if err := s.cache.GetOrderSummary(ctx, orderID, &cached); err == nil {
			return &cached, nil
		}
	}

	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	orderItems, err := s.orderItemRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	summary := &OrderSummary{
		OrderID:         order.ID,
		Status:          order.Status,
		TotalItems:      len(orderItems),
		Subtotal:        order.Subtotal,
		GSTAmount:       order.GSTAmount,
		GrandTotal:      order.GrandTotal,
		LateFee:         order.LateFee,
		DamageTotal:     order.DamageTotal,
		SecurityDeposit: order.SecurityDeposit,
		NeedsReview:     order.NeedsReview,
	}
	for _, stored := range orderItems {
		item, err := toEngineItem(stored)
		if err != nil {
			return nil, err
		}
		summary.TotalQuantity += item.Quantity
		summary.ReturnedQuantity += item.EffectiveReturned()
		summary.PendingQuantity += item.PendingQuantity()
		switch item.ReturnStatus {
		case rental.Returned:
			summary.ReturnedItems++
		case rental.Missing:
			summary.MissingItems++
		case rental.NotYetReturned:
		}
		if item.Damaged() {
			summary.DamagedItems++
		}
	}
	if summary.TotalQuantity > 0 {
		summary.CompletionRate = float64(summary.ReturnedQuantity) / float64(summary.TotalQuantity) * 100
	}
	summary.TotalCharges = summary.GrandTotal.Add(summary.LateFee).Add(summary.DamageTotal)

	if s.cache != nil {
		if err := s.cache.SetOrderSummary(ctx, orderID, summary, s.summaryTTL); err != nil {
			s.logger.Debug().Err(err).Uint("order_id", orderID).Msg("failed to cache order summary")
		}
	}
	return summary, nil
}

// mutate runs fn on a row-locked copy of the order, holding the order lock
// for the whole transaction.
func (s *orderService) mutate(ctx context.Context, orderID uint, fn func(context.Context, repository.OrderRepository, *models.RentalOrder) error) (*models.RentalOrder, error) {
	var result *models.RentalOrder
	err := s.locker.WithOrderLock(ctx, orderID, s.lockTTL, func(ctx context.Context) error {
		return s.orderRepo.Transaction(ctx, func(tx repository.OrderRepository) error {
			order, err := tx.GetForUpdate(ctx, orderID)
			if err != nil {
				return notFound(err, ErrOrderNotFound)
			}
			if err := fn(ctx, tx, order); err != nil {
				return err
			}
			result = order
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, orderID)
	return result, nil
}

func (s *orderService) invalidateSummary(ctx context.Context, orderID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOrderSummary(ctx, orderID); err != nil {
		s.logger.Warn().Err(err).Uint("order_id", orderID).Msg("failed to invalidate order summary")
	}
}

func newItem(input ItemInput) (models.RentalItem, error) {
	name := strings.TrimSpace(input.ItemName)
	if name == "" {
		return models.RentalItem{}, &rental.ValidationError{Field: "item_name", Message: "is required"}
	}
	if input.Quantity < 1 {
		return models.RentalItem{}, &rental.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if input.PricePerDay.IsNegative() {
		return models.RentalItem{}, &rental.ValidationError{Field: "price_per_day", Message: "must not be negative"}
	}
	return models.RentalItem{
		ItemName:    name,
		Description: strings.TrimSpace(input.Description),
		PhotoURL:    strings.TrimSpace(input.PhotoURL),
		Quantity:    input.Quantity,
		PricePerDay: input.PricePerDay,
	}, nil
}

func checkEditable(order *models.RentalOrder) error {
	if order.Cancelled() {
		return ErrOrderCancelled
	}
	if order.HasReturnProgress() {
		return ErrOrderLocked
	}
	return nil
}

func findItem(order *models.RentalOrder, itemID uint) int {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
