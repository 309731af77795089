package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rental_manager/internal/metrics"
	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

type ReturnItemInput struct {
	ItemID            uint             `json:"item_id"`
	ReturnedQuantity  int              `json:"returned_quantity"`
	DamageCost        *decimal.Decimal `json:"damage_cost,omitempty"`
	DamageDescription string           `json:"damage_description,omitempty"`
	MissingNote       string           `json:"missing_note,omitempty"`
}

type ProcessReturnInput struct {
	OrderID          uint
	ProcessedBy      uint
	ActualReturnDate time.Time
	Items            []ReturnItemInput
}

// ReturnResult describes what was stored. When Degraded is set the damage and
// missing parts of the report were held back and Status is "flagged".
type ReturnResult struct {
	Order       *models.RentalOrder `json:"order"`
	Event       *models.ReturnEvent `json:"event"`
	Status      string              `json:"status"`
	LateReturn  bool                `json:"late_return"`
	LateDays    int                 `json:"late_days"`
	LateFee     decimal.Decimal     `json:"late_fee"`
	DamageTotal decimal.Decimal     `json:"damage_total"`
	Degraded    bool                `json:"degraded"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type ReturnService interface {
	ProcessReturn(ctx context.Context, input ProcessReturnInput) (*ReturnResult, error)
	ListReturnEvents(ctx context.Context, orderID uint) ([]models.ReturnEvent, error)
	GetReturnEvent(ctx context.Context, reference string) (*models.ReturnEvent, error)
}

type ReturnServiceDeps struct {
	Orders   repository.OrderRepository
	Events   repository.ReturnEventRepository
	Branches repository.BranchRepository
	Staff    StaffService
	Locker   OrderLocker
	Cache    SummaryCache
	Clock    Clock
	IDs      IDGen
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	LockTTL  time.Duration
	// LateFee applies to branches without their own multiplier. Nil charges
	// one regular rental day per late day.
	LateFee *rental.LateFeePolicy
}

type returnService struct {
	orderRepo  repository.OrderRepository
	eventRepo  repository.ReturnEventRepository
	branchRepo repository.BranchRepository
	staff      StaffService
	locker     OrderLocker
	cache      SummaryCache
	clock      Clock
	ids        IDGen
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	lockTTL    time.Duration
	lateFee    rental.LateFeePolicy
}

func NewReturnService(deps ReturnServiceDeps) ReturnService {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.IDs == nil {
		deps.IDs = ulidGen{}
	}
	lateFee := rental.DefaultLateFeePolicy()
	if deps.LateFee != nil {
		lateFee = *deps.LateFee
	}
	return &returnService{
		orderRepo:  deps.Orders,
		eventRepo:  deps.Events,
		branchRepo: deps.Branches,
		staff:      deps.Staff,
		locker:     deps.Locker,
		cache:      deps.Cache,
		clock:      deps.Clock,
		ids:        deps.IDs,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		lockTTL:    deps.LockTTL,
		lateFee:    lateFee,
	}
}

// ProcessReturn reconciles a return report against the order under the order
// lock. If storage refuses the reconciled state, the report is saved again
// without its damage and missing parts and the result is marked degraded.
func (s *returnService) ProcessReturn(ctx context.Context, input ProcessReturnInput) (*ReturnResult, error) {
	start := s.clock.Now()
	defer s.metrics.ObserveReconciliation(time.Now())

	if input.ProcessedBy == 0 {
		return nil, &rental.ValidationError{Field: "processed_by", Message: "is required"}
	}
	if _, err := s.staff.ValidateStaffRole(ctx, input.ProcessedBy); err != nil {
		return nil, err
	}
	if input.ActualReturnDate.IsZero() {
		input.ActualReturnDate = start
	}

	var result *ReturnResult
	err := s.locker.WithOrderLock(ctx, input.OrderID, s.lockTTL, func(ctx context.Context) error {
		res, err := s.reconcile(ctx, input, nil)
		if err == nil {
			result = res
			return nil
		}

		var rejected *rental.PersistenceRejected
		if !errors.As(err, &rejected) {
			return err
		}
		s.metrics.Rejected("process_return")
		s.logger.Warn().
			Err(err).
			Uint("order_id", input.OrderID).
			Str("constraint", rejected.Constraint).
			Msg("storage rejected reconciled return, retrying without damage and missing updates")

		res, err = s.reconcile(ctx, input, rejected)
		if err != nil {
			return fmt.Errorf("degraded return save failed: %w", err)
		}
		result = res
		return nil
	})
	if err != nil {
		switch {
		case rental.IsValidation(err):
			s.metrics.ReturnProcessed("invalid", false)
		default:
			s.metrics.ReturnProcessed("error", false)
		}
		return nil, err
	}

	if result.Degraded {
		s.metrics.ReturnProcessed("degraded", result.LateReturn)
	} else {
		s.metrics.ReturnProcessed("ok", result.LateReturn)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateOrderSummary(ctx, input.OrderID); err != nil {
			s.logger.Warn().Err(err).Uint("order_id", input.OrderID).Msg("failed to invalidate order summary")
		}
	}

	s.logger.Info().
		Uint("order_id", input.OrderID).
		Str("reference", result.Event.Reference).
		Str("status", result.Status).
		Bool("late", result.LateReturn).
		Bool("degraded", result.Degraded).
		Msg("return processed")
	return result, nil
}

// reconcile runs one transaction. A non-nil rejected switches to the degraded
// save.
func (s *returnService) reconcile(ctx context.Context, input ProcessReturnInput, rejected *rental.PersistenceRejected) (*ReturnResult, error) {
	var result *ReturnResult
	err := s.orderRepo.Transaction(ctx, func(tx repository.OrderRepository) error {
		order, err := tx.GetForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Cancelled() {
			return ErrOrderCancelled
		}

		engineOrder, err := toEngineOrder(order)
		if err != nil {
			return err
		}
		reports := make([]rental.ReturnReport, 0, len(input.Items))
		for _, in := range input.Items {
			reports = append(reports, rental.ReturnReport{
				ItemID:            in.ItemID,
				ReturnedQuantity:  in.ReturnedQuantity,
				DamageCost:        in.DamageCost,
				DamageDescription: strings.TrimSpace(in.DamageDescription),
				MissingNote:       strings.TrimSpace(in.MissingNote),
				ActualReturnDate:  input.ActualReturnDate,
			})
		}

		rec, err := rental.ReconcileOrder(engineOrder, reports, s.policyFor(ctx, order.BranchID), s.clock.Now())
		if err != nil {
			return err
		}

		event, err := s.newEvent(input, rec)
		if err != nil {
			return err
		}

		result = &ReturnResult{
			Order:      order,
			Event:      event,
			LateReturn: rec.LateReturn,
			LateDays:   rec.LateDays,
			LateFee:    rec.LateFee,
		}

		if rejected == nil {
			applyEngineItems(order, rec.Items)
			order.Status = string(rec.Status)
			order.DamageTotal = rec.DamageTotal
			result.Status = order.Status
		} else {
			result.Warnings = applyDegraded(order, rec.Items, reports)
			result.Warnings = append(result.Warnings, fmt.Sprintf("storage rejected the reconciled state: %v", rejected))
			order.NeedsReview = true
			result.Status = string(rental.StatusFlagged)
			result.Degraded = true
			event.Degraded = true
			event.ResultStatus = result.Status
			event.Warnings = strings.Join(result.Warnings, "\n")
		}
		result.DamageTotal = order.DamageTotal
		event.DamageTotal = order.DamageTotal

		if rec.LateReturn {
			order.LateReturn = true
			if rec.LateFee.GreaterThan(order.LateFee) {
				order.LateFee = rec.LateFee
			}
		}
		returnedAt := input.ActualReturnDate
		order.ActualReturnDate = &returnedAt
		order.CalculationTimestamp = s.clock.Now()

		return tx.SaveReconciliation(ctx, order, event)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyDegraded stores the returned quantities of every reported item but
// holds back damage and missing details, leaving those items not yet returned.
// The order keeps its previous status and damage total.
func applyDegraded(order *models.RentalOrder, items []rental.Item, reports []rental.ReturnReport) []string {
	reported := make(map[uint]struct{}, len(reports))
	for _, r := range reports {
		reported[r.ItemID] = struct{}{}
	}

	var warnings []string
	for _, item := range items {
		if _, ok := reported[item.ID]; !ok {
			continue
		}
		idx := findItem(order, item.ID)
		if idx < 0 {
			continue
		}
		stored := &order.Items[idx]
		if item.ReturnStatus != rental.Missing && !item.Damaged() {
			applyReturnFields(stored, item)
			continue
		}

		returned := 0
		if item.ReturnedQuantity != nil {
			returned = *item.ReturnedQuantity
		}
		status := rental.NotYetReturned.String()
		stored.ReturnedQuantity = &returned
		stored.ReturnStatus = &status
		warnings = append(warnings, fmt.Sprintf("item %d (%s): damage and missing details were not applied", item.ID, stored.ItemName))
	}
	return warnings
}

func (s *returnService) policyFor(ctx context.Context, branchID uint) rental.LateFeePolicy {
	branch, err := s.branchRepo.GetByID(ctx, branchID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Uint("branch_id", branchID).Msg("failed to load branch late fee policy")
		}
		return s.lateFee
	}
	if branch.LateFeeMultiplier != nil && !branch.LateFeeMultiplier.IsNegative() {
		return rental.LateFeePolicy{Multiplier: *branch.LateFeeMultiplier}
	}
	return s.lateFee
}

func (s *returnService) newEvent(input ProcessReturnInput, rec rental.Reconciliation) (*models.ReturnEvent, error) {
	id, err := s.ids.New()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(input.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode return report: %w", err)
	}
	processedBy := input.ProcessedBy
	return &models.ReturnEvent{
		Reference:        "RET-" + id,
		OrderID:          input.OrderID,
		ProcessedBy:      &processedBy,
		ActualReturnDate: input.ActualReturnDate,
		LateReturn:       rec.LateReturn,
		LateDays:         rec.LateDays,
		LateFee:          rec.LateFee,
		DamageTotal:      rec.DamageTotal,
		ResultStatus:     string(rec.Status),
		ReportData:       string(data),
	}, nil
}

func (s *returnService) ListReturnEvents(ctx context.Context, orderID uint) ([]models.ReturnEvent, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return s.eventRepo.ListByOrder(ctx, orderID)
}

func (s *returnService) GetReturnEvent(ctx context.Context, reference string) (*models.ReturnEvent, error) {
	event, err := s.eventRepo.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, notFound(err, ErrReturnNotFound)
	}
	return event, nil
}
