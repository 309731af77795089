package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_manager/internal/rental"
)

func returnAll(f *fixture, orderID uint, at time.Time) (*ReturnResult, error) {
	order := f.store.get(orderID)
	items := make([]ReturnItemInput, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ReturnItemInput{ItemID: item.ID, ReturnedQuantity: item.Quantity})
	}
	return f.returns.ProcessReturn(context.Background(), ProcessReturnInput{
		OrderID:          orderID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: at,
		Items:            items,
	})
}

func TestProcessReturnOnTime(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)

	res, err := returnAll(f, order.ID, testEnd)
	require.NoError(t, err)

	assert.Equal(t, string(rental.StatusCompleted), res.Status)
	assert.False(t, res.LateReturn)
	assert.False(t, res.Degraded)
	assert.True(t, res.LateFee.IsZero())
	assert.Equal(t, "RET-0002", res.Event.Reference)

	stored := f.store.get(order.ID)
	assert.Equal(t, string(rental.StatusCompleted), stored.Status)
	require.NotNil(t, stored.ActualReturnDate)
	assert.True(t, stored.ActualReturnDate.Equal(testEnd))
	for _, item := range stored.Items {
		require.NotNil(t, item.ReturnStatus)
		assert.Equal(t, "returned", *item.ReturnStatus)
		assert.Equal(t, item.Quantity, *item.ReturnedQuantity)
	}
	assert.Contains(t, f.cache.invalidated, order.ID)
}

func TestProcessReturnLate(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)

	res, err := returnAll(f, order.ID, testEnd.Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, res.LateReturn)
	assert.Equal(t, 1, res.LateDays)
	// 5×100 + 2×250 per day
	assert.True(t, res.LateFee.Equal(dec("1000")), res.LateFee.String())

	stored := f.store.get(order.ID)
	assert.True(t, stored.LateReturn)
	assert.True(t, stored.LateFee.Equal(dec("1000")))
}

func TestProcessReturnBranchMultiplier(t *testing.T) {
	f := newFixture()
	f.branches.branches[f.branch.ID].LateFeeMultiplier = decPtr("1.5")
	order, err := f.createOrder()
	require.NoError(t, err)

	res, err := returnAll(f, order.ID, testEnd.Add(25*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, res.LateDays)
	assert.True(t, res.LateFee.Equal(dec("3000")), res.LateFee.String())
}

func TestProcessReturnZeroDefaultMultiplierWaivesLateFee(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)

	waived := rental.LateFeePolicy{Multiplier: decimal.Zero}
	f.returns = NewReturnService(ReturnServiceDeps{
		Orders:   &memOrderRepo{store: f.store},
		Events:   &memEventRepo{store: f.store},
		Branches: f.branches,
		Staff:    f.staff,
		Locker:   f.locker,
		Cache:    f.cache,
		Clock:    f.clock,
		IDs:      &seqIDs{n: 100},
		Logger:   zerolog.Nop(),
		LockTTL:  time.Second,
		LateFee:  &waived,
	})

	res, err := returnAll(f, order.ID, testEnd.Add(25*time.Hour))
	require.NoError(t, err)

	assert.True(t, res.LateReturn)
	assert.Equal(t, 2, res.LateDays)
	assert.True(t, res.LateFee.IsZero(), res.LateFee.String())
	assert.True(t, f.store.get(order.ID).LateFee.IsZero())
}

func TestProcessReturnPartialThenComplete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.createOrder()
	require.NoError(t, err)
	chair := order.Items[0].ID

	first := ProcessReturnInput{
		OrderID:          order.ID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: testEnd,
		Items:            []ReturnItemInput{{ItemID: chair, ReturnedQuantity: 3}},
	}
	res, err := f.returns.ProcessReturn(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusPartiallyReturned), res.Status)

	// the same report again changes nothing
	res, err = f.returns.ProcessReturn(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusPartiallyReturned), res.Status)
	stored := f.store.get(order.ID)
	assert.Equal(t, 3, *stored.Items[0].ReturnedQuantity)
	assert.Equal(t, "not_yet_returned", *stored.Items[0].ReturnStatus)

	res, err = returnAll(f, order.ID, testEnd)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusCompleted), res.Status)

	events, err := f.returns.ListReturnEvents(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	var reported []ReturnItemInput
	require.NoError(t, json.Unmarshal([]byte(events[0].ReportData), &reported))
	assert.Equal(t, first.Items, reported)
}

func TestProcessReturnWithIssues(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)

	res, err := f.returns.ProcessReturn(context.Background(), ProcessReturnInput{
		OrderID:          order.ID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: testEnd,
		Items: []ReturnItemInput{
			{ItemID: order.Items[0].ID, ReturnedQuantity: 5, DamageCost: decPtr("200"), DamageDescription: "broken leg"},
			{ItemID: order.Items[1].ID, ReturnedQuantity: 0, MissingNote: "not found at venue"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, string(rental.StatusCompletedWithIssues), res.Status)
	assert.True(t, res.DamageTotal.Equal(dec("200")))

	stored := f.store.get(order.ID)
	assert.Equal(t, "returned", *stored.Items[0].ReturnStatus)
	assert.True(t, stored.Items[0].DamageCost.Equal(dec("200")))
	assert.Equal(t, "missing", *stored.Items[1].ReturnStatus)
	assert.Equal(t, "not found at venue", stored.Items[1].MissingNote)
	assert.False(t, stored.NeedsReview)
}

func TestProcessReturnDegradedWhenStorageRejects(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)
	f.store.rejectStatuses[string(rental.StatusCompletedWithIssues)] = true
	f.store.rejectStatuses["missing"] = true

	res, err := f.returns.ProcessReturn(context.Background(), ProcessReturnInput{
		OrderID:          order.ID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: testEnd,
		Items: []ReturnItemInput{
			{ItemID: order.Items[0].ID, ReturnedQuantity: 5, DamageCost: decPtr("200"), DamageDescription: "broken leg"},
			{ItemID: order.Items[1].ID, ReturnedQuantity: 0, MissingNote: "not found at venue"},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, string(rental.StatusFlagged), res.Status)
	assert.Len(t, res.Warnings, 3)
	assert.True(t, res.DamageTotal.IsZero())

	stored := f.store.get(order.ID)
	assert.Equal(t, string(rental.StatusScheduled), stored.Status)
	assert.True(t, stored.NeedsReview)
	assert.True(t, stored.DamageTotal.IsZero())
	for _, item := range stored.Items {
		assert.Equal(t, "not_yet_returned", *item.ReturnStatus)
		assert.Nil(t, item.DamageCost)
	}
	assert.Equal(t, 5, *stored.Items[0].ReturnedQuantity)
	assert.Equal(t, 0, *stored.Items[1].ReturnedQuantity)

	events, err := f.returns.ListReturnEvents(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Degraded)
	assert.Equal(t, "flagged", events[0].ResultStatus)
	assert.Contains(t, events[0].ReportData, "broken leg")
}

func TestProcessReturnDegradedKeepsCleanItems(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)
	f.store.rejectStatuses["missing"] = true

	res, err := f.returns.ProcessReturn(context.Background(), ProcessReturnInput{
		OrderID:          order.ID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: testEnd,
		Items: []ReturnItemInput{
			{ItemID: order.Items[0].ID, ReturnedQuantity: 5},
			{ItemID: order.Items[1].ID, ReturnedQuantity: 0, MissingNote: "lost"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Len(t, res.Warnings, 2)

	stored := f.store.get(order.ID)
	assert.Equal(t, "returned", *stored.Items[0].ReturnStatus)
	assert.Equal(t, "not_yet_returned", *stored.Items[1].ReturnStatus)
}

func TestProcessReturnValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.createOrder()
	require.NoError(t, err)

	_, err = f.returns.ProcessReturn(ctx, ProcessReturnInput{
		OrderID:          order.ID,
		ProcessedBy:      f.clerk.ID,
		ActualReturnDate: testEnd,
		Items: []ReturnItemInput{
			{ItemID: order.Items[0].ID, ReturnedQuantity: 5},
			{ItemID: order.Items[1].ID, ReturnedQuantity: 3},
		},
	})
	var verr *rental.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "returned_quantity", verr.Field)

	stored := f.store.get(order.ID)
	assert.Nil(t, stored.Items[0].ReturnedQuantity)
	assert.Equal(t, 0, f.store.saves)

	_, err = f.returns.ProcessReturn(ctx, ProcessReturnInput{OrderID: order.ID, ActualReturnDate: testEnd,
		Items: []ReturnItemInput{{ItemID: order.Items[0].ID, ReturnedQuantity: 1}}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "processed_by", verr.Field)

	_, err = f.returns.ProcessReturn(ctx, ProcessReturnInput{OrderID: order.ID, ProcessedBy: f.clerk.ID, ActualReturnDate: testEnd})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reports", verr.Field)

	_, err = f.returns.ProcessReturn(ctx, ProcessReturnInput{OrderID: 404, ProcessedBy: f.clerk.ID, ActualReturnDate: testEnd,
		Items: []ReturnItemInput{{ItemID: 1, ReturnedQuantity: 1}}})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestProcessReturnOnCancelledOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.createOrder()
	require.NoError(t, err)
	_, err = f.orders.CancelOrder(ctx, order.ID, f.admin.ID, "")
	require.NoError(t, err)

	_, err = returnAll(f, order.ID, testEnd)
	assert.ErrorIs(t, err, ErrOrderCancelled)
}

func TestProcessReturnInactiveStaff(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)
	f.staffRepo.staff[f.clerk.ID].IsActive = false

	_, err = returnAll(f, order.ID, testEnd)
	assert.ErrorIs(t, err, ErrInactiveStaff)
}

func TestProcessReturnDefaultsReturnDate(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)
	f.clock.now = testEnd.Add(-time.Hour)

	res, err := returnAll(f, order.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, res.Event.ActualReturnDate.Equal(f.clock.now))
	assert.False(t, res.LateReturn)
}

func TestGetReturnEvent(t *testing.T) {
	f := newFixture()
	order, err := f.createOrder()
	require.NoError(t, err)

	res, err := returnAll(f, order.ID, testEnd)
	require.NoError(t, err)

	event, err := f.returns.GetReturnEvent(context.Background(), res.Event.Reference)
	require.NoError(t, err)
	assert.Equal(t, order.ID, event.OrderID)
	assert.Equal(t, string(rental.StatusCompleted), event.ResultStatus)

	_, err = f.returns.GetReturnEvent(context.Background(), "RET-missing")
	assert.ErrorIs(t, err, ErrReturnNotFound)
}
