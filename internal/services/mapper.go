package services

import (
	"fmt"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
)

func toEngineItem(item *models.RentalItem) (rental.Item, error) {
	status := rental.NotYetReturned
	if item.ReturnStatus != nil {
		parsed, err := rental.ParseReturnStatus(*item.ReturnStatus)
		if err != nil {
			return rental.Item{}, fmt.Errorf("item %d: %w", item.ID, err)
		}
		status = parsed
	}

	out := rental.Item{
		ID:                item.ID,
		Quantity:          item.Quantity,
		PricePerDay:       item.PricePerDay,
		ReturnStatus:      status,
		DamageDescription: item.DamageDescription,
		MissingNote:       item.MissingNote,
	}
	if item.ReturnedQuantity != nil {
		returned := *item.ReturnedQuantity
		out.ReturnedQuantity = &returned
	}
	if item.DamageCost != nil {
		cost := *item.DamageCost
		out.DamageCost = &cost
	}
	return out, nil
}

func toEngineOrder(order *models.RentalOrder) (rental.Order, error) {
	items := make([]rental.Item, 0, len(order.Items))
	for i := range order.Items {
		item, err := toEngineItem(&order.Items[i])
		if err != nil {
			return rental.Order{}, err
		}
		items = append(items, item)
	}

	return rental.Order{
		StartDate:  order.StartDate,
		EndDate:    order.EndDate,
		RentalDays: order.RentalDays,
		Items:      items,
		GST: rental.GSTConfig{
			Enabled:  order.GSTEnabled,
			Rate:     order.GSTRate,
			Included: order.GSTIncluded,
		},
		SecurityDeposit: order.SecurityDeposit,
		Cancelled:       order.Cancelled(),
	}, nil
}

// applyEngineItems copies reconciled return fields back onto the stored items,
// matching by ID.
func applyEngineItems(order *models.RentalOrder, items []rental.Item) {
	byID := make(map[uint]rental.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for i := range order.Items {
		item, ok := byID[order.Items[i].ID]
		if !ok {
			continue
		}
		applyReturnFields(&order.Items[i], item)
	}
}

func applyReturnFields(dst *models.RentalItem, src rental.Item) {
	status := src.ReturnStatus.String()
	dst.ReturnStatus = &status
	if src.ReturnedQuantity != nil {
		returned := *src.ReturnedQuantity
		dst.ReturnedQuantity = &returned
	} else {
		dst.ReturnedQuantity = nil
	}
	if src.DamageCost != nil {
		cost := *src.DamageCost
		dst.DamageCost = &cost
	} else {
		dst.DamageCost = nil
	}
	dst.DamageDescription = src.DamageDescription
	dst.MissingNote = src.MissingNote
}
