package projection

import (
	"context"
	"encoding/json"

	"marketplace/domain"
	"marketplace/publisher"
)

// Inventory events land on the product view: AvailableStock is the only
// field they own. Quantities in the payload are absolute values, not
// deltas, so merging the same event twice converges on the same view.

func NewInventoryCreated(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateInventory,
		event:     domain.InventoryCreated,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.InventoryCreatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			at := ev.CreatedAt
			_, err := views.MergeProductView(ctx, data.ProductID, domain.ProductViewPatch{
				AvailableStock: &data.Quantity,
				UpdatedAt:      &at,
			})
			return err
		},
	}
}

func NewInventoryUpdated(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateInventory,
		event:     domain.InventoryUpdated,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.InventoryUpdatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			if data.Quantity == nil {
				return nil
			}
			at := ev.CreatedAt
			_, err := views.MergeProductView(ctx, data.ProductID, domain.ProductViewPatch{
				AvailableStock: data.Quantity,
				UpdatedAt:      &at,
			})
			return err
		},
	}
}

// NewInventoryDeleted zeroes the stock rather than deleting the product
// view; the product itself may still exist.
func NewInventoryDeleted(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateInventory,
		event:     domain.InventoryDeleted,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.InventoryDeletedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			zero := 0
			at := ev.CreatedAt
			_, err := views.MergeProductView(ctx, data.ProductID, domain.ProductViewPatch{
				AvailableStock: &zero,
				UpdatedAt:      &at,
			})
			return err
		},
	}
}
