package projection

import (
	"context"
	"encoding/json"

	"marketplace/domain"
	"marketplace/publisher"
)

// NewProductCreated projects product-created events into fresh product
// views. Re-delivery overwrites the view with identical content, so the
// upsert is naturally idempotent.
func NewProductCreated(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateProduct,
		event:     domain.ProductCreated,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.ProductCreatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			return views.UpsertProductView(ctx, domain.ProductView{
				ProductID:       ev.AggregateID,
				SellerID:        data.SellerID,
				Name:            data.Name,
				Description:     data.Description,
				Category:        data.Category,
				OriginalPrice:   data.OriginalPrice,
				DiscountedPrice: data.DiscountedPrice,
				DiscountRate:    data.DiscountRate,
				LocationX:       data.LocationX,
				LocationY:       data.LocationY,
				CreatedAt:       ev.CreatedAt,
				UpdatedAt:       ev.CreatedAt,
			})
		},
	}
}

// NewProductUpdated merges partial updates into the stored view. Nil
// payload fields are left untouched.
func NewProductUpdated(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateProduct,
		event:     domain.ProductUpdated,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.ProductUpdatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			at := ev.CreatedAt
			_, err := views.MergeProductView(ctx, ev.AggregateID, domain.ProductViewPatch{
				Name:            data.Name,
				Description:     data.Description,
				Category:        data.Category,
				OriginalPrice:   data.OriginalPrice,
				DiscountedPrice: data.DiscountedPrice,
				DiscountRate:    data.DiscountRate,
				LocationX:       data.LocationX,
				LocationY:       data.LocationY,
				UpdatedAt:       &at,
			})
			return err
		},
	}
}

// NewProductDeleted removes the view and its index entries. Deleting an
// absent view is a no-op, which is what makes re-delivery safe.
func NewProductDeleted(views ProductViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateProduct,
		event:     domain.ProductDeleted,
		handle: func(ctx context.Context, ev domain.Event) error {
			return views.DeleteProductView(ctx, ev.AggregateID)
		},
	}
}
