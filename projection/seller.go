package projection

import (
	"context"
	"encoding/json"

	"marketplace/domain"
	"marketplace/publisher"
)

func NewSellerRegistered(views SellerViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateSeller,
		event:     domain.SellerRegistered,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.SellerRegisteredData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			return views.UpsertSellerView(ctx, domain.SellerView{
				SellerID:     ev.AggregateID,
				Name:         data.Name,
				Email:        data.Email,
				BusinessName: data.BusinessName,
				CreatedAt:    ev.CreatedAt,
			})
		},
	}
}
