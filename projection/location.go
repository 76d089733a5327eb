package projection

import (
	"context"
	"encoding/json"

	"marketplace/domain"
	"marketplace/publisher"
)

func NewLocationAdded(views LocationViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateUserLocation,
		event:     domain.LocationAdded,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.LocationAddedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			if err := views.UpsertLocationView(ctx, domain.LocationView{
				LocationID: ev.AggregateID,
				UserID:     data.UserID,
				Alias:      data.Alias,
				Address:    data.Address,
				Latitude:   data.Latitude,
				Longitude:  data.Longitude,
				IsCurrent:  data.IsCurrent,
			}); err != nil {
				return err
			}
			if !data.IsCurrent {
				return nil
			}
			return views.SetCurrentLocationView(ctx, data.UserID, ev.AggregateID, data.Latitude, data.Longitude)
		},
	}
}

// NewCurrentLocationSet flips the current flag across the user's
// locations and moves the user's geo member. The swap is computed from
// the stored views, so replaying the event lands on the same state.
func NewCurrentLocationSet(views LocationViews) publisher.Projector {
	return projector{
		aggregate: domain.AggregateUserLocation,
		event:     domain.CurrentLocationSet,
		handle: func(ctx context.Context, ev domain.Event) error {
			var data domain.CurrentLocationSetData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			return views.SetCurrentLocationView(ctx, data.UserID, data.LocationID, data.Latitude, data.Longitude)
		},
	}
}
