package api

import (
	"context"

	"marketplace/command"
	"marketplace/domain"
	"marketplace/query"
)

// Queries is the read surface the handlers expose. Satisfied by
// query.Engine.
type Queries interface {
	Products(ctx context.Context, q query.ProductQuery) (*query.Page, error)
	Product(ctx context.Context, id string) (*domain.ProductView, error)
	SearchByName(ctx context.Context, term string, limit int) ([]domain.ProductView, error)
	Recommended(ctx context.Context, orderID string) ([]domain.ProductView, error)
	CurrentLocation(ctx context.Context, userID string) (*domain.LocationView, error)
}

// Dispatcher routes commands to the write side. Satisfied by
// command.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, env domain.CommandEnvelope) (command.Result, error)
}

// Notifications reads a user's notification feed. Satisfied by
// readmodel.Store.
type Notifications interface {
	Notifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// Authenticator resolves the acting user from the Authorization header.
type Authenticator interface {
	UserIDFromAuthHeader(h string) (string, error)
}
