// Package storage provides the write-side persistence layer: one Azure
// Table per aggregate type plus the append-only event log table.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"marketplace/domain"
)

// Tables names the per-aggregate write-side tables.
type Tables struct {
	Users       string
	Sellers     string
	Products    string
	Inventories string
	Orders      string
	Locations   string
	Events      string
}

// Storage provides access to the write-side tables. Command handlers are
// its only callers.
type Storage struct {
	users       *aztables.Client
	sellers     *aztables.Client
	products    *aztables.Client
	inventories *aztables.Client
	orders      *aztables.Client
	locations   *aztables.Client
	events      *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		users:       svc.NewClient(tables.Users),
		sellers:     svc.NewClient(tables.Sellers),
		products:    svc.NewClient(tables.Products),
		inventories: svc.NewClient(tables.Inventories),
		orders:      svc.NewClient(tables.Orders),
		locations:   svc.NewClient(tables.Locations),
		events:      svc.NewClient(tables.Events),
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func isConflict(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && (respErr.StatusCode == 409 || respErr.StatusCode == 412)
}

func getEntity(ctx context.Context, client *aztables.Client, pk, rk string, out any) (bool, error) {
	ent, err := client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(ent.Value, out); err != nil {
		return false, err
	}
	return true, nil
}

func addEntity(ctx context.Context, client *aztables.Client, ent any) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := client.AddEntity(ctx, payload, nil); err != nil {
		if isConflict(err) {
			return domain.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

func mergeEntity(ctx context.Context, client *aztables.Client, ent any) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil && isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// GetUser retrieves a user if present.
func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var ent userEntity
	ok, err := getEntity(ctx, s.users, id, id, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return userFromEntity(ent), nil
}

// quoteOData embeds a caller-supplied value in an OData string literal.
// Single quotes are doubled per the OData escaping rules so the value
// cannot terminate the literal early.
func quoteOData(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// GetUserByEmail scans the user table for a matching email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := "Email eq " + quoteOData(email)
	pager := s.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			return userFromEntity(ent), nil
		}
	}
	return nil, nil
}

func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	return addEntity(ctx, s.users, userToEntity(u))
}

// TouchUserLogin records the last login instant on the user row.
func (s *Storage) TouchUserLogin(ctx context.Context, id string, at time.Time) error {
	ts := at.UnixMilli()
	tsType := EdmInt64
	upd := struct {
		Entity
		LastLoginAt     *int64  `json:"LastLoginAt,omitempty,string"`
		LastLoginAtType *string `json:"LastLoginAt@odata.type,omitempty"`
	}{Entity: Entity{PartitionKey: id, RowKey: id}, LastLoginAt: &ts, LastLoginAtType: &tsType}
	return mergeEntity(ctx, s.users, upd)
}

func (s *Storage) GetSeller(ctx context.Context, id string) (*domain.Seller, error) {
	var ent sellerEntity
	ok, err := getEntity(ctx, s.sellers, id, id, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return sellerFromEntity(ent), nil
}

func (s *Storage) GetSellerByEmail(ctx context.Context, email string) (*domain.Seller, error) {
	filter := "Email eq " + quoteOData(email)
	pager := s.sellers.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent sellerEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			return sellerFromEntity(ent), nil
		}
	}
	return nil, nil
}

func (s *Storage) InsertSeller(ctx context.Context, sl domain.Seller) error {
	return addEntity(ctx, s.sellers, sellerToEntity(sl))
}

func (s *Storage) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var ent productEntity
	ok, err := getEntity(ctx, s.products, id, id, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return productFromEntity(ent), nil
}

func (s *Storage) InsertProduct(ctx context.Context, p domain.Product) error {
	return addEntity(ctx, s.products, productToEntity(p))
}

func (s *Storage) UpdateProduct(ctx context.Context, upd domain.ProductUpdate) error {
	return mergeEntity(ctx, s.products, productUpdateToEntity(upd))
}

func (s *Storage) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.products.DeleteEntity(ctx, id, id, nil)
	if err != nil && isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Storage) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var ent inventoryEntity
	ok, err := getEntity(ctx, s.inventories, productID, productID, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return inventoryFromEntity(ent), nil
}

func (s *Storage) InsertInventory(ctx context.Context, inv domain.Inventory) error {
	return addEntity(ctx, s.inventories, inventoryToEntity(inv))
}

func (s *Storage) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	return mergeEntity(ctx, s.inventories, inventoryToEntity(inv))
}

func (s *Storage) DeleteInventory(ctx context.Context, productID string) error {
	_, err := s.inventories.DeleteEntity(ctx, productID, productID, nil)
	if err != nil && isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Storage) InsertOrder(ctx context.Context, o domain.Order) error {
	ent, err := orderToEntity(o)
	if err != nil {
		return err
	}
	return addEntity(ctx, s.orders, ent)
}

func (s *Storage) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var ent orderEntity
	ok, err := getEntity(ctx, s.orders, id, id, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return orderFromEntity(ent)
}

func (s *Storage) GetLocation(ctx context.Context, userID, locationID string) (*domain.UserLocation, error) {
	var ent locationEntity
	ok, err := getEntity(ctx, s.locations, userID, locationID, &ent)
	if err != nil || !ok {
		return nil, err
	}
	return locationFromEntity(ent), nil
}

// ListLocations returns all locations for a user. They share one
// partition, which is what makes the current-location swap atomic.
func (s *Storage) ListLocations(ctx context.Context, userID string) ([]domain.UserLocation, error) {
	filter := "PartitionKey eq " + quoteOData(userID)
	pager := s.locations.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	locs := []domain.UserLocation{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent locationEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			locs = append(locs, *locationFromEntity(ent))
		}
	}
	return locs, nil
}

func (s *Storage) InsertLocation(ctx context.Context, loc domain.UserLocation) error {
	return addEntity(ctx, s.locations, locationToEntity(loc))
}

// SetCurrentLocation atomically clears IsCurrent on every location of the
// user and sets it on exactly one, in a single partition transaction.
// Concurrent readers never observe an intermediate state.
func (s *Storage) SetCurrentLocation(ctx context.Context, userID, locationID string) error {
	locs, err := s.ListLocations(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	actions := make([]aztables.TransactionAction, 0, len(locs))
	for _, loc := range locs {
		isCurrent := loc.ID == locationID
		if isCurrent {
			found = true
		}
		if loc.IsCurrent == isCurrent {
			continue
		}
		upd := struct {
			Entity
			IsCurrent bool `json:"IsCurrent"`
		}{Entity: Entity{PartitionKey: userID, RowKey: loc.ID}, IsCurrent: isCurrent}
		payload, err := json.Marshal(upd)
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeUpdateMerge,
			Entity:     payload,
		})
	}
	if !found {
		return domain.ErrNotFound
	}
	if len(actions) == 0 {
		return nil
	}
	if _, err := s.locations.SubmitTransaction(ctx, actions, nil); err != nil {
		if isConflict(err) {
			return domain.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}
