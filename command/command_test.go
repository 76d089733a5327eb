package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"marketplace/domain"
)

type fakePublisher struct {
	events []domain.Event
	fail   error
}

func (f *fakePublisher) PublishAndSave(_ context.Context, ev domain.Event) (domain.Event, error) {
	if f.fail != nil {
		return domain.Event{}, f.fail
	}
	ev.ID = fmt.Sprintf("ev-%d", len(f.events)+1)
	ev.CreatedAt = time.Now().UTC()
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakePublisher) byType(eventType string) []domain.Event {
	var out []domain.Event
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fakeStore struct {
	users       map[string]domain.User
	sellers     map[string]domain.Seller
	products    map[string]domain.Product
	inventories map[string]domain.Inventory
	orders      map[string]domain.Order
	locations   map[string]domain.UserLocation
	current     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]domain.User{},
		sellers:     map[string]domain.Seller{},
		products:    map[string]domain.Product{},
		inventories: map[string]domain.Inventory{},
		orders:      map[string]domain.Order{},
		locations:   map[string]domain.UserLocation{},
		current:     map[string]string{},
	}
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertUser(_ context.Context, u domain.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) TouchUserLogin(_ context.Context, id string, at time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLoginAt = at
	f.users[id] = u
	return nil
}

func (f *fakeStore) GetSellerByEmail(_ context.Context, email string) (*domain.Seller, error) {
	for _, sl := range f.sellers {
		if sl.Email == email {
			return &sl, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertSeller(_ context.Context, sl domain.Seller) error {
	f.sellers[sl.ID] = sl
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) InsertProduct(_ context.Context, p domain.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, upd domain.ProductUpdate) error {
	p, ok := f.products[upd.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.DiscountedPrice != nil {
		p.DiscountedPrice = *upd.DiscountedPrice
	}
	if upd.DiscountRate != nil {
		p.DiscountRate = *upd.DiscountRate
	}
	p.Revision = upd.Revision
	f.products[upd.ID] = p
	return nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) GetInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	inv, ok := f.inventories[productID]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (f *fakeStore) InsertInventory(_ context.Context, inv domain.Inventory) error {
	f.inventories[inv.ProductID] = inv
	return nil
}

func (f *fakeStore) UpdateInventory(_ context.Context, inv domain.Inventory) error {
	if _, ok := f.inventories[inv.ProductID]; !ok {
		return domain.ErrNotFound
	}
	f.inventories[inv.ProductID] = inv
	return nil
}

func (f *fakeStore) DeleteInventory(_ context.Context, productID string) error {
	if _, ok := f.inventories[productID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.inventories, productID)
	return nil
}

func (f *fakeStore) InsertOrder(_ context.Context, o domain.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeStore) GetLocation(_ context.Context, userID, locationID string) (*domain.UserLocation, error) {
	loc, ok := f.locations[locationID]
	if !ok || loc.UserID != userID {
		return nil, nil
	}
	return &loc, nil
}

func (f *fakeStore) InsertLocation(_ context.Context, loc domain.UserLocation) error {
	f.locations[loc.ID] = loc
	return nil
}

func (f *fakeStore) SetCurrentLocation(_ context.Context, userID, locationID string) error {
	if loc, ok := f.locations[locationID]; !ok || loc.UserID != userID {
		return domain.ErrNotFound
	}
	for id, loc := range f.locations {
		if loc.UserID != userID {
			continue
		}
		loc.IsCurrent = id == locationID
		f.locations[id] = loc
	}
	f.current[userID] = locationID
	return nil
}

// newTestRegistry wires every service against the shared fake store so
// follow-up commands flow through the same path as external ones.
func newTestRegistry(t *testing.T, store *fakeStore, pub *fakePublisher) *Registry {
	t.Helper()
	logger := log.New()
	r := NewRegistry()
	NewUserService(store, pub, logger).RegisterHandlers(r)
	NewSellerService(store, pub).RegisterHandlers(r)
	NewProductService(store, pub, r, logger).RegisterHandlers(r)
	NewInventoryService(store, pub).RegisterHandlers(r)
	NewOrderService(store, pub, r, logger).RegisterHandlers(r)
	NewLocationService(store, pub).RegisterHandlers(r)
	return r
}

func envelope(t *testing.T, actorID, cmdType string, data any) domain.CommandEnvelope {
	t.Helper()
	raw, err := sonic.Marshal(data)
	if err != nil {
		t.Fatalf("marshal command data: %v", err)
	}
	return domain.CommandEnvelope{
		ActorID: actorID,
		Command: domain.Command{
			ID:             "cmd-1",
			IdempotencyKey: "cmd-1",
			Type:           cmdType,
			Data:           raw,
			Timestamp:      time.Now().UnixMilli(),
		},
	}
}

func TestCreateProductEmitsEventAndInventory(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	res, err := r.Dispatch(context.Background(), envelope(t, "seller-1", domain.CmdCreateProduct, domain.CreateProductData{
		Name:            "americano",
		Category:        "coffee",
		OriginalPrice:   100,
		DiscountedPrice: 80,
		Quantity:        5,
	}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.EventType != domain.ProductCreated {
		t.Fatalf("result event type = %s", res.EventType)
	}

	p := store.products[res.AggregateID]
	if p.DiscountRate != 20 {
		t.Fatalf("discount rate = %d, want 20", p.DiscountRate)
	}
	if p.SellerID != "seller-1" {
		t.Fatalf("seller = %s", p.SellerID)
	}
	if inv := store.inventories[res.AggregateID]; inv.Quantity != 5 {
		t.Fatalf("inventory = %+v", inv)
	}
	if len(pub.byType(domain.ProductCreated)) != 1 || len(pub.byType(domain.InventoryCreated)) != 1 {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestCreateProductRejectsBadDiscount(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	_, err := r.Dispatch(context.Background(), envelope(t, "seller-1", domain.CmdCreateProduct, domain.CreateProductData{
		Name:            "americano",
		Category:        "coffee",
		OriginalPrice:   80,
		DiscountedPrice: 100,
		Quantity:        5,
	}))
	if !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(store.products) != 0 || len(pub.events) != 0 {
		t.Fatal("rejected command must not mutate state")
	}
}

func TestUpdateProductRecomputesRate(t *testing.T) {
	store := newFakeStore()
	store.products["p1"] = domain.Product{
		ID: "p1", SellerID: "seller-1",
		OriginalPrice: 100, DiscountedPrice: 80, DiscountRate: 20, Revision: 1,
	}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	price := 50.0
	_, err := r.Dispatch(context.Background(), envelope(t, "seller-1", domain.CmdUpdateProduct, domain.UpdateProductData{
		ProductID:       "p1",
		DiscountedPrice: &price,
	}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if got := store.products["p1"].DiscountRate; got != 50 {
		t.Fatalf("rate = %d, want 50", got)
	}
	evs := pub.byType(domain.ProductUpdated)
	if len(evs) != 1 {
		t.Fatalf("events: %+v", pub.events)
	}
	var data domain.ProductUpdatedData
	if err := sonic.Unmarshal(evs[0].Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.DiscountRate == nil || *data.DiscountRate != 50 {
		t.Fatalf("event rate = %v", data.DiscountRate)
	}
	if data.Name != nil {
		t.Fatal("untouched field leaked into partial event")
	}
}

func TestUpdateProductRejectsForeignSeller(t *testing.T) {
	store := newFakeStore()
	store.products["p1"] = domain.Product{ID: "p1", SellerID: "seller-1", OriginalPrice: 100, DiscountedPrice: 80}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	name := "stolen"
	_, err := r.Dispatch(context.Background(), envelope(t, "seller-2", domain.CmdUpdateProduct, domain.UpdateProductData{
		ProductID: "p1",
		Name:      &name,
	}))
	if !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestCreateOrderLowersStock(t *testing.T) {
	store := newFakeStore()
	store.products["p1"] = domain.Product{ID: "p1", SellerID: "seller-1", DiscountedPrice: 80}
	store.inventories["p1"] = domain.Inventory{ProductID: "p1", Quantity: 5, Revision: 1}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	res, err := r.Dispatch(context.Background(), envelope(t, "buyer-1", domain.CmdCreateOrder, domain.CreateOrderData{
		Items: []domain.OrderItem{{ProductID: "p1", Count: 2}},
	}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	o := store.orders[res.AggregateID]
	if o.Total != 160 || o.Items[0].UnitPrice != 80 || o.Items[0].SellerID != "seller-1" {
		t.Fatalf("order = %+v", o)
	}
	if got := store.inventories["p1"].Quantity; got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
	if len(pub.byType(domain.OrderCreated)) != 1 || len(pub.byType(domain.InventoryUpdated)) != 1 {
		t.Fatalf("events: %+v", pub.events)
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	store := newFakeStore()
	store.products["p1"] = domain.Product{ID: "p1", SellerID: "seller-1", DiscountedPrice: 80}
	store.inventories["p1"] = domain.Inventory{ProductID: "p1", Quantity: 1}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	_, err := r.Dispatch(context.Background(), envelope(t, "buyer-1", domain.CmdCreateOrder, domain.CreateOrderData{
		Items: []domain.OrderItem{{ProductID: "p1", Count: 2}},
	}))
	if !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(store.orders) != 0 || store.inventories["p1"].Quantity != 1 || len(pub.events) != 0 {
		t.Fatal("rejected order must not mutate state")
	}
}

func TestDeleteInventoryVersionFollowsRevision(t *testing.T) {
	store := newFakeStore()
	store.inventories["p1"] = domain.Inventory{ProductID: "p1", Quantity: 3, Revision: 4}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	_, err := r.Dispatch(context.Background(), envelope(t, "seller-1", domain.CmdDeleteInventory, domain.DeleteInventoryData{ProductID: "p1"}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	evs := pub.byType(domain.InventoryDeleted)
	if len(evs) != 1 || evs[0].Version != 5 {
		t.Fatalf("events: %+v", pub.events)
	}

	// Deleting an absent row still emits, with the version floor.
	_, err = r.Dispatch(context.Background(), envelope(t, "seller-1", domain.CmdDeleteInventory, domain.DeleteInventoryData{ProductID: "ghost"}))
	if err != nil {
		t.Fatalf("dispatch absent: %v", err)
	}
	evs = pub.byType(domain.InventoryDeleted)
	if len(evs) != 2 || evs[1].Version != 1 {
		t.Fatalf("events: %+v", pub.events)
	}
}

func TestSetCurrentLocation(t *testing.T) {
	store := newFakeStore()
	store.locations["l1"] = domain.UserLocation{ID: "l1", UserID: "u1", IsCurrent: true, Revision: 1}
	store.locations["l2"] = domain.UserLocation{ID: "l2", UserID: "u1", Latitude: 37.5, Longitude: 127.0, Revision: 1}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	_, err := r.Dispatch(context.Background(), envelope(t, "u1", domain.CmdSetCurrentLocation, domain.SetCurrentLocationData{LocationID: "l2"}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if store.locations["l1"].IsCurrent || !store.locations["l2"].IsCurrent {
		t.Fatalf("current flag not swapped: %+v", store.locations)
	}

	evs := pub.byType(domain.CurrentLocationSet)
	if len(evs) != 1 {
		t.Fatalf("events: %+v", pub.events)
	}
	var data domain.CurrentLocationSetData
	if err := sonic.Unmarshal(evs[0].Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Latitude != 37.5 || data.Longitude != 127.0 {
		t.Fatalf("event coords = %+v", data)
	}

	_, err = r.Dispatch(context.Background(), envelope(t, "u1", domain.CmdSetCurrentLocation, domain.SetCurrentLocationData{LocationID: "ghost"}))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestLoginUserTouchesAndEmits(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = domain.User{ID: "u1", Email: "a@b.c"}
	pub := &fakePublisher{}
	r := newTestRegistry(t, store, pub)

	res, err := r.Dispatch(context.Background(), envelope(t, "", domain.CmdLoginUser, domain.LoginUserData{Email: "a@b.c"}))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.AggregateID != "u1" || res.EventType != domain.UserLoggedIn {
		t.Fatalf("result = %+v", res)
	}
	if store.users["u1"].LastLoginAt.IsZero() {
		t.Fatal("login instant not recorded")
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), domain.CommandEnvelope{Command: domain.Command{Type: "mint-gold"}})
	var unknown *UnknownCommandTypeError
	if !errors.As(err, &unknown) || unknown.Type != "mint-gold" {
		t.Fatalf("want UnknownCommandTypeError, got %v", err)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r := NewRegistry()
	h := func(context.Context, domain.CommandEnvelope) (Result, error) { return Result{}, nil }
	r.Register("x", h)
	r.Register("x", h)
}
