// Package readmodel keeps the denormalized read views in redis: JSON
// view documents, sorted-set secondary indexes per sortable dimension,
// a geo set for distance primitives and a lexicographic name index.
// Projectors are the only writers.
package readmodel

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"marketplace/domain"
)

const (
	productKeyPrefix     = "view:product:"
	sellerKeyPrefix      = "view:seller:"
	locationKeyPrefix    = "view:location:"
	currentLocKeyPrefix  = "view:location:current:"
	userLocSetPrefix     = "idx:user:locations:"
	discountIdxPrefix    = "idx:product:discount:"
	createdIdxPrefix     = "idx:product:created:"
	allCreatedIdxKey     = "idx:product:created#all"
	sellerProductsPrefix = "idx:seller:products:"
	nameIdxKey           = "idx:product:name"
	geoKey               = "geo:members"
	notificationsPrefix  = "notifications:"

	notificationsKept = 100
)

// Store reads and writes the redis-backed read model.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// GeoProductMember and GeoUserMember name entries of the shared geo set.
func GeoProductMember(productID string) string { return "product:" + productID }
func GeoUserMember(userID string) string       { return "user:" + userID }

func productKey(id string) string  { return productKeyPrefix + id }
func sellerKey(id string) string   { return sellerKeyPrefix + id }
func discountIdx(cat string) string { return discountIdxPrefix + cat }
func createdIdx(cat string) string  { return createdIdxPrefix + cat }

func locationKey(userID, locationID string) string {
	return locationKeyPrefix + userID + ":" + locationID
}

func nameMember(name, id string) string {
	return strings.ToLower(name) + "|" + id
}

// GetProductView returns the view, or nil when it does not exist.
func (s *Store) GetProductView(ctx context.Context, id string) (*domain.ProductView, error) {
	data, err := s.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var v domain.ProductView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetProductViews fetches many views at once, silently skipping ids that
// have no view (deleted or not yet projected).
func (s *Store) GetProductViews(ctx context.Context, ids []string) ([]domain.ProductView, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	views := make([]domain.ProductView, 0, len(vals))
	for _, raw := range vals {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var v domain.ProductView
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// UpsertProductView stores the document and rebuilds every index entry
// for it. Re-applying the same view is a no-op, which is what makes
// create projections idempotent.
func (s *Store) UpsertProductView(ctx context.Context, v domain.ProductView) error {
	prev, err := s.GetProductView(ctx, v.ProductID)
	if err != nil {
		return err
	}

	v.Distance = nil
	v.DistanceDiscountScore = nil
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil {
			if prev.Category != v.Category {
				pipe.ZRem(ctx, discountIdx(prev.Category), v.ProductID)
				pipe.ZRem(ctx, createdIdx(prev.Category), v.ProductID)
			}
			if prev.Name != v.Name {
				pipe.ZRem(ctx, nameIdxKey, nameMember(prev.Name, v.ProductID))
			}
		}
		pipe.Set(ctx, productKey(v.ProductID), doc, 0)
		pipe.ZAdd(ctx, discountIdx(v.Category), redis.Z{Score: float64(v.DiscountRate), Member: v.ProductID})
		pipe.ZAdd(ctx, createdIdx(v.Category), redis.Z{Score: float64(v.CreatedAt.UnixMilli()), Member: v.ProductID})
		pipe.ZAdd(ctx, allCreatedIdxKey, redis.Z{Score: float64(v.CreatedAt.UnixMilli()), Member: v.ProductID})
		pipe.SAdd(ctx, sellerProductsPrefix+v.SellerID, v.ProductID)
		pipe.ZAdd(ctx, nameIdxKey, redis.Z{Score: 0, Member: nameMember(v.Name, v.ProductID)})
		if v.LocationX != 0 || v.LocationY != 0 {
			pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
				Name:      GeoProductMember(v.ProductID),
				Longitude: v.LocationX,
				Latitude:  v.LocationY,
			})
		}
		return nil
	})
	return err
}

// MergeProductView applies a partial-field merge: nil patch fields leave
// the stored view untouched. Returns domain.ErrNotFound when no view
// exists for the id.
func (s *Store) MergeProductView(ctx context.Context, id string, patch domain.ProductViewPatch) (*domain.ProductView, error) {
	v, err := s.GetProductView(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}
	applyPatch(v, patch)
	if err := s.UpsertProductView(ctx, *v); err != nil {
		return nil, err
	}
	return v, nil
}

func applyPatch(v *domain.ProductView, p domain.ProductViewPatch) {
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Category != nil {
		v.Category = *p.Category
	}
	if p.OriginalPrice != nil {
		v.OriginalPrice = *p.OriginalPrice
	}
	if p.DiscountedPrice != nil {
		v.DiscountedPrice = *p.DiscountedPrice
	}
	if p.DiscountRate != nil {
		v.DiscountRate = *p.DiscountRate
	}
	if p.AvailableStock != nil {
		v.AvailableStock = *p.AvailableStock
	}
	if p.LocationX != nil {
		v.LocationX = *p.LocationX
	}
	if p.LocationY != nil {
		v.LocationY = *p.LocationY
	}
	if p.UpdatedAt != nil {
		v.UpdatedAt = *p.UpdatedAt
	}
}

// DeleteProductView removes the document and all its index entries. It
// is tolerant of the view already being absent.
func (s *Store) DeleteProductView(ctx context.Context, id string) error {
	v, err := s.GetProductView(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, productKey(id))
		pipe.ZRem(ctx, discountIdx(v.Category), id)
		pipe.ZRem(ctx, createdIdx(v.Category), id)
		pipe.ZRem(ctx, allCreatedIdxKey, id)
		pipe.SRem(ctx, sellerProductsPrefix+v.SellerID, id)
		pipe.ZRem(ctx, nameIdxKey, nameMember(v.Name, id))
		pipe.ZRem(ctx, geoKey, GeoProductMember(id))
		return nil
	})
	return err
}

// CategoryEntries returns every product in the category with its
// discount rate, for sorts that must be materialized in memory.
func (s *Store) CategoryEntries(ctx context.Context, category string) ([]IndexEntry, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, discountIdx(category), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(zs))
	for _, z := range zs {
		entries = append(entries, IndexEntry{ID: z.Member.(string), Score: z.Score})
	}
	return entries, nil
}

// DiscountPage pages through a category ordered by discount rate.
// reversed walks the order backwards for previous-page requests.
func (s *Store) DiscountPage(ctx context.Context, category string, desc, reversed bool, cur *IndexCursor, limit int) ([]IndexEntry, error) {
	return s.rangeIndex(ctx, discountIdx(category), desc, reversed, cur, limit)
}

// CreatedPage pages through a category ordered by creation time.
func (s *Store) CreatedPage(ctx context.Context, category string, desc, reversed bool, cur *IndexCursor, limit int) ([]IndexEntry, error) {
	return s.rangeIndex(ctx, createdIdx(category), desc, reversed, cur, limit)
}

// SearchNamePrefix matches product names by case-insensitive prefix.
func (s *Store) SearchNamePrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	p := strings.ToLower(prefix)
	members, err := s.rdb.ZRangeByLex(ctx, nameIdxKey, &redis.ZRangeBy{
		Min:   "[" + p,
		Max:   "[" + p + "\xff",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if i := strings.LastIndexByte(m, '|'); i >= 0 {
			ids = append(ids, m[i+1:])
		}
	}
	return ids, nil
}

// SellerProductIDs returns the seller's product ids in stable order.
func (s *Store) SellerProductIDs(ctx context.Context, sellerID string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, sellerProductsPrefix+sellerID).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// AllProductIDs returns every product id ordered by creation time.
func (s *Store) AllProductIDs(ctx context.Context, desc bool) ([]string, error) {
	if desc {
		return s.rdb.ZRevRange(ctx, allCreatedIdxKey, 0, -1).Result()
	}
	return s.rdb.ZRange(ctx, allCreatedIdxKey, 0, -1).Result()
}

// GeoDistanceKm is the geospatial-index distance primitive between two
// stored members. ok is false when either member is absent.
func (s *Store) GeoDistanceKm(ctx context.Context, memberA, memberB string) (float64, bool, error) {
	d, err := s.rdb.GeoDist(ctx, geoKey, memberA, memberB, "km").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return d, true, nil
}

// UpsertSellerView stores a seller view document.
func (s *Store) UpsertSellerView(ctx context.Context, v domain.SellerView) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sellerKey(v.SellerID), doc, 0).Err()
}

func (s *Store) GetSellerView(ctx context.Context, id string) (*domain.SellerView, error) {
	data, err := s.rdb.Get(ctx, sellerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var v domain.SellerView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertLocationView stores a location view document and tracks it in
// the user's location set.
func (s *Store) UpsertLocationView(ctx context.Context, v domain.LocationView) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, locationKey(v.UserID, v.LocationID), doc, 0)
		pipe.SAdd(ctx, userLocSetPrefix+v.UserID, v.LocationID)
		return nil
	})
	if err != nil {
		return err
	}
	if v.IsCurrent {
		return s.SetCurrentLocationView(ctx, v.UserID, v.LocationID, v.Latitude, v.Longitude)
	}
	return nil
}

// SetCurrentLocationView flips IsCurrent to the given location on the
// view side and registers the user's position in the geo set.
func (s *Store) SetCurrentLocationView(ctx context.Context, userID, locationID string, lat, lon float64) error {
	ids, err := s.rdb.SMembers(ctx, userLocSetPrefix+userID).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		key := locationKey(userID, id)
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		var v domain.LocationView
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		want := id == locationID
		if v.IsCurrent == want {
			continue
		}
		v.IsCurrent = want
		doc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := s.rdb.Set(ctx, key, doc, 0).Err(); err != nil {
			return err
		}
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, currentLocKeyPrefix+userID, locationID, 0)
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      GeoUserMember(userID),
			Longitude: lon,
			Latitude:  lat,
		})
		return nil
	})
	return err
}

// GetCurrentLocation returns the user's current location view, or nil
// when none has been set.
func (s *Store) GetCurrentLocation(ctx context.Context, userID string) (*domain.LocationView, error) {
	locID, err := s.rdb.Get(ctx, currentLocKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	data, err := s.rdb.Get(ctx, locationKey(userID, locID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var v domain.LocationView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AddNotification prepends a notification to the user's feed, keeping
// the most recent entries only.
func (s *Store) AddNotification(ctx context.Context, n domain.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := notificationsPrefix + n.UserID
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, doc)
		pipe.LTrim(ctx, key, 0, notificationsKept-1)
		return nil
	})
	return err
}

// Notifications returns the newest notifications for a user.
func (s *Store) Notifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = notificationsKept
	}
	raws, err := s.rdb.LRange(ctx, notificationsPrefix+userID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(raws))
	for _, raw := range raws {
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
