// Package query serves ranked, paginated reads against the redis views.
// It never touches the write store except to resolve an order for the
// recommendation query.
package query

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"marketplace/cache"
	"marketplace/domain"
	"marketplace/geo"
	"marketplace/readmodel"
)

const (
	SortDiscountRate          = "discountRate"
	SortDistance              = "distance"
	SortDistanceDiscountScore = "distanceDiscountScore"
	SortCreatedAt             = "createdAt"

	defaultLimit = 10
	maxLimit     = 100

	searchTTL   = 30 * time.Second
	locationTTL = 30 * time.Second
	distanceTTL = 5 * time.Minute
)

// ViewStore is the read-model slice the engine consumes.
type ViewStore interface {
	GetProductView(ctx context.Context, id string) (*domain.ProductView, error)
	GetProductViews(ctx context.Context, ids []string) ([]domain.ProductView, error)
	DiscountPage(ctx context.Context, category string, desc, reversed bool, cur *readmodel.IndexCursor, limit int) ([]readmodel.IndexEntry, error)
	CreatedPage(ctx context.Context, category string, desc, reversed bool, cur *readmodel.IndexCursor, limit int) ([]readmodel.IndexEntry, error)
	CategoryEntries(ctx context.Context, category string) ([]readmodel.IndexEntry, error)
	AllProductIDs(ctx context.Context, desc bool) ([]string, error)
	SellerProductIDs(ctx context.Context, sellerID string) ([]string, error)
	GetCurrentLocation(ctx context.Context, userID string) (*domain.LocationView, error)
}

// NameSearcher is the fuzzy-search collaborator behind /products/search.
type NameSearcher interface {
	SearchNamePrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}

// OrderGetter resolves an order from the write store for the
// recommendation query.
type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type Engine struct {
	views    ViewStore
	searcher NameSearcher
	orders   OrderGetter
	cache    *cache.Cache
	logger   *log.Logger
	basePath string
	// shuffle permutes n elements for the recommendation query;
	// injectable so tests stay deterministic.
	shuffle func(n int, swap func(i, j int))
}

func NewEngine(views ViewStore, searcher NameSearcher, orders OrderGetter, c *cache.Cache, logger *log.Logger) *Engine {
	return &Engine{
		views:    views,
		searcher: searcher,
		orders:   orders,
		cache:    c,
		logger:   logger,
		basePath: "/api/products",
		shuffle:  defaultShuffle,
	}
}

// ProductQuery carries the parsed query parameters of a product search.
type ProductQuery struct {
	Category          string
	SortBy            string
	Order             string
	Limit             int
	ExclusiveStartKey string
	PreviousPageKey   string
	Latitude          *float64
	Longitude         *float64
}

func (q *ProductQuery) normalize() error {
	if q.Category == "" {
		return domain.Invalid("category", "must not be empty")
	}
	if q.SortBy == "" {
		q.SortBy = SortDiscountRate
	}
	switch q.SortBy {
	case SortDiscountRate, SortDistance, SortDistanceDiscountScore, SortCreatedAt:
	default:
		return domain.Invalid("sortBy", "unsupported sort key")
	}
	if q.Order == "" {
		q.Order = "desc"
	}
	if q.Order != "asc" && q.Order != "desc" {
		return domain.Invalid("order", "must be asc or desc")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.SortBy == SortDistance || q.SortBy == SortDistanceDiscountScore {
		if q.Latitude == nil || q.Longitude == nil {
			return domain.Invalid("latitude", "required for distance sorts")
		}
	}
	return nil
}

// Page is the pagination envelope returned by product queries. The URL
// fields are complete links or null when no further page exists.
type Page struct {
	Items             []domain.ProductView `json:"items"`
	Count             int                  `json:"count"`
	LastEvaluatedURL  *string              `json:"lastEvaluatedUrl"`
	FirstEvaluatedURL *string              `json:"firstEvaluatedUrl"`
	PrevPageURL       *string              `json:"prevPageUrl"`
}

// Products answers a ranked category query. Reversing via
// PreviousPageKey runs the inverted query and flips the page so the
// caller always receives items in the requested order.
func (e *Engine) Products(ctx context.Context, q ProductQuery) (*Page, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	if q.PreviousPageKey != "" {
		return e.previousPage(ctx, q)
	}

	cur, err := decodeCursor(q.ExclusiveStartKey)
	if err != nil {
		return nil, err
	}
	items, hasNext, err := e.fetch(ctx, q, cur, q.Order == "desc", false)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: items, Count: len(items)}
	if len(items) > 0 {
		if hasNext {
			page.LastEvaluatedURL = e.pageURL(q, encodeCursor(e.cursorFor(q, items[len(items)-1])), "")
		}
		first := encodeCursor(e.cursorFor(q, items[0]))
		page.FirstEvaluatedURL = e.pageURL(q, "", first)
		if q.ExclusiveStartKey != "" {
			page.PrevPageURL = page.FirstEvaluatedURL
		}
	}
	return page, nil
}

// previousPage walks the index in the opposite direction starting from
// the first row of the page the caller is on, then reverses the result.
func (e *Engine) previousPage(ctx context.Context, q ProductQuery) (*Page, error) {
	cur, err := decodeCursor(q.PreviousPageKey)
	if err != nil {
		return nil, err
	}
	items, hasPrev, err := e.fetch(ctx, q, cur, q.Order != "desc", true)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	page := &Page{Items: items, Count: len(items)}
	if len(items) > 0 {
		page.LastEvaluatedURL = e.pageURL(q, encodeCursor(e.cursorFor(q, items[len(items)-1])), "")
		if hasPrev {
			first := encodeCursor(e.cursorFor(q, items[0]))
			page.FirstEvaluatedURL = e.pageURL(q, "", first)
			page.PrevPageURL = page.FirstEvaluatedURL
		}
	}
	return page, nil
}

// fetch returns up to q.Limit views ordered by the active sort key with
// the productId-ascending tie-break, plus whether more rows follow.
// reversed walks that total order backwards, which flips the tie-break
// as well as the score direction.
func (e *Engine) fetch(ctx context.Context, q ProductQuery, cur *readmodel.IndexCursor, desc, reversed bool) ([]domain.ProductView, bool, error) {
	switch q.SortBy {
	case SortDiscountRate, SortCreatedAt:
		return e.fetchIndexed(ctx, q, cur, desc, reversed)
	default:
		return e.fetchDerived(ctx, q, cur, desc, reversed)
	}
}

func (e *Engine) fetchIndexed(ctx context.Context, q ProductQuery, cur *readmodel.IndexCursor, desc, reversed bool) ([]domain.ProductView, bool, error) {
	var (
		entries []readmodel.IndexEntry
		err     error
	)
	if q.SortBy == SortDiscountRate {
		entries, err = e.views.DiscountPage(ctx, q.Category, desc, reversed, cur, q.Limit+1)
	} else {
		entries, err = e.views.CreatedPage(ctx, q.Category, desc, reversed, cur, q.Limit+1)
	}
	if err != nil {
		return nil, false, err
	}
	hasNext := len(entries) > q.Limit
	if hasNext {
		entries = entries[:q.Limit]
	}

	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.ID
	}
	views, err := e.views.GetProductViews(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	if q.Latitude != nil && q.Longitude != nil {
		for i := range views {
			e.annotateDistance(&views[i], *q.Latitude, *q.Longitude)
		}
	}
	return views, hasNext, nil
}

// fetchDerived handles the per-caller sort keys. The whole category is
// materialized, ranked in memory, and the cursor applied as a strict
// filter; these keys cannot be pre-indexed because they depend on the
// caller's coordinates.
func (e *Engine) fetchDerived(ctx context.Context, q ProductQuery, cur *readmodel.IndexCursor, desc, reversed bool) ([]domain.ProductView, bool, error) {
	entries, err := e.views.CategoryEntries(ctx, q.Category)
	if err != nil {
		return nil, false, err
	}
	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.ID
	}
	views, err := e.views.GetProductViews(ctx, ids)
	if err != nil {
		return nil, false, err
	}

	type ranked struct {
		view domain.ProductView
		key  float64
	}
	rankedViews := make([]ranked, 0, len(views))
	for _, v := range views {
		e.annotateDistance(&v, *q.Latitude, *q.Longitude)
		key := *v.Distance
		if q.SortBy == SortDistanceDiscountScore {
			key = *v.DistanceDiscountScore
		}
		rankedViews = append(rankedViews, ranked{view: v, key: key})
	}

	sort.SliceStable(rankedViews, func(i, j int) bool {
		a, b := rankedViews[i], rankedViews[j]
		if a.key != b.key {
			if desc {
				return a.key > b.key
			}
			return a.key < b.key
		}
		if reversed {
			return a.view.ProductID > b.view.ProductID
		}
		return a.view.ProductID < b.view.ProductID
	})

	out := make([]domain.ProductView, 0, q.Limit+1)
	for _, r := range rankedViews {
		if cur != nil && !afterCursor(r.key, r.view.ProductID, cur, desc, reversed) {
			continue
		}
		out = append(out, r.view)
		if len(out) > q.Limit {
			break
		}
	}
	hasNext := len(out) > q.Limit
	if hasNext {
		out = out[:q.Limit]
	}
	return out, hasNext, nil
}

// afterCursor reports whether (key, id) sorts strictly after the cursor
// position in the active order. A reversed scan flips the tie-break the
// same way desc flips the score direction.
func afterCursor(key float64, id string, cur *readmodel.IndexCursor, desc, reversed bool) bool {
	if key == cur.Score {
		if reversed {
			return id < cur.ID
		}
		return id > cur.ID
	}
	if desc {
		return key < cur.Score
	}
	return key > cur.Score
}

// cursorFor extracts the pagination key of a returned view.
func (e *Engine) cursorFor(q ProductQuery, v domain.ProductView) readmodel.IndexCursor {
	var score float64
	switch q.SortBy {
	case SortDiscountRate:
		score = float64(v.DiscountRate)
	case SortCreatedAt:
		score = float64(v.CreatedAt.UnixMilli())
	case SortDistance:
		score = *v.Distance
	case SortDistanceDiscountScore:
		score = *v.DistanceDiscountScore
	}
	return readmodel.IndexCursor{Score: score, ID: v.ProductID}
}

// annotateDistance fills the derived per-request fields. The distance
// itself is memoized per (product, rounded coordinates) so bursts of
// nearby queries skip the ellipsoid math.
func (e *Engine) annotateDistance(v *domain.ProductView, lat, lon float64) {
	key := fmt.Sprintf("dist:%s:%.3f:%.3f", v.ProductID, lat, lon)
	var d float64
	if hit, ok := e.cache.Get(key); ok {
		d = hit.(float64)
	} else {
		d = geo.DistanceKm(lat, lon, v.LocationY, v.LocationX)
		e.cache.Set(key, d, distanceTTL)
	}
	score := domain.DistanceDiscountScore(d, v.DiscountRate)
	v.Distance = &d
	v.DistanceDiscountScore = &score
}

func (e *Engine) pageURL(q ProductQuery, nextCursor, prevCursor string) *string {
	vals := url.Values{}
	vals.Set("category", q.Category)
	vals.Set("sortBy", q.SortBy)
	vals.Set("order", q.Order)
	vals.Set("limit", strconv.Itoa(q.Limit))
	if q.Latitude != nil {
		vals.Set("latitude", strconv.FormatFloat(*q.Latitude, 'f', -1, 64))
	}
	if q.Longitude != nil {
		vals.Set("longitude", strconv.FormatFloat(*q.Longitude, 'f', -1, 64))
	}
	if nextCursor != "" {
		vals.Set("exclusiveStartKey", nextCursor)
	}
	if prevCursor != "" {
		vals.Set("previousPageKey", prevCursor)
	}
	u := e.basePath + "?" + vals.Encode()
	return &u
}

// Product returns a single view by id.
func (e *Engine) Product(ctx context.Context, id string) (*domain.ProductView, error) {
	v, err := e.views.GetProductView(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

// SearchByName serves prefix search with a short result-cache TTL.
// Empty result sets are cached too so repeated misses stay cheap.
func (e *Engine) SearchByName(ctx context.Context, term string, limit int) ([]domain.ProductView, error) {
	if term == "" {
		return nil, domain.Invalid("name", "must not be empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	key := fmt.Sprintf("search:%s:%d", term, limit)
	if hit, ok := e.cache.Get(key); ok {
		if hit == nil {
			return nil, nil
		}
		return hit.([]domain.ProductView), nil
	}

	ids, err := e.searcher.SearchNamePrefix(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		e.cache.Set(key, nil, searchTTL)
		return nil, nil
	}
	views, err := e.views.GetProductViews(ctx, ids)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, views, searchTTL)
	return views, nil
}

// CurrentLocation resolves the user's current location view through the
// result cache. A remembered miss returns ErrNotFound without touching
// redis.
func (e *Engine) CurrentLocation(ctx context.Context, userID string) (*domain.LocationView, error) {
	key := "currentloc:" + userID
	if hit, ok := e.cache.Get(key); ok {
		if hit == nil {
			return nil, domain.ErrNotFound
		}
		loc := hit.(domain.LocationView)
		return &loc, nil
	}

	loc, err := e.views.GetCurrentLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		e.cache.Set(key, nil, locationTTL)
		return nil, domain.ErrNotFound
	}
	e.cache.Set(key, *loc, locationTTL)
	return loc, nil
}
