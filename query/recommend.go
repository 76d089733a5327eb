package query

import (
	"context"
	"math/rand"
	"sort"

	"marketplace/domain"
)

// recommendLimit caps the recommendation list.
const recommendLimit = 7

func defaultShuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// Recommended builds a seller-diverse product list for an existing
// order: the order's sellers are shuffled, then products are pulled
// seller by seller until the quota is met. Orders without items fall
// back to a random sample across the catalog. Either way the result is
// sorted by creation time descending.
func (e *Engine) Recommended(ctx context.Context, orderID string) ([]domain.ProductView, error) {
	o, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}

	var ids []string
	if len(o.Items) == 0 {
		ids, err = e.randomSample(ctx)
	} else {
		ids, err = e.sellerDiverseSample(ctx, o)
	}
	if err != nil {
		return nil, err
	}

	views, err := e.views.GetProductViews(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ProductID < views[j].ProductID
	})
	return views, nil
}

func (e *Engine) sellerDiverseSample(ctx context.Context, o *domain.Order) ([]string, error) {
	seen := map[string]bool{}
	sellers := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if it.SellerID == "" || seen[it.SellerID] {
			continue
		}
		seen[it.SellerID] = true
		sellers = append(sellers, it.SellerID)
	}
	e.shuffle(len(sellers), func(i, j int) { sellers[i], sellers[j] = sellers[j], sellers[i] })

	picked := map[string]bool{}
	ids := make([]string, 0, recommendLimit)
	for _, sellerID := range sellers {
		if len(ids) == recommendLimit {
			break
		}
		productIDs, err := e.views.SellerProductIDs(ctx, sellerID)
		if err != nil {
			e.logger.WithError(err).WithField("sellerId", sellerID).Warn("recommendation seller lookup failed")
			continue
		}
		for _, id := range productIDs {
			if len(ids) == recommendLimit {
				break
			}
			if picked[id] {
				continue
			}
			picked[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return e.randomSample(ctx)
	}
	return ids, nil
}

func (e *Engine) randomSample(ctx context.Context) ([]string, error) {
	ids, err := e.views.AllProductIDs(ctx, true)
	if err != nil {
		return nil, err
	}
	e.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > recommendLimit {
		ids = ids[:recommendLimit]
	}
	return ids, nil
}
