package storage

import (
	"encoding/json"
	"time"

	"marketplace/domain"
)

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func userToEntity(u domain.User) userEntity {
	return userEntity{
		Entity:          Entity{PartitionKey: u.ID, RowKey: u.ID},
		Name:            u.Name,
		Email:           u.Email,
		LastLoginAt:     millis(u.LastLoginAt),
		LastLoginAtType: EdmInt64,
		CreatedAt:       millis(u.CreatedAt),
		CreatedAtType:   EdmInt64,
	}
}

func userFromEntity(ent userEntity) *domain.User {
	return &domain.User{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Email:       ent.Email,
		LastLoginAt: fromMillis(ent.LastLoginAt),
		CreatedAt:   fromMillis(ent.CreatedAt),
	}
}

func sellerToEntity(s domain.Seller) sellerEntity {
	return sellerEntity{
		Entity:        Entity{PartitionKey: s.ID, RowKey: s.ID},
		Name:          s.Name,
		Email:         s.Email,
		BusinessName:  s.BusinessName,
		CreatedAt:     millis(s.CreatedAt),
		CreatedAtType: EdmInt64,
	}
}

func sellerFromEntity(ent sellerEntity) *domain.Seller {
	return &domain.Seller{
		ID:           ent.RowKey,
		Name:         ent.Name,
		Email:        ent.Email,
		BusinessName: ent.BusinessName,
		CreatedAt:    fromMillis(ent.CreatedAt),
	}
}

func productToEntity(p domain.Product) productEntity {
	return productEntity{
		Entity:          Entity{PartitionKey: p.ID, RowKey: p.ID},
		SellerID:        p.SellerID,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
		DiscountRate:    p.DiscountRate,
		LocationX:       p.LocationX,
		LocationY:       p.LocationY,
		Revision:        p.Revision,
		CreatedAt:       millis(p.CreatedAt),
		CreatedAtType:   EdmInt64,
		UpdatedAt:       millis(p.UpdatedAt),
		UpdatedAtType:   EdmInt64,
	}
}

func productFromEntity(ent productEntity) *domain.Product {
	return &domain.Product{
		ID:              ent.RowKey,
		SellerID:        ent.SellerID,
		Name:            ent.Name,
		Description:     ent.Description,
		Category:        ent.Category,
		OriginalPrice:   ent.OriginalPrice,
		DiscountedPrice: ent.DiscountedPrice,
		DiscountRate:    ent.DiscountRate,
		LocationX:       ent.LocationX,
		LocationY:       ent.LocationY,
		Revision:        ent.Revision,
		CreatedAt:       fromMillis(ent.CreatedAt),
		UpdatedAt:       fromMillis(ent.UpdatedAt),
	}
}

func productUpdateToEntity(upd domain.ProductUpdate) productUpdateEntity {
	ent := productUpdateEntity{
		Entity:          Entity{PartitionKey: upd.ID, RowKey: upd.ID},
		Name:            upd.Name,
		Description:     upd.Description,
		Category:        upd.Category,
		OriginalPrice:   upd.OriginalPrice,
		DiscountedPrice: upd.DiscountedPrice,
		DiscountRate:    upd.DiscountRate,
		LocationX:       upd.LocationX,
		LocationY:       upd.LocationY,
	}
	if upd.Revision > 0 {
		ent.Revision = &upd.Revision
	}
	if !upd.UpdatedAt.IsZero() {
		ts := millis(upd.UpdatedAt)
		tsType := EdmInt64
		ent.UpdatedAt = &ts
		ent.UpdatedAtType = &tsType
	}
	return ent
}

func inventoryToEntity(inv domain.Inventory) inventoryEntity {
	return inventoryEntity{
		Entity:        Entity{PartitionKey: inv.ProductID, RowKey: inv.ProductID},
		SellerID:      inv.SellerID,
		Quantity:      inv.Quantity,
		Revision:      inv.Revision,
		UpdatedAt:     millis(inv.UpdatedAt),
		UpdatedAtType: EdmInt64,
	}
}

func inventoryFromEntity(ent inventoryEntity) *domain.Inventory {
	return &domain.Inventory{
		ProductID: ent.RowKey,
		SellerID:  ent.SellerID,
		Quantity:  ent.Quantity,
		Revision:  ent.Revision,
		UpdatedAt: fromMillis(ent.UpdatedAt),
	}
}

func orderToEntity(o domain.Order) (orderEntity, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return orderEntity{}, err
	}
	return orderEntity{
		Entity:        Entity{PartitionKey: o.ID, RowKey: o.ID},
		BuyerID:       o.BuyerID,
		Items:         string(items),
		Total:         o.Total,
		CreatedAt:     millis(o.CreatedAt),
		CreatedAtType: EdmInt64,
	}, nil
}

func orderFromEntity(ent orderEntity) (*domain.Order, error) {
	var items []domain.OrderItem
	if ent.Items != "" {
		if err := json.Unmarshal([]byte(ent.Items), &items); err != nil {
			return nil, err
		}
	}
	return &domain.Order{
		ID:        ent.RowKey,
		BuyerID:   ent.BuyerID,
		Items:     items,
		Total:     ent.Total,
		CreatedAt: fromMillis(ent.CreatedAt),
	}, nil
}

func locationToEntity(loc domain.UserLocation) locationEntity {
	return locationEntity{
		Entity:        Entity{PartitionKey: loc.UserID, RowKey: loc.ID},
		Alias:         loc.Alias,
		Address:       loc.Address,
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		IsCurrent:     loc.IsCurrent,
		Revision:      loc.Revision,
		CreatedAt:     millis(loc.CreatedAt),
		CreatedAtType: EdmInt64,
	}
}

func locationFromEntity(ent locationEntity) *domain.UserLocation {
	return &domain.UserLocation{
		ID:        ent.RowKey,
		UserID:    ent.PartitionKey,
		Alias:     ent.Alias,
		Address:   ent.Address,
		Latitude:  ent.Latitude,
		Longitude: ent.Longitude,
		IsCurrent: ent.IsCurrent,
		Revision:  ent.Revision,
		CreatedAt: fromMillis(ent.CreatedAt),
	}
}
