package domain

import "time"

// ProductView is the denormalized, query-ready projection of a product.
// It merges fields from product and inventory events over time and is
// never the system of record.
type ProductView struct {
	ProductID       string    `json:"productId"`
	SellerID        string    `json:"sellerId"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category"`
	OriginalPrice   float64   `json:"originalPrice"`
	DiscountedPrice float64   `json:"discountedPrice"`
	DiscountRate    int       `json:"discountRate"`
	AvailableStock  int       `json:"availableStock"`
	LocationX       float64   `json:"locationX"`
	LocationY       float64   `json:"locationY"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Derived per request when the caller supplies coordinates.
	Distance              *float64 `json:"distance,omitempty"`
	DistanceDiscountScore *float64 `json:"distanceDiscountScore,omitempty"`
}

// ProductViewPatch is a partial-field merge: nil fields are left
// untouched on the stored view.
type ProductViewPatch struct {
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Category        *string    `json:"category,omitempty"`
	OriginalPrice   *float64   `json:"originalPrice,omitempty"`
	DiscountedPrice *float64   `json:"discountedPrice,omitempty"`
	DiscountRate    *int       `json:"discountRate,omitempty"`
	AvailableStock  *int       `json:"availableStock,omitempty"`
	LocationX       *float64   `json:"locationX,omitempty"`
	LocationY       *float64   `json:"locationY,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

type SellerView struct {
	SellerID     string    `json:"sellerId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	BusinessName string    `json:"businessName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LocationView struct {
	LocationID string  `json:"locationId"`
	UserID     string  `json:"userId"`
	Alias      string  `json:"alias,omitempty"`
	Address    string  `json:"address,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	IsCurrent  bool    `json:"isCurrent"`
}

type Notification struct {
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
