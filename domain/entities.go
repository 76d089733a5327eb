package domain

import "time"

// Write-side entities. Command handlers are the only writers.

type User struct {
	ID          string
	Name        string
	Email       string
	LastLoginAt time.Time
	CreatedAt   time.Time
}

type Seller struct {
	ID           string
	Name         string
	Email        string
	BusinessName string
	CreatedAt    time.Time
}

type Product struct {
	ID              string
	SellerID        string
	Name            string
	Description     string
	Category        string
	OriginalPrice   float64
	DiscountedPrice float64
	DiscountRate    int
	LocationX       float64
	LocationY       float64
	// Revision counts write-side updates and feeds the advisory event
	// version field.
	Revision  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductUpdate carries a partial write-side update for a product.
type ProductUpdate struct {
	ID              string
	Name            *string
	Description     *string
	Category        *string
	OriginalPrice   *float64
	DiscountedPrice *float64
	DiscountRate    *int
	LocationX       *float64
	LocationY       *float64
	Revision        int
	UpdatedAt       time.Time
}

type Inventory struct {
	ProductID string
	SellerID  string
	Quantity  int
	Revision  int
	UpdatedAt time.Time
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	SellerID  string  `json:"sellerId"`
	Count     int     `json:"count"`
	UnitPrice float64 `json:"unitPrice"`
}

type Order struct {
	ID        string
	BuyerID   string
	Items     []OrderItem
	Total     float64
	CreatedAt time.Time
}

type UserLocation struct {
	ID        string
	UserID    string
	Alias     string
	Address   string
	Latitude  float64
	Longitude float64
	IsCurrent bool
	Revision  int
	CreatedAt time.Time
}
