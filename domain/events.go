package domain

const (
	UserRegistered      = "user-registered"
	UserLoggedIn        = "user-logged-in"
	SellerRegistered    = "seller-registered"
	ProductCreated      = "product-created"
	ProductUpdated      = "product-updated"
	ProductDeleted      = "product-deleted"
	InventoryCreated    = "inventory-created"
	InventoryUpdated    = "inventory-updated"
	InventoryDeleted    = "inventory-deleted"
	OrderCreated        = "order-created"
	LocationAdded       = "location-added"
	CurrentLocationSet  = "current-location-set"
	NotificationCreated = "notification-created"
)

type UserRegisteredData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserLoggedInData struct {
	Email      string `json:"email"`
	LoggedInAt int64  `json:"loggedInAt"`
}

type SellerRegisteredData struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
}

type ProductCreatedData struct {
	SellerID        string  `json:"sellerId"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	DiscountRate    int     `json:"discountRate"`
	LocationX       float64 `json:"locationX"`
	LocationY       float64 `json:"locationY"`
}

// ProductUpdatedData carries a partial update: nil fields were not part
// of the change and must be left untouched by projectors.
type ProductUpdatedData struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Category        *string  `json:"category"`
	OriginalPrice   *float64 `json:"originalPrice"`
	DiscountedPrice *float64 `json:"discountedPrice"`
	DiscountRate    *int     `json:"discountRate"`
	LocationX       *float64 `json:"locationX"`
	LocationY       *float64 `json:"locationY"`
}

type InventoryCreatedData struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Quantity  int    `json:"quantity"`
}

type InventoryUpdatedData struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type InventoryDeletedData struct {
	ProductID string `json:"productId"`
}

type OrderCreatedData struct {
	BuyerID string      `json:"buyerId"`
	Items   []OrderItem `json:"items"`
	Total   float64     `json:"total"`
}

type LocationAddedData struct {
	UserID    string  `json:"userId"`
	Alias     string  `json:"alias"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsCurrent bool    `json:"isCurrent"`
}

type CurrentLocationSetData struct {
	UserID     string  `json:"userId"`
	LocationID string  `json:"locationId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}
