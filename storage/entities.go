package storage

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt64   = "Edm.Int64"
	EdmBoolean = "Edm.Boolean"
)

type userEntity struct {
	Entity
	Name            string `json:"Name"`
	Email           string `json:"Email"`
	LastLoginAt     int64  `json:"LastLoginAt,string"`
	LastLoginAtType string `json:"LastLoginAt@odata.type"`
	CreatedAt       int64  `json:"CreatedAt,string"`
	CreatedAtType   string `json:"CreatedAt@odata.type"`
}

type sellerEntity struct {
	Entity
	Name          string `json:"Name"`
	Email         string `json:"Email"`
	BusinessName  string `json:"BusinessName"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

type productEntity struct {
	Entity
	SellerID        string  `json:"SellerId"`
	Name            string  `json:"Name"`
	Description     string  `json:"Description"`
	Category        string  `json:"Category"`
	OriginalPrice   float64 `json:"OriginalPrice"`
	DiscountedPrice float64 `json:"DiscountedPrice"`
	DiscountRate    int     `json:"DiscountRate"`
	LocationX       float64 `json:"LocationX"`
	LocationY       float64 `json:"LocationY"`
	Revision        int     `json:"Revision"`
	CreatedAt       int64   `json:"CreatedAt,string"`
	CreatedAtType   string  `json:"CreatedAt@odata.type"`
	UpdatedAt       int64   `json:"UpdatedAt,string"`
	UpdatedAtType   string  `json:"UpdatedAt@odata.type"`
}

// productUpdateEntity carries a partial merge for a product row.
type productUpdateEntity struct {
	Entity
	Name            *string  `json:"Name,omitempty"`
	Description     *string  `json:"Description,omitempty"`
	Category        *string  `json:"Category,omitempty"`
	OriginalPrice   *float64 `json:"OriginalPrice,omitempty"`
	DiscountedPrice *float64 `json:"DiscountedPrice,omitempty"`
	DiscountRate    *int     `json:"DiscountRate,omitempty"`
	LocationX       *float64 `json:"LocationX,omitempty"`
	LocationY       *float64 `json:"LocationY,omitempty"`
	Revision        *int     `json:"Revision,omitempty"`
	UpdatedAt       *int64   `json:"UpdatedAt,omitempty,string"`
	UpdatedAtType   *string  `json:"UpdatedAt@odata.type,omitempty"`
}

type inventoryEntity struct {
	Entity
	SellerID      string `json:"SellerId"`
	Quantity      int    `json:"Quantity"`
	Revision      int    `json:"Revision"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

type orderEntity struct {
	Entity
	BuyerID       string  `json:"BuyerId"`
	Items         string  `json:"Items"` // JSON-encoded []domain.OrderItem
	Total         float64 `json:"Total"`
	CreatedAt     int64   `json:"CreatedAt,string"`
	CreatedAtType string  `json:"CreatedAt@odata.type"`
}

type locationEntity struct {
	Entity
	Alias         string  `json:"Alias"`
	Address       string  `json:"Address"`
	Latitude      float64 `json:"Latitude"`
	Longitude     float64 `json:"Longitude"`
	IsCurrent     bool    `json:"IsCurrent"`
	Revision      int     `json:"Revision"`
	CreatedAt     int64   `json:"CreatedAt,string"`
	CreatedAtType string  `json:"CreatedAt@odata.type"`
}

type eventEntity struct {
	Entity
	EventID       string `json:"EventId"`
	AggregateType string `json:"AggregateType"`
	EventType     string `json:"EventType"`
	Data          string `json:"Data"`
	Version       int    `json:"Version"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}
