package domain

import "github.com/bytedance/sonic"

// Command type names. Each type is consumed by exactly one handler.
const (
	CmdRegisterUser       = "register-user"
	CmdLoginUser          = "login-user"
	CmdRegisterSeller     = "register-seller"
	CmdCreateProduct      = "create-product"
	CmdUpdateProduct      = "update-product"
	CmdDeleteProduct      = "delete-product"
	CmdCreateInventory    = "create-inventory"
	CmdUpdateInventory    = "update-inventory"
	CmdDeleteInventory    = "delete-inventory"
	CmdCreateOrder        = "create-order"
	CmdAddLocation        = "add-location"
	CmdSetCurrentLocation = "set-current-location"
)

// Command represents a write request for the domain model.
type Command struct {
	// ID carries the idempotency key once the command enters the core.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// CommandEnvelope wraps a command with the authenticated actor issuing it.
type CommandEnvelope struct {
	ActorID string  `json:"actorId"`
	Command Command `json:"command"`
}

type RegisterUserData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginUserData struct {
	Email string `json:"email"`
}

type RegisterSellerData struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
}

type CreateProductData struct {
	SellerID        string  `json:"sellerId"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	Quantity        int     `json:"quantity"`
	LocationX       float64 `json:"locationX"`
	LocationY       float64 `json:"locationY"`
}

type UpdateProductData struct {
	ProductID       string   `json:"productId"`
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Category        *string  `json:"category"`
	OriginalPrice   *float64 `json:"originalPrice"`
	DiscountedPrice *float64 `json:"discountedPrice"`
	Quantity        *int     `json:"quantity"`
	LocationX       *float64 `json:"locationX"`
	LocationY       *float64 `json:"locationY"`
}

type DeleteProductData struct {
	ProductID string `json:"productId"`
}

type CreateInventoryData struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Quantity  int    `json:"quantity"`
}

type UpdateInventoryData struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type DeleteInventoryData struct {
	ProductID string `json:"productId"`
}

type CreateOrderData struct {
	Items []OrderItem `json:"items"`
}

type AddLocationData struct {
	Alias     string  `json:"alias"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsCurrent bool    `json:"isCurrent"`
}

type SetCurrentLocationData struct {
	LocationID string `json:"locationId"`
}
