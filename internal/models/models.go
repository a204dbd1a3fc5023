package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// User is a customer, a supplier or an admin. Approved only gates suppliers,
// SuperAdmin only means something for admins.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name         string    `gorm:"not null"                   json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"       json:"email"`
	PasswordHash string    `gorm:"not null"                   json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null"  json:"role"`
	Approved     bool      `gorm:"not null;default:false"     json:"approved"`
	SuperAdmin   bool      `gorm:"not null;default:false"     json:"super_admin"`
	CreatedAt    time.Time `gorm:"not null"                   json:"created_at"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"        json:"id"`
	SupplierID  uint            `gorm:"index;not null"                  json:"supplier_id"`
	Name        string          `gorm:"not null"                        json:"name"`
	Description string          `gorm:"not null"                        json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null"     json:"price"`
	Image       *string         `json:"image,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;index"                  json:"created_at"`
}

// Order is immutable after checkout except for Status.
type Order struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	CustomerID      uint            `gorm:"index;not null"                    json:"customer_id"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null"       json:"total"`
	Status          OrderStatus     `gorm:"type:varchar(16);not null;index"   json:"status"`
	CustomerName    string          `gorm:"not null"                          json:"customer_name"`
	Email           string          `gorm:"not null"                          json:"email"`
	DeliveryAddress string          `gorm:"not null"                          json:"delivery_address"`
	Phone           string          `gorm:"not null"                          json:"phone"`
	Note            string          `gorm:"type:varchar(500)"                 json:"note,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;index"                    json:"created_at"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE"       json:"items"`
}

// OrderItem copies the unit price at checkout so later catalog edits never
// touch historical orders.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	OrderID     uint            `gorm:"index;not null"                    json:"order_id"`
	ProductID   uint            `gorm:"not null"                          json:"product_id"`
	SupplierID  uint            `gorm:"index;not null"                    json:"supplier_id"`
	ProductName string          `gorm:"not null"                          json:"product_name"`
	Quantity    int             `gorm:"not null;check:quantity>0"         json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(10,2);not null"       json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// RefreshToken is one login session. JTI doubles as the session token that
// keys the cart.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	Token     string    `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uint      `gorm:"index;not null"        json:"user_id"`
	JTI       string    `gorm:"uniqueIndex;not null"  json:"jti"`
	ExpiresAt time.Time `gorm:"not null"              json:"expires_at"`
	Revoked   bool      `gorm:"default:false"         json:"revoked"`
}

func All() []any {
	return []any{&User{}, &Product{}, &Order{}, &OrderItem{}, &RefreshToken{}}
}

// ProductView is a product joined with its supplier, as the catalog serves it.
type ProductView struct {
	ID               uint            `json:"id"`
	SupplierID       uint            `json:"supplier_id"`
	SupplierName     string          `json:"supplier_name"`
	SupplierApproved bool            `json:"-"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Image            *string         `json:"image,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SupplierRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type UserStats struct {
	TotalUsers        int64 `json:"total_users"`
	Customers         int64 `json:"customers"`
	ApprovedSuppliers int64 `json:"approved_suppliers"`
	PendingSuppliers  int64 `json:"pending_suppliers"`
	Admins            int64 `json:"admins"`
}
