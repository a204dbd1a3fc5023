// Package cartstore keeps session carts in a key-value store keyed by the
// opaque session token.
package cartstore

import (
	"context"
	"errors"
	"sort"
)

var ErrNoSession = errors.New("no session token")

// Cart maps product id to a positive quantity. SupplierID and SupplierName
// are set by the first insert and cleared when the cart empties.
type Cart struct {
	SupplierID   uint         `json:"supplier_id,omitempty"`
	SupplierName string       `json:"supplier_name,omitempty"`
	Items        map[uint]int `json:"items"`
}

func NewCart() *Cart {
	return &Cart{Items: map[uint]int{}}
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

// Count is the sum of quantities.
func (c *Cart) Count() int {
	n := 0
	for _, q := range c.Items {
		n += q
	}
	return n
}

// ProductIDs returns the ids in ascending order.
func (c *Cart) ProductIDs() []uint {
	ids := make([]uint, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Cart) Remove(productID uint) {
	delete(c.Items, productID)
	if c.Empty() {
		c.Reset()
	}
}

func (c *Cart) Reset() {
	c.SupplierID = 0
	c.SupplierName = ""
	c.Items = map[uint]int{}
}

type Store interface {
	// Load returns an empty cart when nothing is stored for token.
	Load(ctx context.Context, token string) (*Cart, error)
	// Save stores the cart and renews its expiry; an empty cart is deleted.
	Save(ctx context.Context, token string, cart *Cart) error
	Delete(ctx context.Context, token string) error
}
