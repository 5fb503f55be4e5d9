package stock

import "time"

const (
	ReasonManual    = "manual_update"
	ReasonSale      = "sale"
	ReasonCancelled = "order_cancelled"
)

// Record is the stock level of one coffee item.
type Record struct {
	CoffeeID  string    `json:"coffee_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	MinLevel  int       `json:"min_level"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord validates the initial level and derives availability.
func NewRecord(coffeeID, name string, quantity, minLevel int) (*Record, error) {
	if coffeeID == "" {
		return nil, errInvalid("coffee id is required")
	}
	if quantity < 0 || minLevel < 0 {
		return nil, errInvalid("quantity and minimum level must not be negative")
	}
	r := &Record{CoffeeID: coffeeID, Name: name, Quantity: quantity, MinLevel: minLevel}
	r.Available = r.Quantity > r.MinLevel
	return r, nil
}

// apply adds delta, clamping the result at zero, and recomputes availability.
func (r *Record) apply(delta int) (oldQty, newQty int) {
	oldQty = r.Quantity
	newQty = oldQty + delta
	if newQty < 0 {
		newQty = 0
	}
	r.Quantity = newQty
	r.Available = newQty > r.MinLevel
	return oldQty, newQty
}

// UpdateEntry is one immutable audit row of the stock ledger.
type UpdateEntry struct {
	ID        string    `json:"id"`
	CoffeeID  string    `json:"coffee_id"`
	CafeID    string    `json:"cafe_id,omitempty"`
	Delta     int       `json:"quantity_change"`
	NewLevel  int       `json:"new_stock_level"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EntryFilter struct {
	CoffeeID string
	CafeID   string
	Limit    int
}

// Adjustment is a signed manual stock change.
type Adjustment struct {
	CoffeeID string
	CafeID   string
	Delta    int
	Reason   string
	Actor    string
}

type AdjustmentResult struct {
	CoffeeID    string      `json:"coffee_id"`
	Name        string      `json:"coffee_name"`
	OldQuantity int         `json:"old_quantity"`
	NewQuantity int         `json:"new_quantity"`
	Delta       int         `json:"quantity_change"`
	Available   bool        `json:"available"`
	Entry       UpdateEntry `json:"stock_update"`
}
