package cart

import "errors"

const AggregateType = "Cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
)

// Snapshot is display data copied from the catalog when the item was added.
type Snapshot struct {
	Name  string `json:"name,omitempty"`
	Price int64  `json:"price"`
	Image string `json:"image,omitempty"`
}

type LineItem struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
}

// Cart is an ordered list of line items with derived totals. Insertion order
// is display order. The methods below never modify the receiver.
type Cart struct {
	Items         []LineItem `json:"items"`
	TotalQuantity int        `json:"totalQuantity"`
	TotalPrice    int64      `json:"totalPrice"`
}

// Totals sums quantities over all lines and price times quantity over the
// lines that carry a price snapshot.
func Totals(items []LineItem) (quantity int, price int64) {
	for _, item := range items {
		quantity += item.Quantity
		if item.Snapshot != nil {
			price += item.Snapshot.Price * int64(item.Quantity)
		}
	}
	return quantity, price
}

func clamp(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}

func build(items []LineItem) Cart {
	for i := range items {
		items[i].Quantity = clamp(items[i].Quantity)
	}
	quantity, price := Totals(items)
	return Cart{Items: items, TotalQuantity: quantity, TotalPrice: price}
}

func (c Cart) items() []LineItem {
	out := make([]LineItem, len(c.Items))
	copy(out, c.Items)
	return out
}

func (c Cart) index(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Find returns the line for productID.
func (c Cart) Find(productID string) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// Add merges quantity into the existing line for the product, refreshing its
// snapshot when one is supplied, or appends a new line.
func (c Cart) Add(item LineItem, quantity int) Cart {
	items := c.items()
	if i := c.index(item.ProductID); i >= 0 {
		items[i].Quantity += quantity
		if item.Snapshot != nil {
			items[i].Snapshot = item.Snapshot
		}
		return build(items)
	}
	item.Quantity = quantity
	return build(append(items, item))
}

func (c Cart) Remove(productID string) Cart {
	items := make([]LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	return build(items)
}

func (c Cart) Increment(productID string) Cart {
	return c.adjust(productID, 1)
}

// Decrement never takes a line below one; removal is explicit.
func (c Cart) Decrement(productID string) Cart {
	return c.adjust(productID, -1)
}

func (c Cart) adjust(productID string, delta int) Cart {
	items := c.items()
	if i := c.index(productID); i >= 0 {
		items[i].Quantity += delta
	}
	return build(items)
}

// withoutAdded takes back quantity units added to productID. A line that did
// not exist before the add is dropped once nothing added by others is left.
func (c Cart) withoutAdded(productID string, quantity int, existed bool) Cart {
	line, ok := c.Find(productID)
	if !ok {
		return c
	}
	if !existed && line.Quantity <= quantity {
		return c.Remove(productID)
	}
	return c.adjust(productID, -quantity)
}

// restore puts line back at position at unless the product is already in the
// cart again.
func (c Cart) restore(line LineItem, at int) Cart {
	if c.index(line.ProductID) >= 0 {
		return c
	}
	items := c.items()
	if at < 0 || at > len(items) {
		at = len(items)
	}
	items = append(items[:at], append([]LineItem{line}, items[at:]...)...)
	return build(items)
}

func (c Cart) Clear() Cart {
	return Cart{Items: []LineItem{}}
}

// Normalize clamps quantities and recomputes totals, e.g. after decoding a
// persisted cart.
func (c Cart) Normalize() Cart {
	if c.Items == nil {
		return c.Clear()
	}
	return build(c.items())
}
