package domain

// LineItem is one distinct purchasable selection in a cart. Name, Price and
// ImageURL are snapshots taken when the item was added; Price keeps the
// display string the storefront sent, UnitPriceCents is the parsed value
// used for all arithmetic.
type LineItem struct {
	ProductID      int64  `json:"id"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	ImageURL       string `json:"image"`
	Quantity       int    `json:"quantity"`
	Option         string `json:"option,omitempty"`
}

// SameKey reports whether two line items refer to the same purchasable
// selection. An absent option only matches another absent option.
func (li LineItem) SameKey(productID int64, option string) bool {
	return li.ProductID == productID && li.Option == option
}

// Cart is the ordered collection of line items for one user. Totals are
// derived on demand, never stored.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []LineItem `json:"items"`
}

// TotalCents sums unit price times quantity across all line items.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, li := range c.Items {
		total += li.UnitPriceCents * int64(li.Quantity)
	}
	return total
}

// ItemCount sums quantities across all line items.
func (c *Cart) ItemCount() int {
	count := 0
	for _, li := range c.Items {
		count += li.Quantity
	}
	return count
}
