package models

// ProductCandidate is a read-only projection of a remote catalog entry,
// valid only for the location and moment it was fetched.
type ProductCandidate struct {
	ProductID    string   `json:"productId"`
	UPC          string   `json:"upc,omitempty"`
	Description  string   `json:"description"`
	Brand        string   `json:"brand,omitempty"`
	LocationID   string   `json:"locationId"`
	Price        *float64 `json:"price,omitempty"`
	Availability string   `json:"availability,omitempty"`
	Score        float64  `json:"score,omitempty"`
}

// CartIdentifier returns the identifier the cart endpoint accepts for this
// candidate. The item-level UPC is preferred when the catalog provided one.
func (c ProductCandidate) CartIdentifier() string {
	if c.UPC != "" {
		return c.UPC
	}
	return c.ProductID
}
