package models

import "strings"

// Modality enumerates the fulfillment modes supported by the cart endpoint.
type Modality string

const (
	ModalityPickup   Modality = "PICKUP"
	ModalityDelivery Modality = "DELIVERY"
	ModalityShip     Modality = "SHIP"
)

// ParseModality normalizes free-form user input into a Modality.
// Unknown values fall back to PICKUP.
func ParseModality(value string) Modality {
	switch Modality(strings.ToUpper(strings.TrimSpace(value))) {
	case ModalityDelivery:
		return ModalityDelivery
	case ModalityShip:
		return ModalityShip
	default:
		return ModalityPickup
	}
}

// Staple is a reusable definition of a grocery item to re-add regularly.
// Its identity within a list is its Name.
type Staple struct {
	Name               string   `json:"name"`
	SearchTerm         string   `json:"searchTerm"`
	Quantity           int      `json:"quantity"`
	Modality           Modality `json:"modality"`
	PreferredProductID string   `json:"preferredProductId,omitempty"`
}

// StapleList is a named, ordered collection of staples.
type StapleList struct {
	Name    string   `json:"name"`
	Staples []Staple `json:"staples"`
}

// FindStaple returns the staple with the given name and whether it exists.
func (l StapleList) FindStaple(name string) (Staple, bool) {
	for _, s := range l.Staples {
		if s.Name == name {
			return s, true
		}
	}
	return Staple{}, false
}
