// Package shipping supplies the fulfillment block of a checkout request.
package shipping

import (
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// Strategy builds the fulfillment selection for the given line items.
type Strategy interface {
	Fulfillment(items []ucp.LineItem) ucp.Fulfillment
}

// Address is a single shipping destination.
type Address struct {
	ID       string
	Street   string
	Locality string
	Region   string
	Postcode string
	Country  string
}

// Standard is one shipping method to one destination with one fixed-price
// option, auto-selected.
type Standard struct {
	Destination Address
	GroupID     string
	OptionID    string
	OptionTitle string
	Price       int64
}

func DefaultStandard() Standard {
	return Standard{
		Destination: Address{
			ID:       "dest_1",
			Street:   "123 Demo St",
			Locality: "Mumbai",
			Region:   "MH",
			Postcode: "400001",
			Country:  "IN",
		},
		GroupID:     "group_1",
		OptionID:    "std-in",
		OptionTitle: "Standard Shipping (India)",
		Price:       5000,
	}
}

// Fulfillment leaves line_item_ids empty so the group covers every line.
func (s Standard) Fulfillment([]ucp.LineItem) ucp.Fulfillment {
	d := s.Destination
	return ucp.Fulfillment{
		Methods: []ucp.FulfillmentMethod{{
			Type: "shipping",
			Destinations: []ucp.Destination{{
				ID:              d.ID,
				StreetAddress:   d.Street,
				AddressLocality: d.Locality,
				AddressRegion:   d.Region,
				PostalCode:      d.Postcode,
				AddressCountry:  d.Country,
			}},
			SelectedDestinationID: d.ID,
			Groups: []ucp.FulfillmentGroup{{
				ID:          s.GroupID,
				LineItemIDs: []string{},
				Options: []ucp.FulfillmentOption{{
					ID:     s.OptionID,
					Title:  s.OptionTitle,
					Totals: []ucp.Total{{Type: ucp.TotalTypeTotal, Amount: s.Price}},
				}},
				SelectedOptionID: s.OptionID,
			}},
		}},
	}
}
