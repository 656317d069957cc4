package models

// PricingConfig is the single pricing record used to itemise bookings.
type PricingConfig struct {
	Currency        string             `json:"currency"`
	AdultPrice      float64            `json:"adultPrice"`
	ChildPrice      float64            `json:"childPrice"`
	GuidedTourPrice float64            `json:"guidedTourPrice"`
	Attractions     map[string]float64 `json:"attractions,omitempty"`
}

func DefaultPricing() PricingConfig {
	return PricingConfig{
		Currency:        "EUR",
		AdultPrice:      25,
		ChildPrice:      12.5,
		GuidedTourPrice: 10,
		Attractions:     map[string]float64{},
	}
}
