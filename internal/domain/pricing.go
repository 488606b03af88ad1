package domain

// PricingTier is a purchasable credit package. Prices are USD cents.
type PricingTier struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Credits    int    `json:"credits"`
	Popular    bool   `json:"popular,omitempty"`
}

var PricingTiers = []PricingTier{
	{ID: "tier-1", Name: "Starter", PriceCents: 500, Credits: 1000},
	{ID: "tier-2", Name: "Basic", PriceCents: 1500, Credits: 5000},
	{ID: "tier-3", Name: "Standard", PriceCents: 2500, Credits: 10000},
	{ID: "tier-4", Name: "Professional", PriceCents: 4000, Credits: 20000},
	{ID: "tier-5", Name: "Business", PriceCents: 8000, Credits: 50000, Popular: true},
	{ID: "tier-6", Name: "Enterprise", PriceCents: 12000, Credits: 100000},
	{ID: "tier-7", Name: "Premium", PriceCents: 25000, Credits: 250000},
	{ID: "tier-8", Name: "Ultimate", PriceCents: 40000, Credits: 500000},
	{ID: "tier-9", Name: "Platinum", PriceCents: 70000, Credits: 1000000},
	{ID: "tier-10", Name: "Diamond", PriceCents: 160000, Credits: 2000000},
}

// TierByID returns the tier with the given id, or nil.
func TierByID(id string) *PricingTier {
	for i := range PricingTiers {
		if PricingTiers[i].ID == id {
			return &PricingTiers[i]
		}
	}
	return nil
}
