package models

// All monetary amounts are integer cents. The live-preview and save-time
// totals must agree exactly, so nothing in the pricing path uses floating
// point dollars.

// OptionClassification buckets catalog options into wizard categories.
type OptionClassification string

const (
	ClassificationElevation        OptionClassification = "elevation"
	ClassificationStructural       OptionClassification = "structural"
	ClassificationAdditional       OptionClassification = "additional"
	ClassificationKitchenAppliance OptionClassification = "kitchen_appliance"
	ClassificationLaundryAppliance OptionClassification = "laundry_appliance"
)

// Plan is a floor plan buyers configure against.
type Plan struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"basePrice"` // cents
}

// CatalogOption is a single purchasable upgrade item. Cost, markup and
// minMarkup are admin-authored; ClientPrice is derived and never authored.
type CatalogOption struct {
	ID             string               `json:"id"`
	PlanID         string               `json:"planId"`
	Name           string               `json:"name"`
	Classification OptionClassification `json:"classification"`
	Cost           int64                `json:"cost"`      // cents
	Markup         float64              `json:"markup"`    // fraction in [0,1]
	MinMarkup      int64                `json:"minMarkup"` // cents floor on the markup amount
	IsActive       bool                 `json:"isActive"`
	ClientPrice    int64                `json:"clientPrice"` // cents, derived
}

// ComponentRefs holds the optional per-component cost references of an
// interior package. A nil entry means the package does not include that
// component.
type ComponentRefs struct {
	Fixtures          *int64 `json:"fixtures,omitempty"`
	LVP               *int64 `json:"lvp,omitempty"`
	Carpet            *int64 `json:"carpet,omitempty"`
	Backsplash        *int64 `json:"backsplash,omitempty"`
	MasterBathTile    *int64 `json:"masterBathTile,omitempty"`
	Countertop        *int64 `json:"countertop,omitempty"`
	PrimaryCabinets   *int64 `json:"primaryCabinets,omitempty"`
	SecondaryCabinets *int64 `json:"secondaryCabinets,omitempty"`
	CabinetHardware   *int64 `json:"cabinetHardware,omitempty"`
}

// Costs returns the referenced component costs that are present.
func (c ComponentRefs) Costs() []int64 {
	refs := []*int64{
		c.Fixtures, c.LVP, c.Carpet, c.Backsplash, c.MasterBathTile,
		c.Countertop, c.PrimaryCabinets, c.SecondaryCabinets, c.CabinetHardware,
	}
	out := make([]int64, 0, len(refs))
	for _, r := range refs {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// InteriorPackage is an interior finish package. TotalCost and ClientPrice
// are derived: recomputed on any component change and, for every sibling,
// whenever the plan's base package changes.
type InteriorPackage struct {
	ID             string        `json:"id"`
	PlanID         string        `json:"planId"`
	Name           string        `json:"name"`
	BasePackage    bool          `json:"basePackage"`
	Markup         float64       `json:"markup"`
	MinMarkup      int64         `json:"minMarkup"` // cents
	Components     ComponentRefs `json:"components"`
	SoftClose      bool          `json:"softClose"`
	SoftClosePrice int64         `json:"softClosePrice"` // cents
	IsActive       bool          `json:"isActive"`
	TotalCost      int64         `json:"totalCost"`   // cents, derived
	ClientPrice    int64         `json:"clientPrice"` // cents, derived
}

// LotPricing carries the lot premium for a specific lot choice.
type LotPricing struct {
	ID         string `json:"id"`
	PlanID     string `json:"planId"`
	LotNumber  string `json:"lotNumber"`
	LotPremium int64  `json:"lotPremium"` // cents
	IsActive   bool   `json:"isActive"`
}
