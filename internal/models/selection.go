package models

import "time"

// SelectionCategory identifies one wizard category in a selection set.
type SelectionCategory string

const (
	CategoryElevation        SelectionCategory = "elevation"
	CategoryInteriorPackage  SelectionCategory = "interiorPackage"
	CategoryStructural       SelectionCategory = "structural"
	CategoryAdditional       SelectionCategory = "additional"
	CategoryKitchenAppliance SelectionCategory = "kitchenAppliance"
	CategoryLaundryAppliance SelectionCategory = "laundryAppliance"
	CategoryLotPricing       SelectionCategory = "lotPricing"
)

// SelectionSet is a buyer's in-progress choice state for one plan instance.
// Single-select categories hold at most one id; structural and additional
// hold zero or more. Empty ids are simply unselected categories.
type SelectionSet struct {
	UserID             string   `json:"userId"`
	PlanID             string   `json:"planId"`
	ElevationID        string   `json:"elevationId,omitempty"`
	InteriorPackageID  string   `json:"interiorPackageId,omitempty"`
	StructuralIDs      []string `json:"structuralIds,omitempty"`
	AdditionalIDs      []string `json:"additionalIds,omitempty"`
	KitchenApplianceID string   `json:"kitchenApplianceId,omitempty"`
	LaundryApplianceID string   `json:"laundryApplianceId,omitempty"`
	LotPricingID       string   `json:"lotPricingId,omitempty"`
}

// ResolvedSelections holds the catalog records a selection set points at.
// Any field may be nil or empty: the aggregator treats absent categories as
// zero contributions, never as errors.
type ResolvedSelections struct {
	Elevation        *CatalogOption   `json:"elevation,omitempty"`
	InteriorPackage  *InteriorPackage `json:"interiorPackage,omitempty"`
	Structural       []CatalogOption  `json:"structural,omitempty"`
	Additional       []CatalogOption  `json:"additional,omitempty"`
	KitchenAppliance *CatalogOption   `json:"kitchenAppliance,omitempty"`
	LaundryAppliance *CatalogOption   `json:"laundryAppliance,omitempty"`
	LotPricing       *LotPricing      `json:"lotPricing,omitempty"`
}

// HomeConfiguration is the saved materialization of a selection set plus the
// server-computed total. Replaceable until Completed; deleted on buyer request.
type HomeConfiguration struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	PlanID     string       `json:"planId"`
	Selections SelectionSet `json:"selections"`
	TotalPrice int64        `json:"totalPrice"` // cents, server-computed only
	Completed  bool         `json:"completed"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}
