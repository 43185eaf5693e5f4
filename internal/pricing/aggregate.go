package pricing

import "homebuilder-pricing/internal/models"

// CategoryBasePrice labels the plan's base price line in a breakdown.
const CategoryBasePrice models.SelectionCategory = "basePrice"

// LineItem is one priced row of a selection breakdown. Included marks
// zero-price rows so presentation can render "Included" instead of "+$0"
// without re-deriving the check.
type LineItem struct {
	Category models.SelectionCategory `json:"category"`
	Label    string                   `json:"label"`
	Price    int64                    `json:"price"`
	Included bool                     `json:"isIncluded"`
}

// Breakdown is the aggregated result of a buyer's selections.
type Breakdown struct {
	LineItems  []LineItem `json:"lineItems"`
	GrandTotal int64      `json:"grandTotal"`
}

// Aggregate sums a buyer's selections into line items and a grand total.
// Absent or unresolved categories contribute zero and produce no line item;
// an incomplete wizard state is a running total, not an error. Resolved
// records whose ids are not in the selection set are ignored, so a stale or
// padded resolution can never inflate the total.
//
// This is the single aggregation implementation: the live-preview worker and
// the save-time worker both call it, which is what makes their totals agree.
func Aggregate(plan models.Plan, sel models.SelectionSet, recs models.ResolvedSelections) Breakdown {
	items := []LineItem{lineItem(CategoryBasePrice, plan.Name, plan.BasePrice)}

	if recs.Elevation != nil && recs.Elevation.ID == sel.ElevationID {
		items = append(items, lineItem(models.CategoryElevation, recs.Elevation.Name, recs.Elevation.ClientPrice))
	}
	if recs.InteriorPackage != nil && recs.InteriorPackage.ID == sel.InteriorPackageID {
		items = append(items, lineItem(models.CategoryInteriorPackage, recs.InteriorPackage.Name, recs.InteriorPackage.ClientPrice))
	}
	for _, opt := range recs.Structural {
		if containsID(sel.StructuralIDs, opt.ID) {
			items = append(items, lineItem(models.CategoryStructural, opt.Name, opt.ClientPrice))
		}
	}
	for _, opt := range recs.Additional {
		if containsID(sel.AdditionalIDs, opt.ID) {
			items = append(items, lineItem(models.CategoryAdditional, opt.Name, opt.ClientPrice))
		}
	}
	if recs.KitchenAppliance != nil && recs.KitchenAppliance.ID == sel.KitchenApplianceID {
		items = append(items, lineItem(models.CategoryKitchenAppliance, recs.KitchenAppliance.Name, recs.KitchenAppliance.ClientPrice))
	}
	if recs.LaundryAppliance != nil && recs.LaundryAppliance.ID == sel.LaundryApplianceID {
		items = append(items, lineItem(models.CategoryLaundryAppliance, recs.LaundryAppliance.Name, recs.LaundryAppliance.ClientPrice))
	}
	if recs.LotPricing != nil && recs.LotPricing.ID == sel.LotPricingID {
		items = append(items, lineItem(models.CategoryLotPricing, "Lot "+recs.LotPricing.LotNumber, recs.LotPricing.LotPremium))
	}

	var total int64
	for _, it := range items {
		total += it.Price
	}

	return Breakdown{LineItems: items, GrandTotal: total}
}

func lineItem(cat models.SelectionCategory, label string, price int64) LineItem {
	return LineItem{
		Category: cat,
		Label:    label,
		Price:    price,
		Included: price == 0,
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
