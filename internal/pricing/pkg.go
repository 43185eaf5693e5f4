package pricing

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"homebuilder-pricing/internal/models"
)

// ErrNoBasePackage is returned when an upgrade package is priced for a plan
// that has no active base package. Resolving the base is the resolver's job;
// this package stays pure.
var ErrNoBasePackage = errors.New("no active base package for plan")

// PackagePricing is the derived pair persisted on an interior package.
type PackagePricing struct {
	TotalCost   int64 `json:"totalCost"`
	ClientPrice int64 `json:"clientPrice"`
}

// ValidatePackageInputs checks the admin-authored fields of an interior
// package before any price is computed or persisted.
func ValidatePackageInputs(pkg models.InteriorPackage) error {
	err := validation.ValidateStruct(&pkg,
		validation.Field(&pkg.Markup, validation.Min(0.0).Error("markup must be >= 0"), validation.Max(1.0).Error("markup must be <= 1")),
		validation.Field(&pkg.MinMarkup, validation.Min(int64(0)).Error("minMarkup must be >= 0")),
		validation.Field(&pkg.SoftClosePrice, validation.Min(int64(0)).Error("softClosePrice must be >= 0")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPricingInput, err)
	}
	for _, c := range pkg.Components.Costs() {
		if c < 0 {
			return fmt.Errorf("%w: component cost must be >= 0", ErrInvalidPricingInput)
		}
	}
	return nil
}

// PackageTotalCost sums the referenced component costs, plus the soft-close
// upcharge when enabled. Components contribute raw cost, never their own
// marked-up price.
func PackageTotalCost(pkg models.InteriorPackage) int64 {
	var total int64
	for _, c := range pkg.Components.Costs() {
		total += c
	}
	if pkg.SoftClose {
		total += pkg.SoftClosePrice
	}
	return total
}

// PackagePrice computes an interior package's derived pricing.
//
// The base package's buyer price is defined as its own minMarkup: it
// represents no added cost over what the plan already includes. An upgrade
// package is priced as a delta against the base:
//
//	addToCost    = totalCost - base.totalCost            (may be negative)
//	markupAmount = max(addToCost*(1+markup), minMarkup)
//	clientPrice  = addToCost + markupAmount
//
// A negative result floors to minMarkup; a package never shows a negative
// price to the buyer.
func PackagePrice(pkg models.InteriorPackage, base *models.InteriorPackage) (PackagePricing, error) {
	if err := ValidatePackageInputs(pkg); err != nil {
		return PackagePricing{}, err
	}

	totalCost := PackageTotalCost(pkg)

	if pkg.BasePackage {
		return PackagePricing{TotalCost: totalCost, ClientPrice: pkg.MinMarkup}, nil
	}

	if base == nil {
		return PackagePricing{}, fmt.Errorf("%w: planId %s", ErrNoBasePackage, pkg.PlanID)
	}

	addToCost := totalCost - PackageTotalCost(*base)
	markupAmount := markupCents(addToCost, 1+pkg.Markup)
	if markupAmount < pkg.MinMarkup {
		markupAmount = pkg.MinMarkup
	}

	clientPrice := addToCost + markupAmount
	if clientPrice < 0 {
		clientPrice = pkg.MinMarkup
	}

	return PackagePricing{TotalCost: totalCost, ClientPrice: clientPrice}, nil
}
