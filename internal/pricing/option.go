// Package pricing holds the pure pricing formulas for the configurator.
// Every function here is side-effect free and deterministic: the wizard's
// live preview and the save-time recompute call the same code over the same
// inputs and must produce identical cents.
package pricing

import (
	"errors"
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"homebuilder-pricing/internal/models"
)

var ErrInvalidPricingInput = errors.New("invalid pricing input")

// ValidateOptionInputs checks the admin-authored fields of a catalog option
// before any price is computed or persisted.
func ValidateOptionInputs(opt models.CatalogOption) error {
	err := validation.ValidateStruct(&opt,
		validation.Field(&opt.Cost, validation.Min(int64(0)).Error("cost must be >= 0")),
		validation.Field(&opt.Markup, validation.Min(0.0).Error("markup must be >= 0"), validation.Max(1.0).Error("markup must be <= 1")),
		validation.Field(&opt.MinMarkup, validation.Min(int64(0)).Error("minMarkup must be >= 0")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPricingInput, err)
	}
	return nil
}

// OptionPrice derives the buyer-facing price of a catalog option:
//
//	clientPrice = cost + max(cost*markup, minMarkup)
//
// The markup dollar amount never falls below minMarkup, so the result is
// always >= cost. Amounts are cents; the fractional markup is rounded to the
// nearest cent exactly once.
func OptionPrice(cost int64, markup float64, minMarkup int64) (int64, error) {
	if err := ValidateOptionInputs(models.CatalogOption{Cost: cost, Markup: markup, MinMarkup: minMarkup}); err != nil {
		return 0, err
	}

	markupAmount := markupCents(cost, markup)
	if markupAmount < minMarkup {
		markupAmount = minMarkup
	}
	return cost + markupAmount, nil
}

// markupCents applies a fractional markup to a cents amount. Rounding happens
// here and nowhere else, so both call sites of every formula agree bit for bit.
func markupCents(amount int64, markup float64) int64 {
	return int64(math.Round(float64(amount) * markup))
}
