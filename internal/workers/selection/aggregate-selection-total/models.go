package aggregateselectiontotal

import (
	"homebuilder-pricing/internal/models"
	"homebuilder-pricing/internal/pricing"
)

type Input struct {
	Selections models.SelectionSet `json:"selections"`
}

type Output struct {
	LineItems  []pricing.LineItem `json:"lineItems"`
	GrandTotal int64              `json:"grandTotal"`
}
