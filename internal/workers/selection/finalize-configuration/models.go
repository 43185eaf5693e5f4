package finalizeconfiguration

import (
	"homebuilder-pricing/internal/models"
	"homebuilder-pricing/internal/pricing"
)

type Input struct {
	Selections models.SelectionSet `json:"selections"`
	// ClientTotal is the total the wizard displayed when the buyer saved.
	// Informational only; the persisted total is always recomputed here. A
	// pointer so an asserted zero is distinguishable from an absent field.
	ClientTotal *int64 `json:"clientTotal,omitempty"`
	// Complete marks the configuration final. Completed configurations can
	// no longer be replaced.
	Complete bool `json:"complete,omitempty"`
}

type Output struct {
	ConfigurationID string             `json:"configurationId"`
	TotalPrice      int64              `json:"totalPrice"`
	LineItems       []pricing.LineItem `json:"lineItems"`
	Completed       bool               `json:"completed"`
	TotalMismatch   bool               `json:"totalMismatch"`
}
