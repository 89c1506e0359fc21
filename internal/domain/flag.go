package domain

// FlagID identifies a fraud rule.
type FlagID string

// Rule identifiers in evaluation order.
const (
	FlagHighValue               FlagID = "high_value"
	FlagRoundAmount             FlagID = "round_amount"
	FlagPotentialDuplicate      FlagID = "potential_duplicate"
	FlagHighRiskDepartment      FlagID = "high_risk_department"
	FlagStaleInvoice            FlagID = "stale_invoice"
	FlagFrequentHighValueVendor FlagID = "frequent_high_value_vendor"
)

// Flag is a triggered rule outcome. It carries no state beyond its identity.
type Flag struct {
	ID    FlagID `json:"id"`
	Label string `json:"label"`
}

// Human-readable labels shown to reviewers.
const (
	LabelHighValue               = "High Value (> $50k)"
	LabelRoundAmount             = "Round Amount detected"
	LabelPotentialDuplicate      = "Potential Duplicate Transaction"
	LabelHighRiskDepartment      = "High Risk Department"
	LabelStaleInvoice            = "Invoice > 1 Year Old"
	LabelFrequentHighValueVendor = "Frequent High-Value Vendor"
)
