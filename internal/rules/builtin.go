package rules

import "github.com/opensource-finance/govguard/internal/domain"

// Constant lookup tables. Membership is exact and case-sensitive.
var (
	highRiskDepartments = []string{"Public Works", "Infrastructure"}
	watchedVendors      = []string{"Suspicious Inc"}
)

// HighRiskDepartments returns the departments that trigger the high risk
// department rule.
func HighRiskDepartments() []string {
	return append([]string(nil), highRiskDepartments...)
}

// WatchedVendors returns the vendors that trigger the frequent high-value
// vendor rule.
func WatchedVendors() []string {
	return append([]string(nil), watchedVendors...)
}

// BuiltinRules returns the production rule table. Order is significant:
// triggered flags are reported in this order.
func BuiltinRules() []RuleDef {
	return []RuleDef{
		{
			ID:         domain.FlagHighValue,
			Label:      domain.LabelHighValue,
			Expression: `decimal_gt(amount, "50000")`,
		},
		{
			ID:         domain.FlagRoundAmount,
			Label:      domain.LabelRoundAmount,
			Expression: `decimal_gt(amount, "0") && decimal_multiple_of(amount, "1000")`,
		},
		{
			ID:         domain.FlagPotentialDuplicate,
			Label:      domain.LabelPotentialDuplicate,
			Expression: `history.exists(tx, decimal_within(tx, amount, "0.01"))`,
		},
		{
			ID:         domain.FlagHighRiskDepartment,
			Label:      domain.LabelHighRiskDepartment,
			Expression: `department in high_risk_departments`,
		},
		{
			ID:         domain.FlagStaleInvoice,
			Label:      domain.LabelStaleInvoice,
			Expression: `issued_at < stale_before`,
		},
		{
			ID:         domain.FlagFrequentHighValueVendor,
			Label:      domain.LabelFrequentHighValueVendor,
			Expression: `decimal_gt(amount, "10000") && vendor in watched_vendors`,
		},
	}
}
