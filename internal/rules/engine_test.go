package rules

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

var refTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewDefaultEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func invoice(amount string) domain.InvoiceRecord {
	return domain.InvoiceRecord{
		InvoiceID:  "INV-1",
		Amount:     decimal.RequireFromString(amount),
		Vendor:     "Acme",
		Department: "IT Services",
		Date:       refTime,
	}
}

func flagIDs(flags []domain.Flag) []domain.FlagID {
	ids := make([]domain.FlagID, 0, len(flags))
	for _, f := range flags {
		ids = append(ids, f.ID)
	}
	return ids
}

func hasFlag(flags []domain.Flag, id domain.FlagID) bool {
	for _, f := range flags {
		if f.ID == id {
			return true
		}
	}
	return false
}

func TestEngineCreation(t *testing.T) {
	engine := newTestEngine(t)

	if engine.RulesCount() != 6 {
		t.Errorf("expected 6 rules, got %d", engine.RulesCount())
	}

	want := []domain.FlagID{
		domain.FlagHighValue,
		domain.FlagRoundAmount,
		domain.FlagPotentialDuplicate,
		domain.FlagHighRiskDepartment,
		domain.FlagStaleInvoice,
		domain.FlagFrequentHighValueVendor,
	}
	for i, def := range engine.Rules() {
		if def.ID != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], def.ID)
		}
	}
}

func TestNewEngineRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		defs []RuleDef
	}{
		{"invalid CEL", []RuleDef{{ID: "bad", Expression: "this is not valid CEL !!!"}}},
		{"non-bool output", []RuleDef{{ID: "num", Expression: "1 + 2"}}},
		{"unknown variable", []RuleDef{{ID: "unknown", Expression: "balance > 0"}}},
		{"missing id", []RuleDef{{Expression: "true"}}},
		{"duplicate id", []RuleDef{
			{ID: "a", Expression: "true"},
			{ID: "a", Expression: "false"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.defs); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHighValueRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		amount string
		want   bool
	}{
		{"50000", false},
		{"50000.01", true},
		{"60000", true},
		{"49999.99", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			flags := engine.Evaluate(invoice(tt.amount), refTime)
			if got := hasFlag(flags, domain.FlagHighValue); got != tt.want {
				t.Errorf("amount %s: expected %v, got %v", tt.amount, tt.want, got)
			}
		})
	}
}

func TestRoundAmountRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		amount string
		want   bool
	}{
		{"1000", true},
		{"1500", false},
		{"0", false},
		{"999999000", true},
		{"1000.00", true},
		{"1000.5", false},
		{"-2000", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			flags := engine.Evaluate(invoice(tt.amount), refTime)
			if got := hasFlag(flags, domain.FlagRoundAmount); got != tt.want {
				t.Errorf("amount %s: expected %v, got %v", tt.amount, tt.want, got)
			}
		})
	}
}

func TestPotentialDuplicateRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		amount  string
		history []string
		want    bool
	}{
		{"exact match", "1234.56", []string{"1234.56"}, true},
		{"just inside", "1234.56", []string{"1234.5501"}, true},
		{"boundary 0.0099", "100.0099", []string{"100"}, true},
		{"boundary 0.01", "100.01", []string{"100"}, false},
		{"below current", "100", []string{"99.99"}, false},
		{"empty history", "1234.56", nil, false},
		{"match later in list", "250", []string{"10", "20", "250.001"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invoice(tt.amount)
			for _, h := range tt.history {
				inv.PreviousTransactions = append(inv.PreviousTransactions,
					domain.PriorTransaction{Amount: decimal.RequireFromString(h)})
			}
			flags := engine.Evaluate(inv, refTime)
			if got := hasFlag(flags, domain.FlagPotentialDuplicate); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// Department matching is exact and case-sensitive.
func TestHighRiskDepartmentRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		department string
		want       bool
	}{
		{"Public Works", true},
		{"Infrastructure", true},
		{"public works", false},
		{"Public Works ", false},
		{"IT Services", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.department, func(t *testing.T) {
			inv := invoice("1")
			inv.Department = tt.department
			flags := engine.Evaluate(inv, refTime)
			if got := hasFlag(flags, domain.FlagHighRiskDepartment); got != tt.want {
				t.Errorf("department %q: expected %v, got %v", tt.department, tt.want, got)
			}
		})
	}
}

func TestStaleInvoiceRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"today", refTime, false},
		{"exactly one year prior", refTime.AddDate(-1, 0, 0), false},
		{"earlier on the same date a year prior", refTime.AddDate(-1, 0, 0).Add(-time.Hour), false},
		{"one day past a year", refTime.AddDate(-1, 0, -1), true},
		{"last second of the day past a year", time.Date(2024, 6, 14, 23, 59, 59, 0, time.UTC), true},
		{"two years ago", refTime.AddDate(-2, 0, 0), true},
		{"future date", refTime.AddDate(0, 1, 0), false},
		{"missing date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invoice("1")
			inv.Date = tt.date
			flags := engine.Evaluate(inv, refTime)
			if got := hasFlag(flags, domain.FlagStaleInvoice); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStaleBeforeLeapDay(t *testing.T) {
	ref := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got := StaleBefore(ref)
	want := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestStaleBeforeIgnoresTimeOfDay(t *testing.T) {
	morning := StaleBefore(time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC))
	evening := StaleBefore(time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC))
	want := time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC)
	if !morning.Equal(want) || !evening.Equal(want) {
		t.Errorf("expected %v for both, got %v and %v", want, morning, evening)
	}
}

func TestStaleInvoiceDateOnlyAgainstWallClock(t *testing.T) {
	engine := newTestEngine(t)

	inv := invoice("1")
	inv.Date = time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC)
	ref := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

	if hasFlag(engine.Evaluate(inv, ref), domain.FlagStaleInvoice) {
		t.Error("invoice dated exactly one year before the reference date must not be stale")
	}

	inv.Date = inv.Date.AddDate(0, 0, -1)
	if !hasFlag(engine.Evaluate(inv, ref), domain.FlagStaleInvoice) {
		t.Error("invoice dated one year and a day before the reference date must be stale")
	}
}

func TestFrequentHighValueVendorRule(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		vendor string
		amount string
		want   bool
	}{
		{"watched above threshold", "Suspicious Inc", "10000.01", true},
		{"watched at threshold", "Suspicious Inc", "10000", false},
		{"other vendor", "Acme", "20000", false},
		{"case differs", "suspicious inc", "20000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invoice(tt.amount)
			inv.Vendor = tt.vendor
			flags := engine.Evaluate(inv, refTime)
			if got := hasFlag(flags, domain.FlagFrequentHighValueVendor); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNonPositiveAmountsNeverTriggerAmountRules(t *testing.T) {
	engine := newTestEngine(t)

	for _, amount := range []string{"0", "-1", "-1000", "-60000"} {
		t.Run(amount, func(t *testing.T) {
			inv := invoice(amount)
			inv.Vendor = "Suspicious Inc"
			flags := engine.Evaluate(inv, refTime)
			for _, id := range []domain.FlagID{domain.FlagHighValue, domain.FlagRoundAmount, domain.FlagFrequentHighValueVendor} {
				if hasFlag(flags, id) {
					t.Errorf("amount %s triggered %s", amount, id)
				}
			}
		})
	}
}

func TestFlagsFollowRuleOrder(t *testing.T) {
	engine := newTestEngine(t)

	inv := domain.InvoiceRecord{
		InvoiceID:            "INV-ALL",
		Amount:               decimal.NewFromInt(60000),
		Vendor:               "Suspicious Inc",
		Department:           "Infrastructure",
		Date:                 refTime.AddDate(-3, 0, 0),
		PreviousTransactions: []domain.PriorTransaction{{Amount: decimal.NewFromInt(60000)}},
	}

	got := flagIDs(engine.Evaluate(inv, refTime))
	want := []domain.FlagID{
		domain.FlagHighValue,
		domain.FlagRoundAmount,
		domain.FlagPotentialDuplicate,
		domain.FlagHighRiskDepartment,
		domain.FlagStaleInvoice,
		domain.FlagFrequentHighValueVendor,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	inv.Amount = decimal.NewFromInt(5000)
	inv.PreviousTransactions = nil
	inv.Department = "IT"
	got = flagIDs(engine.Evaluate(inv, refTime))
	want = []domain.FlagID{domain.FlagRoundAmount, domain.FlagStaleInvoice}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFlagLabels(t *testing.T) {
	engine := newTestEngine(t)

	inv := invoice("60000")
	flags := engine.Evaluate(inv, refTime)
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
	if flags[0].Label != "High Value (> $50k)" {
		t.Errorf("unexpected label %q", flags[0].Label)
	}
	if flags[1].Label != "Round Amount detected" {
		t.Errorf("unexpected label %q", flags[1].Label)
	}
}

func TestRuleTableIsIndependent(t *testing.T) {
	inv := domain.InvoiceRecord{
		Amount:     decimal.NewFromInt(55000),
		Department: "Public Works",
		Date:       refTime,
	}

	t.Run("removing an entry", func(t *testing.T) {
		defs := BuiltinRules()
		defs = append(defs[:1], defs[2:]...) // drop round_amount
		engine, err := NewEngine(defs)
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		got := flagIDs(engine.Evaluate(inv, refTime))
		want := []domain.FlagID{domain.FlagHighValue, domain.FlagHighRiskDepartment}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("adding an entry", func(t *testing.T) {
		defs := append(BuiltinRules(), RuleDef{
			ID:         "missing_vendor",
			Label:      "Missing Vendor",
			Expression: `vendor == "Unknown"`,
		})
		engine, err := NewEngine(defs)
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		got := flagIDs(engine.Evaluate(inv, refTime))
		want := []domain.FlagID{
			domain.FlagHighValue,
			domain.FlagRoundAmount,
			domain.FlagHighRiskDepartment,
			"missing_vendor",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("reordering entries", func(t *testing.T) {
		defs := BuiltinRules()
		defs[0], defs[3] = defs[3], defs[0]
		engine, err := NewEngine(defs)
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		got := flagIDs(engine.Evaluate(inv, refTime))
		want := []domain.FlagID{domain.FlagHighRiskDepartment, domain.FlagRoundAmount, domain.FlagHighValue}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

func TestRuntimeErrorCountsAsNotTriggered(t *testing.T) {
	engine, err := NewEngine([]RuleDef{
		{ID: "bad_decimal", Label: "Bad", Expression: `decimal_gt(vendor, "1")`},
		{ID: "always", Label: "Always", Expression: `true`},
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	got := flagIDs(engine.Evaluate(invoice("10"), refTime))
	want := []domain.FlagID{"always"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	engine := newTestEngine(t)

	inv := domain.InvoiceRecord{Amount: decimal.NewFromInt(-5)}
	before := inv.Clone()
	engine.Evaluate(inv, refTime)

	if !reflect.DeepEqual(inv, before) {
		t.Errorf("input was mutated: %+v", inv)
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	engine := newTestEngine(t)
	inv := invoice("55500")
	inv.Department = "Public Works"

	var wg sync.WaitGroup
	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n := len(engine.Evaluate(inv, refTime)); n != 2 {
				errs <- "unexpected flag count"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestLookupTablesAreCopies(t *testing.T) {
	deps := HighRiskDepartments()
	deps[0] = "Changed"
	if HighRiskDepartments()[0] != "Public Works" {
		t.Error("high risk departments table was mutated")
	}

	vendors := WatchedVendors()
	vendors[0] = "Changed"
	if WatchedVendors()[0] != "Suspicious Inc" {
		t.Error("watched vendors table was mutated")
	}
}

func BenchmarkEvaluate(b *testing.B) {
	engine, err := NewDefaultEngine()
	if err != nil {
		b.Fatalf("failed to create engine: %v", err)
	}
	inv := invoice("55000")
	inv.PreviousTransactions = []domain.PriorTransaction{{Amount: decimal.NewFromInt(100)}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Evaluate(inv, refTime)
	}
}
