package decision

import (
	"reflect"
	"testing"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	highValue  = domain.Flag{ID: domain.FlagHighValue, Label: domain.LabelHighValue}
	roundAmt   = domain.Flag{ID: domain.FlagRoundAmount, Label: domain.LabelRoundAmount}
	department = domain.Flag{ID: domain.FlagHighRiskDepartment, Label: domain.LabelHighRiskDepartment}
)

func TestAggregate(t *testing.T) {
	amount := decimal.NewFromInt(55000)

	t.Run("NoFlags", func(t *testing.T) {
		d := Aggregate(nil, amount)

		if d.Status != domain.StatusClean {
			t.Errorf("expected Clean, got %s", d.Status)
		}
		if !d.EstimatedSavings.IsZero() {
			t.Errorf("expected zero savings, got %s", d.EstimatedSavings)
		}
		if d.TriggeredFlags == nil || len(d.TriggeredFlags) != 0 {
			t.Errorf("expected empty flag list, got %v", d.TriggeredFlags)
		}
	})

	t.Run("SingleFlag", func(t *testing.T) {
		d := Aggregate([]domain.Flag{highValue}, amount)

		if d.Status != domain.StatusClean {
			t.Errorf("expected Clean, got %s", d.Status)
		}
		if !d.EstimatedSavings.IsZero() {
			t.Errorf("expected zero savings, got %s", d.EstimatedSavings)
		}
		if len(d.TriggeredFlags) != 1 {
			t.Errorf("expected 1 flag, got %d", len(d.TriggeredFlags))
		}
	})

	t.Run("AtThreshold", func(t *testing.T) {
		d := Aggregate([]domain.Flag{highValue, department}, amount)

		if d.Status != domain.StatusReviewRequired {
			t.Errorf("expected Review Required, got %s", d.Status)
		}
		if !d.EstimatedSavings.Equal(amount) {
			t.Errorf("expected savings %s, got %s", amount, d.EstimatedSavings)
		}
	})

	t.Run("AboveThreshold", func(t *testing.T) {
		d := Aggregate([]domain.Flag{highValue, roundAmt, department}, amount)

		if d.Status != domain.StatusReviewRequired {
			t.Errorf("expected Review Required, got %s", d.Status)
		}
		if !d.EstimatedSavings.Equal(amount) {
			t.Errorf("expected savings %s, got %s", amount, d.EstimatedSavings)
		}
	})

	t.Run("ZeroAmountEscalated", func(t *testing.T) {
		d := Aggregate([]domain.Flag{department, roundAmt}, decimal.Zero)

		if d.Status != domain.StatusReviewRequired {
			t.Errorf("expected Review Required, got %s", d.Status)
		}
		if !d.EstimatedSavings.IsZero() {
			t.Errorf("expected zero savings, got %s", d.EstimatedSavings)
		}
	})
}

func TestAggregateCopiesFlags(t *testing.T) {
	flags := []domain.Flag{highValue, department}
	d := Aggregate(flags, decimal.NewFromInt(1))

	flags[0] = roundAmt
	if d.TriggeredFlags[0] != highValue {
		t.Errorf("decision shares its flag slice with the caller")
	}
}

func TestRequiresReview(t *testing.T) {
	if RequiresReview(domain.Decision{Status: domain.StatusClean}) {
		t.Error("Clean decision should not require review")
	}
	if !RequiresReview(domain.Decision{Status: domain.StatusReviewRequired}) {
		t.Error("Review Required decision should require review")
	}
}

func TestLabels(t *testing.T) {
	d := Aggregate([]domain.Flag{highValue, department}, decimal.NewFromInt(1))

	want := []string{"High Value (> $50k)", "High Risk Department"}
	if got := Labels(d); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := Labels(domain.Decision{}); len(got) != 0 {
		t.Errorf("expected no labels, got %v", got)
	}
}
