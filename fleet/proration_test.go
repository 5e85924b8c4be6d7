package fleet_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
)

func date(y int, m time.Month, d int) fleet.Date { return fleet.NewDate(y, m, d) }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func monthly(amount string, from fleet.Date, to *fleet.Date) fleet.RecurringExpense {
	return fleet.RecurringExpense{
		ID:            "exp-1",
		Application:   fleet.AppSpecificShift,
		Target:        fleet.TargetRef{ShiftID: "shift-1"},
		Amount:        dec(amount),
		Billing:       fleet.BillMonthly,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Active:        true,
	}
}

// =============================================================================
// MONTHLY PRORATION
// =============================================================================

func TestMonthlyProration_FullMonth(t *testing.T) {
	// GIVEN: 300/month effective before January 2025
	// WHEN: Querying all of January
	// THEN: The full 300.00 is charged

	e := monthly("300", date(2024, 1, 1), nil)
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 31))
	if !got.Equal(dec("300")) {
		t.Errorf("expected 300, got %s", got)
	}
}

func TestMonthlyProration_PartialMonth_RoundsPerMonth(t *testing.T) {
	// GIVEN: 300/month
	// WHEN: Querying 2025-01-16 through 2025-01-31 (16 of 31 days)
	// THEN: round(300 * 16/31, 2) = 154.84, rounded before any summing

	e := monthly("300", date(2024, 1, 1), nil)
	got := e.AmountForDateRange(date(2025, 1, 16), date(2025, 1, 31))
	if !got.Equal(dec("154.84")) {
		t.Errorf("expected 154.84, got %s", got)
	}
}

func TestMonthlyProration_CrossMonthBoundary(t *testing.T) {
	// GIVEN: 300/month
	// WHEN: Querying 2025-01-16 through 2025-02-14
	// THEN: Each month's share rounds independently:
	//   January:  round(300 * 16/31) = 154.84
	//   February: round(300 * 14/28) = 150.00

	e := monthly("300", date(2024, 1, 1), nil)
	got := e.AmountForDateRange(date(2025, 1, 16), date(2025, 2, 14))
	if !got.Equal(dec("304.84")) {
		t.Errorf("expected 304.84, got %s", got)
	}
}

func TestMonthlyProration_ClippedToEffectiveRange(t *testing.T) {
	// GIVEN: 300/month effective 2025-01-10 through 2025-01-20
	// WHEN: Querying all of January
	// THEN: Only the 11 effective days are charged: round(300 * 11/31) = 106.45

	to := date(2025, 1, 20)
	e := monthly("300", date(2025, 1, 10), &to)
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 31))
	if !got.Equal(dec("106.45")) {
		t.Errorf("expected 106.45, got %s", got)
	}
}

func TestMonthlyProration_EmptyIntersection(t *testing.T) {
	// GIVEN: A charge effective from March
	// WHEN: Querying January
	// THEN: Zero, never an error

	e := monthly("300", date(2025, 3, 1), nil)
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 31))
	if !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
}

func TestMonthlyProration_InvalidQueryRange(t *testing.T) {
	// GIVEN: Any charge
	// WHEN: Querying with to before from
	// THEN: Zero

	e := monthly("300", date(2024, 1, 1), nil)
	got := e.AmountForDateRange(date(2025, 1, 31), date(2025, 1, 1))
	if !got.IsZero() {
		t.Errorf("expected zero for inverted range, got %s", got)
	}
}

func TestMonthlyProration_Idempotent(t *testing.T) {
	// Resolution is read-only: repeating the same query yields the same
	// amount.

	e := monthly("300", date(2024, 1, 1), nil)
	first := e.AmountForDateRange(date(2025, 1, 16), date(2025, 1, 31))
	second := e.AmountForDateRange(date(2025, 1, 16), date(2025, 1, 31))
	if !first.Equal(second) {
		t.Errorf("proration not idempotent: %s then %s", first, second)
	}
}

func TestMonthlyProration_LeapFebruary(t *testing.T) {
	// GIVEN: 290/month in February 2024 (29 days)
	// WHEN: Querying the first 10 days
	// THEN: round(290 * 10/29) = 100.00

	e := monthly("290", date(2024, 1, 1), nil)
	got := e.AmountForDateRange(date(2024, 2, 1), date(2024, 2, 10))
	if !got.Equal(dec("100")) {
		t.Errorf("expected 100, got %s", got)
	}
}

// =============================================================================
// DAILY AND PER-SHIFT BILLING
// =============================================================================

func TestDailyBilling_MultipliesByDays(t *testing.T) {
	// GIVEN: 12.50/day
	// WHEN: Querying a 10-day window inside the effective range
	// THEN: 125.00

	e := monthly("12.50", date(2024, 1, 1), nil)
	e.Billing = fleet.BillDaily
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 10))
	if !got.Equal(dec("125")) {
		t.Errorf("expected 125, got %s", got)
	}
}

func TestDailyBilling_ClippedDays(t *testing.T) {
	// GIVEN: 10/day effective from 2025-01-05
	// WHEN: Querying 2025-01-01 through 2025-01-10
	// THEN: Only the 6 effective days are charged

	e := monthly("10", date(2025, 1, 5), nil)
	e.Billing = fleet.BillDaily
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 10))
	if !got.Equal(dec("60")) {
		t.Errorf("expected 60, got %s", got)
	}
}

func TestPerShiftBilling_ReturnsOccurrenceAmount(t *testing.T) {
	// GIVEN: A 5.00 PER_SHIFT charge
	// WHEN: The query window intersects the effective range
	// THEN: The per-occurrence amount comes back; occurrence counting is the
	//       orchestration's job

	e := monthly("5", date(2024, 1, 1), nil)
	e.Billing = fleet.BillPerShift
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 31))
	if !got.Equal(dec("5")) {
		t.Errorf("expected 5, got %s", got)
	}
}

func TestPerShiftBilling_OutsideWindow(t *testing.T) {
	e := monthly("5", date(2025, 6, 1), nil)
	e.Billing = fleet.BillPerShift
	got := e.AmountForDateRange(date(2025, 1, 1), date(2025, 1, 31))
	if !got.IsZero() {
		t.Errorf("expected zero outside effective window, got %s", got)
	}
}

// =============================================================================
// ONE-TIME EXPENSES
// =============================================================================

func TestOneTimeAmount_InsideRange(t *testing.T) {
	e := fleet.OneTimeExpense{Amount: dec("75"), ExpenseDate: date(2025, 1, 15)}
	if got := e.OneTimeAmountForRange(date(2025, 1, 1), date(2025, 1, 31)); !got.Equal(dec("75")) {
		t.Errorf("expected 75, got %s", got)
	}
}

func TestOneTimeAmount_OutsideRange(t *testing.T) {
	e := fleet.OneTimeExpense{Amount: dec("75"), ExpenseDate: date(2025, 2, 15)}
	if got := e.OneTimeAmountForRange(date(2025, 1, 1), date(2025, 1, 31)); !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
}
