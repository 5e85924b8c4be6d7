package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/fleet/store"
)

// seedLeaseRates installs an active plan with one sedan rate per listed
// (shift type, weekday) pair: 85.00 base + 0.40/mile.
func seedLeaseRates(t *testing.T, m *store.Memory, keys ...fleet.RateKey) {
	t.Helper()
	ctx := context.Background()
	if err := m.InsertPlan(ctx, fleet.LeasePlan{
		ID: "plan-1", Name: "2026 standard", Active: true, EffectiveFrom: date(2025, 1, 1),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	for i, key := range keys {
		if err := m.InsertRate(ctx, fleet.LeaseRate{
			ID: "rate-" + string(rune('a'+i)), PlanID: "plan-1",
			CabType: key.CabType, AirportLicense: key.AirportLicense,
			ShiftType: key.ShiftType, DayOfWeek: key.DayOfWeek,
			BaseRate: dec("85.00"), MileageRate: dec("0.40"),
		}); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
}

func sedanDay(day time.Weekday) fleet.RateKey {
	return fleet.RateKey{CabType: fleet.CabSedan, ShiftType: fleet.ShiftDay, DayOfWeek: day}
}

func seedDrivenDay(t *testing.T, m *store.Memory, id, driverID, driverNumber string, day int, miles string) {
	t.Helper()
	if err := m.InsertDriverShift(context.Background(), fleet.DriverShift{
		ID: id, DriverID: fleet.DriverID(driverID), DriverNumber: driverNumber, CabNumber: "101",
		ShiftType: fleet.ShiftDay,
		LogonAt:   time.Date(2026, 1, day, 5, 0, 0, 0, time.UTC),
		LogoffAt:  time.Date(2026, 1, day, 15, 0, 0, 0, time.UTC),
		TotalDistance: dec(miles), Status: fleet.DrivenCompleted,
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

// =============================================================================
// TWO VIEWS OF ONE TRANSACTION
// =============================================================================

func TestLeaseReports_RevenueAndExpenseAgree(t *testing.T) {
	// GIVEN: Three completed day shifts driven by a non-owner on an owned slot
	// WHEN: Computing the owner's revenue view and the driver's expense view
	// THEN: Same lines, same total on both sides

	m, _, _, _ := fleetFixture(t)
	// 2026-01-05/06/07 are Mon/Tue/Wed.
	seedLeaseRates(t, m, sedanDay(time.Monday), sedanDay(time.Tuesday), sedanDay(time.Wednesday))
	seedDrivenDay(t, m, "ds-1", "drv-1", "5001", 5, "100")
	seedDrivenDay(t, m, "ds-2", "drv-1", "5001", 6, "80")
	seedDrivenDay(t, m, "ds-3", "drv-1", "5001", 7, "0")

	lr := billing.NewLeaseReporter(m, m)
	ctx := context.Background()

	revenue, err := lr.Revenue(ctx, "9001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Revenue failed: %v", err)
	}
	expense, err := lr.Expense(ctx, "5001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Expense failed: %v", err)
	}

	if len(revenue.Lines) != 3 || len(expense.Lines) != 3 {
		t.Fatalf("expected 3 lines on each side, got %d revenue / %d expense",
			len(revenue.Lines), len(expense.Lines))
	}
	if !revenue.Total.Equal(expense.Total) {
		t.Errorf("views disagree: revenue %s, expense %s", revenue.Total, expense.Total)
	}
	// 85+40.00, 85+32.00, 85+4.00 (zero distance charged at fallback miles).
	if !revenue.Total.Equal(dec("331.00")) {
		t.Errorf("expected total 331.00, got %s", revenue.Total)
	}
}

func TestLeaseReports_SelfDrivenExcludedFromBothViews(t *testing.T) {
	m, _, _, _ := fleetFixture(t)
	seedLeaseRates(t, m, sedanDay(time.Monday), sedanDay(time.Tuesday))
	seedDrivenDay(t, m, "ds-own", "own-1", "9001", 5, "60")
	seedDrivenDay(t, m, "ds-drv", "drv-1", "5001", 6, "60")

	lr := billing.NewLeaseReporter(m, m)
	ctx := context.Background()

	revenue, err := lr.Revenue(ctx, "9001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Revenue failed: %v", err)
	}
	if len(revenue.Lines) != 1 || revenue.SkippedSelfDriven != 1 {
		t.Errorf("revenue: expected 1 line and 1 self-driven skip, got %d lines / %d skipped",
			len(revenue.Lines), revenue.SkippedSelfDriven)
	}

	expense, err := lr.Expense(ctx, "9001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Expense failed: %v", err)
	}
	if len(expense.Lines) != 0 || expense.SkippedSelfDriven != 1 {
		t.Errorf("expense: owner driving their own slot should be excluded, got %d lines / %d skipped",
			len(expense.Lines), expense.SkippedSelfDriven)
	}
}

func TestLeaseReports_MissingRateFallsBackToDefault(t *testing.T) {
	// GIVEN: No lease plan at all
	// WHEN: Computing a report
	// THEN: The line is kept at the fixed default base rate, marked defaulted

	m, _, _, _ := fleetFixture(t)
	seedDrivenDay(t, m, "ds-1", "drv-1", "5001", 5, "100")

	lr := billing.NewLeaseReporter(m, m)
	expense, err := lr.Expense(context.Background(), "5001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Expense failed: %v", err)
	}
	if expense.Defaulted != 1 || len(expense.Lines) != 1 {
		t.Fatalf("expected 1 defaulted line, got %d lines / %d defaulted",
			len(expense.Lines), expense.Defaulted)
	}
	line := expense.Lines[0]
	if line.Charge.RateSource != "default" {
		t.Errorf("expected default rate source, got %q", line.Charge.RateSource)
	}
	if !line.Charge.TotalLease.Equal(fleet.DefaultBaseRateFallback) {
		t.Errorf("expected total %s, got %s", fleet.DefaultBaseRateFallback, line.Charge.TotalLease)
	}
}

func TestLeaseReports_OwnershipChangeSplitsRevenue(t *testing.T) {
	// GIVEN: The day slot transfers from own-1 to own-2 on 2026-01-16, with
	//        one driven shift on each side of the transfer
	// WHEN: Computing each owner's revenue
	// THEN: Each owner collects exactly the shift driven during their tenure

	m, _, _, _ := fleetFixture(t)
	ctx := context.Background()

	must := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	must(m.InsertDriver(ctx, fleet.Driver{ID: "own-2", DriverNumber: "9002", Name: "Bern", IsOwner: true}))
	// Close own-1's tenure on the day slot and start own-2's. The fixture's
	// open-ended row is superseded by re-inserting it with an end date.
	end := date(2026, 1, 15)
	must(m.InsertOwnership(ctx, fleet.ShiftOwnership{
		ID: "o-s-101-day", ShiftID: "s-101-day", DriverID: "own-1", StartDate: date(2024, 1, 1), EndDate: &end,
	}))
	must(m.InsertOwnership(ctx, fleet.ShiftOwnership{
		ID: "o-transfer", ShiftID: "s-101-day", DriverID: "own-2", StartDate: date(2026, 1, 16),
	}))

	// Mon Jan 5 under own-1, Mon Jan 19 under own-2.
	seedLeaseRates(t, m, sedanDay(time.Monday))
	seedDrivenDay(t, m, "ds-before", "drv-1", "5001", 5, "50")
	seedDrivenDay(t, m, "ds-after", "drv-1", "5001", 19, "50")

	lr := billing.NewLeaseReporter(m, m)

	before, err := lr.Revenue(ctx, "9001", janFrom, janTo)
	if err != nil {
		t.Fatalf("Revenue(9001) failed: %v", err)
	}
	if len(before.Lines) != 1 || before.Lines[0].DriverShiftID != "ds-before" {
		t.Errorf("own-1 should collect only ds-before, got %+v", before.Lines)
	}

	after, err := lr.Revenue(ctx, "9002", janFrom, janTo)
	if err != nil {
		t.Fatalf("Revenue(9002) failed: %v", err)
	}
	if len(after.Lines) != 1 || after.Lines[0].DriverShiftID != "ds-after" {
		t.Errorf("own-2 should collect only ds-after, got %+v", after.Lines)
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_BalancedPeriod(t *testing.T) {
	// GIVEN: A period of ordinary driven shifts with full rate coverage
	// WHEN: Reconciling
	// THEN: Both sides total the same and no per-shift mismatch is reported

	m, _, _, _ := fleetFixture(t)
	seedLeaseRates(t, m, sedanDay(time.Monday), sedanDay(time.Tuesday), sedanDay(time.Wednesday))
	seedDrivenDay(t, m, "ds-1", "drv-1", "5001", 5, "100")
	seedDrivenDay(t, m, "ds-2", "drv-1", "5001", 6, "80")
	seedDrivenDay(t, m, "ds-3", "drv-1", "5001", 7, "120")

	lr := billing.NewLeaseReporter(m, m)
	report, err := lr.Reconcile(context.Background(), janFrom, janTo)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Balanced() {
		t.Errorf("expected balanced period: revenue %s, expense %s",
			report.TotalRevenue, report.TotalExpense)
	}
	if len(report.Mismatches) != 0 {
		t.Errorf("expected no mismatches, got %d", len(report.Mismatches))
	}
	if report.Errors != 0 {
		t.Errorf("expected no errors, got %d", report.Errors)
	}
}

func TestReconcile_SelfDrivenDoesNotUnbalance(t *testing.T) {
	m, _, _, _ := fleetFixture(t)
	seedLeaseRates(t, m, sedanDay(time.Monday), sedanDay(time.Tuesday))
	seedDrivenDay(t, m, "ds-own", "own-1", "9001", 5, "60")
	seedDrivenDay(t, m, "ds-drv", "drv-1", "5001", 6, "60")

	lr := billing.NewLeaseReporter(m, m)
	report, err := lr.Reconcile(context.Background(), janFrom, janTo)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Balanced() {
		t.Errorf("self-driven shifts must drop out of both sides: revenue %s, expense %s",
			report.TotalRevenue, report.TotalExpense)
	}
	if len(report.Mismatches) != 0 {
		t.Errorf("expected no mismatches, got %d", len(report.Mismatches))
	}
}
