package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/fleet/store"
)

func date(y int, m time.Month, d int) fleet.Date { return fleet.NewDate(y, m, d) }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fleetFixture seeds one owner with two standard-profile slots on cab 101 and
// one non-owner driver. Ownership rows back the owner-scoped expansions.
func fleetFixture(t *testing.T) (*store.Memory, fleet.Driver, fleet.Driver, []fleet.CabShift) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	must := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	owner := fleet.Driver{ID: "own-1", DriverNumber: "9001", Name: "Alva", IsOwner: true}
	driver := fleet.Driver{ID: "drv-1", DriverNumber: "5001", Name: "Cato", IsOwner: false}
	must(m.InsertDriver(ctx, owner))
	must(m.InsertDriver(ctx, driver))
	must(m.InsertCab(ctx, fleet.Cab{ID: "cab-101", CabNumber: "101"}))

	shifts := []fleet.CabShift{
		{ID: "s-101-day", CabID: "cab-101", CabNumber: "101", ShiftType: fleet.ShiftDay,
			Status: fleet.ShiftActive, OwnerID: owner.ID, ProfileID: "standard", CabType: fleet.CabSedan, ShareType: fleet.ShareSingle},
		{ID: "s-101-night", CabID: "cab-101", CabNumber: "101", ShiftType: fleet.ShiftNight,
			Status: fleet.ShiftActive, OwnerID: owner.ID, ProfileID: "standard", CabType: fleet.CabSedan, ShareType: fleet.ShareSingle},
	}
	for _, s := range shifts {
		must(m.InsertShift(ctx, s))
		must(m.InsertOwnership(ctx, fleet.ShiftOwnership{
			ID: "o-" + string(s.ID), ShiftID: s.ID, DriverID: owner.ID, StartDate: date(2024, 1, 1),
		}))
	}
	return m, owner, driver, shifts
}

func monthlyRecurring(id string, app fleet.ApplicationType, target fleet.TargetRef, amount string) fleet.RecurringExpense {
	return fleet.RecurringExpense{
		ID: fleet.ExpenseID(id), CategoryID: "cat-1",
		Application: app, Target: target,
		Amount: dec(amount), Billing: fleet.BillMonthly,
		EffectiveFrom: date(2025, 1, 1), Active: true,
	}
}

// January 2026, a full month so monthly amounts come through unprorated.
var (
	janFrom = date(2026, time.January, 1)
	janTo   = date(2026, time.January, 31)
)

// =============================================================================
// RECURRING
// =============================================================================

func TestApplicableRecurring_DedupesProfileMatchAcrossShifts(t *testing.T) {
	// GIVEN: Two slots sharing a profile and one SHIFT_PROFILE expense
	// WHEN: Gathering the owner's recurring charges
	// THEN: The expense appears once, not once per matching slot

	m, owner, _, shifts := fleetFixture(t)
	ctx := context.Background()
	if err := m.InsertRecurring(ctx, monthlyRecurring("exp-prof", fleet.AppShiftProfile,
		fleet.TargetRef{ProfileID: "standard"}, "100.00")); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableRecurring(ctx, owner, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring failed: %v", err)
	}
	if len(batch.Expenses) != 1 {
		t.Fatalf("expected 1 resolved expense, got %d", len(batch.Expenses))
	}
	if !batch.Expenses[0].LineTotal().Equal(dec("100.00")) {
		t.Errorf("expected line total 100.00, got %s", batch.Expenses[0].LineTotal())
	}
}

func TestApplicableRecurring_DriverNotBilledShiftScopedCharges(t *testing.T) {
	// A driver who drove the slot is not its owner; shift-scoped charges
	// never reach them even when the slot is passed in.
	m, _, driver, shifts := fleetFixture(t)
	ctx := context.Background()
	if err := m.InsertRecurring(ctx, monthlyRecurring("exp-shift", fleet.AppSpecificShift,
		fleet.TargetRef{ShiftID: "s-101-day"}, "55.00")); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableRecurring(ctx, driver, shifts[:1], janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring failed: %v", err)
	}
	if len(batch.Expenses) != 0 {
		t.Errorf("driver should have no shift-scoped charges, got %d", len(batch.Expenses))
	}
}

func TestApplicableRecurring_FleetWideAsymmetry(t *testing.T) {
	// GIVEN: An ALL_OWNERS and an ALL_DRIVERS expense
	// WHEN: Gathering for an owner and for a non-owner driver
	// THEN: Each sees only theirs

	m, owner, driver, shifts := fleetFixture(t)
	ctx := context.Background()

	must := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	must(m.InsertRecurring(ctx, monthlyRecurring("exp-owners", fleet.AppAllOwners, fleet.TargetRef{}, "40.00")))
	must(m.InsertRecurring(ctx, monthlyRecurring("exp-drivers", fleet.AppAllDrivers, fleet.TargetRef{}, "25.00")))

	svc := billing.NewExpenseService(m, m)

	ownerBatch, err := svc.ApplicableRecurring(ctx, owner, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring(owner) failed: %v", err)
	}
	if len(ownerBatch.Expenses) != 1 || ownerBatch.Expenses[0].Expense.ID != "exp-owners" {
		t.Errorf("owner should see exactly exp-owners, got %+v", ownerBatch.Expenses)
	}

	driverBatch, err := svc.ApplicableRecurring(ctx, driver, nil, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring(driver) failed: %v", err)
	}
	if len(driverBatch.Expenses) != 1 || driverBatch.Expenses[0].Expense.ID != "exp-drivers" {
		t.Errorf("driver should see exactly exp-drivers, got %+v", driverBatch.Expenses)
	}
}

func TestApplicableRecurring_AllActiveShiftsExpandsPerShift(t *testing.T) {
	// GIVEN: An ALL_ACTIVE_SHIFTS expense of 30.00 and an owner with 2 slots
	// WHEN: Gathering the owner's recurring charges
	// THEN: Two matched shifts, line total 60.00

	m, owner, _, shifts := fleetFixture(t)
	ctx := context.Background()
	if err := m.InsertRecurring(ctx, monthlyRecurring("exp-fleet", fleet.AppAllActiveShifts,
		fleet.TargetRef{}, "30.00")); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableRecurring(ctx, owner, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring failed: %v", err)
	}
	if len(batch.Expenses) != 1 {
		t.Fatalf("expected 1 resolved expense, got %d", len(batch.Expenses))
	}
	resolved := batch.Expenses[0]
	if len(resolved.MatchedShifts) != 2 {
		t.Fatalf("expected 2 matched shifts, got %d", len(resolved.MatchedShifts))
	}
	if !resolved.LineTotal().Equal(dec("60.00")) {
		t.Errorf("expected line total 60.00, got %s", resolved.LineTotal())
	}
}

func TestApplicableRecurring_PerShiftCountsDrivenOccurrences(t *testing.T) {
	// GIVEN: A PER_SHIFT expense of 7.50 on the day slot, three completed
	//        driven day shifts, one voided, one on the night slot
	// WHEN: Gathering the owner's recurring charges
	// THEN: 3 occurrences, line total 22.50

	m, owner, _, shifts := fleetFixture(t)
	ctx := context.Background()

	must := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	perShift := monthlyRecurring("exp-per-shift", fleet.AppSpecificShift,
		fleet.TargetRef{ShiftID: "s-101-day"}, "7.50")
	perShift.Billing = fleet.BillPerShift
	must(m.InsertRecurring(ctx, perShift))

	logon := func(day int, hour int) time.Time {
		return time.Date(2026, 1, day, hour, 0, 0, 0, time.UTC)
	}
	seedDriven := func(id string, day int, st fleet.ShiftType, status fleet.DriverShiftStatus) {
		must(m.InsertDriverShift(ctx, fleet.DriverShift{
			ID: id, DriverID: "drv-1", DriverNumber: "5001", CabNumber: "101",
			ShiftType: st, LogonAt: logon(day, 5), LogoffAt: logon(day, 15),
			TotalDistance: dec("90"), Status: status,
		}))
	}
	seedDriven("ds-1", 5, fleet.ShiftDay, fleet.DrivenCompleted)
	seedDriven("ds-2", 6, fleet.ShiftDay, fleet.DrivenCompleted)
	seedDriven("ds-3", 7, fleet.ShiftDay, fleet.DrivenCompleted)
	seedDriven("ds-4", 8, fleet.ShiftDay, fleet.DrivenVoided)
	seedDriven("ds-5", 9, fleet.ShiftNight, fleet.DrivenCompleted)

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableRecurring(ctx, owner, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring failed: %v", err)
	}
	if len(batch.Expenses) != 1 {
		t.Fatalf("expected 1 resolved expense, got %d", len(batch.Expenses))
	}
	resolved := batch.Expenses[0]
	if resolved.Occurrences != 3 {
		t.Errorf("expected 3 occurrences, got %d", resolved.Occurrences)
	}
	if !resolved.LineTotal().Equal(dec("22.50")) {
		t.Errorf("expected line total 22.50, got %s", resolved.LineTotal())
	}
}

func TestApplicableRecurring_BrokenRowSkippedNotFatal(t *testing.T) {
	// GIVEN: A per-shift expense targeting a slot that no longer exists
	// WHEN: Gathering charges with the stale slot still in the shift list
	// THEN: The row is skipped and counted; the batch succeeds

	m, owner, _, shifts := fleetFixture(t)
	ctx := context.Background()

	ghost := fleet.CabShift{ID: "s-ghost", CabID: "cab-gone", CabNumber: "999",
		ShiftType: fleet.ShiftDay, Status: fleet.ShiftActive, OwnerID: owner.ID}
	broken := monthlyRecurring("exp-broken", fleet.AppSpecificShift,
		fleet.TargetRef{ShiftID: "s-ghost"}, "10.00")
	broken.Billing = fleet.BillPerShift
	if err := m.InsertRecurring(ctx, broken); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableRecurring(ctx, owner, append(shifts, ghost), janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableRecurring failed: %v", err)
	}
	if batch.Skipped != 1 {
		t.Errorf("expected 1 skipped row, got %d", batch.Skipped)
	}
	if len(batch.Expenses) != 0 {
		t.Errorf("broken row must not resolve, got %d expenses", len(batch.Expenses))
	}
}

func TestApplicableRecurring_RejectsInvertedRange(t *testing.T) {
	m, owner, _, shifts := fleetFixture(t)
	svc := billing.NewExpenseService(m, m)
	_, err := svc.ApplicableRecurring(context.Background(), owner, shifts, janTo, janFrom)
	if !errors.Is(err, fleet.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

// =============================================================================
// ONE-TIME
// =============================================================================

func TestApplicableOneTime_PersonDirectWithinRange(t *testing.T) {
	m, _, driver, _ := fleetFixture(t)
	ctx := context.Background()

	must := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	must(m.InsertOneTime(ctx, fleet.OneTimeExpense{
		ID: "ot-in", CategoryID: "card-charge", Application: fleet.AppSpecificPerson,
		Target: fleet.TargetRef{DriverID: driver.ID}, Amount: dec("18.40"),
		ExpenseDate: date(2026, 1, 12), Description: "fuel card",
	}))
	must(m.InsertOneTime(ctx, fleet.OneTimeExpense{
		ID: "ot-out", CategoryID: "card-charge", Application: fleet.AppSpecificPerson,
		Target: fleet.TargetRef{DriverID: driver.ID}, Amount: dec("9.00"),
		ExpenseDate: date(2026, 2, 2), Description: "fuel card",
	}))

	svc := billing.NewExpenseService(m, m)
	batch, err := svc.ApplicableOneTime(ctx, driver, nil, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableOneTime failed: %v", err)
	}
	if len(batch.Expenses) != 1 || batch.Expenses[0].Expense.ID != "ot-in" {
		t.Fatalf("expected only ot-in, got %+v", batch.Expenses)
	}
	if !batch.Expenses[0].LineTotal().Equal(dec("18.40")) {
		t.Errorf("expected 18.40, got %s", batch.Expenses[0].LineTotal())
	}
}

func TestApplicableOneTime_ShiftTargetedOwnersOnly(t *testing.T) {
	m, owner, driver, shifts := fleetFixture(t)
	ctx := context.Background()
	if err := m.InsertOneTime(ctx, fleet.OneTimeExpense{
		ID: "ot-repair", CategoryID: "repair", Application: fleet.AppSpecificShift,
		Target: fleet.TargetRef{ShiftID: "s-101-day"}, Amount: dec("240.00"),
		ExpenseDate: date(2026, 1, 20), Description: "meter repair",
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	svc := billing.NewExpenseService(m, m)

	ownerBatch, err := svc.ApplicableOneTime(ctx, owner, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableOneTime(owner) failed: %v", err)
	}
	if len(ownerBatch.Expenses) != 1 {
		t.Errorf("owner should see the repair, got %d expenses", len(ownerBatch.Expenses))
	}

	driverBatch, err := svc.ApplicableOneTime(ctx, driver, shifts, janFrom, janTo)
	if err != nil {
		t.Fatalf("ApplicableOneTime(driver) failed: %v", err)
	}
	if len(driverBatch.Expenses) != 0 {
		t.Errorf("driver should not see shift-targeted repairs, got %d", len(driverBatch.Expenses))
	}
}
