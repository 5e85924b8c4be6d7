package fleet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/fleet/store"
)

// 2025-06-16 is a Monday. The rate-table key includes day-of-week, so the
// fixture pins the driven shift to a known weekday.
func drivenShift(distance string) fleet.DriverShift {
	return fleet.DriverShift{
		ID:            "ds-1",
		DriverID:      "drv-1",
		DriverNumber:  "5001",
		CabNumber:     "101",
		ShiftType:     fleet.ShiftDay,
		LogonAt:       time.Date(2025, 6, 16, 5, 0, 0, 0, time.UTC),
		LogoffAt:      time.Date(2025, 6, 16, 15, 30, 0, 0, time.UTC),
		TotalDistance: dec(distance),
		Status:        fleet.DrivenCompleted,
	}
}

func daySlot() fleet.CabShift {
	return fleet.CabShift{
		ID: "s-101-day", CabID: "cab-101", CabNumber: "101", ShiftType: fleet.ShiftDay,
		Status: fleet.ShiftActive, OwnerID: "own-1", CabType: fleet.CabSedan, ShareType: fleet.ShareSingle,
	}
}

func owner() fleet.Driver {
	return fleet.Driver{ID: "own-1", DriverNumber: "9001", Name: "Alva", IsOwner: true}
}

func seedPlanWithRate(t *testing.T, m *store.Memory, base, mileage string) {
	t.Helper()
	ctx := context.Background()
	if err := m.InsertPlan(ctx, fleet.LeasePlan{
		ID: "plan-1", Name: "2025 standard", Active: true, EffectiveFrom: date(2025, 1, 1),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	if err := m.InsertRate(ctx, fleet.LeaseRate{
		ID: "rate-1", PlanID: "plan-1", CabType: fleet.CabSedan, AirportLicense: false,
		ShiftType: fleet.ShiftDay, DayOfWeek: time.Monday,
		BaseRate: dec(base), MileageRate: dec(mileage),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

// =============================================================================
// RATE TABLE
// =============================================================================

func TestLease_RateTableResolution(t *testing.T) {
	// GIVEN: A plan rate of 85.00 base + 0.35/mile, a 120.5 mile shift
	// WHEN: Computing the lease
	// THEN: Mileage lease is 42.18 (rounded to cents) and total is 127.18

	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("120.5"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if charge.RateSource != "rate_table" {
		t.Errorf("expected rate_table source, got %q", charge.RateSource)
	}
	if !charge.MileageLease.Equal(dec("42.18")) {
		t.Errorf("expected mileage lease 42.18, got %s", charge.MileageLease)
	}
	if !charge.TotalLease.Equal(dec("127.18")) {
		t.Errorf("expected total 127.18, got %s", charge.TotalLease)
	}
	if charge.SelfDriven {
		t.Error("non-owner shift flagged self-driven")
	}
}

func TestLease_ZeroDistanceUsesFallbackMiles(t *testing.T) {
	// A meter that reported nothing charges the fixed fallback mileage.
	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("0"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.MilesCharged.Equal(decimal.NewFromInt(fleet.DefaultMileageFallbackMiles)) {
		t.Errorf("expected %d fallback miles, got %s", fleet.DefaultMileageFallbackMiles, charge.MilesCharged)
	}
	if !charge.MileageLease.Equal(dec("3.50")) {
		t.Errorf("expected mileage lease 3.50, got %s", charge.MileageLease)
	}
}

func TestLease_NegativeDistanceUsesFallbackMiles(t *testing.T) {
	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("-12"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.MilesCharged.Equal(decimal.NewFromInt(fleet.DefaultMileageFallbackMiles)) {
		t.Errorf("negative distance should charge fallback miles, got %s", charge.MilesCharged)
	}
}

// =============================================================================
// SELF-DRIVEN
// =============================================================================

func TestLease_SelfDrivenIsZero(t *testing.T) {
	// GIVEN: The driving driver is the shift's owner
	// WHEN: Computing the lease
	// THEN: The charge carries the self-driven flag and zero amounts

	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")

	ds := drivenShift("200")
	ds.DriverNumber = owner().DriverNumber

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), ds, daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.SelfDriven {
		t.Fatal("expected self-driven flag")
	}
	if !charge.TotalLease.IsZero() || !charge.BaseRate.IsZero() {
		t.Errorf("self-driven charge should be zero, got base=%s total=%s", charge.BaseRate, charge.TotalLease)
	}
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestLease_OverrideBeatsRateTable(t *testing.T) {
	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")
	if err := m.InsertOverride(context.Background(), fleet.LeaseRateOverride{
		ID: "ov-1", OwnerID: "own-1",
		BaseRate: dec("70.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("100"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if charge.RateSource != "override" {
		t.Fatalf("expected override source, got %q", charge.RateSource)
	}
	if !charge.TotalLease.Equal(dec("95.00")) {
		t.Errorf("expected total 95.00 (70 + 100*0.25), got %s", charge.TotalLease)
	}
}

func TestLease_MostSpecificOverrideWins(t *testing.T) {
	// GIVEN: An owner-wide override and a cab+shift-type one
	// WHEN: The driven shift matches both
	// THEN: The narrower override's rate applies

	m := store.NewMemory()
	ctx := context.Background()
	cabID := fleet.CabID("cab-101")
	day := fleet.ShiftDay

	mustInsert := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-wide", OwnerID: "own-1",
		BaseRate: dec("70.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-narrow", OwnerID: "own-1", CabID: &cabID, ShiftType: &day,
		BaseRate: dec("60.00"), MileageRate: dec("0.20"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(ctx, drivenShift("100"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.BaseRate.Equal(dec("60.00")) {
		t.Errorf("expected the narrow override's base rate 60.00, got %s", charge.BaseRate)
	}
}

func TestLease_OverrideTieBreaksToNewest(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	mustInsert := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-old", OwnerID: "own-1",
		BaseRate: dec("70.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-new", OwnerID: "own-1",
		BaseRate: dec("75.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 3, 1), CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(ctx, drivenShift("100"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.BaseRate.Equal(dec("75.00")) {
		t.Errorf("tie should break to the newest override, got base %s", charge.BaseRate)
	}
}

func TestLease_OverrideTieBreaksToLargerID(t *testing.T) {
	// Same specificity, same CreatedAt: the larger id wins deterministically.
	m := store.NewMemory()
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mustInsert := func(err error) {
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-a", OwnerID: "own-1",
		BaseRate: dec("70.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: created,
	}))
	mustInsert(m.InsertOverride(ctx, fleet.LeaseRateOverride{
		ID: "ov-b", OwnerID: "own-1",
		BaseRate: dec("72.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), CreatedAt: created,
	}))

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(ctx, drivenShift("100"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if !charge.BaseRate.Equal(dec("72.00")) {
		t.Errorf("tie should break to the larger id, got base %s", charge.BaseRate)
	}
}

func TestLease_ExpiredOverrideIgnored(t *testing.T) {
	m := store.NewMemory()
	seedPlanWithRate(t, m, "85.00", "0.35")
	expired := date(2025, 5, 31)
	if err := m.InsertOverride(context.Background(), fleet.LeaseRateOverride{
		ID: "ov-expired", OwnerID: "own-1",
		BaseRate: dec("70.00"), MileageRate: dec("0.25"),
		EffectiveFrom: date(2025, 1, 1), EffectiveTo: &expired,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	charge, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("100"), daySlot(), owner())
	if err != nil {
		t.Fatalf("CalculateForShift failed: %v", err)
	}
	if charge.RateSource != "rate_table" {
		t.Errorf("expired override must not apply, got source %q", charge.RateSource)
	}
}

// =============================================================================
// NO APPLICABLE RATE
// =============================================================================

func TestLease_NoPlan(t *testing.T) {
	m := store.NewMemory()
	_, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("100"), daySlot(), owner())
	if !errors.Is(err, fleet.ErrNoApplicableLeaseRate) {
		t.Fatalf("expected ErrNoApplicableLeaseRate, got %v", err)
	}
	if !fleet.IsNotFound(err) {
		t.Error("no-rate failure should classify as not-found")
	}
}

func TestLease_PlanWithoutMatchingRate(t *testing.T) {
	// The plan exists but its table has no row for this slot's key.
	m := store.NewMemory()
	if err := m.InsertPlan(context.Background(), fleet.LeasePlan{
		ID: "plan-1", Name: "sparse", Active: true, EffectiveFrom: date(2025, 1, 1),
	}); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	_, err := fleet.NewLeaseEngine(m).CalculateForShift(context.Background(), drivenShift("100"), daySlot(), owner())
	if !errors.Is(err, fleet.ErrNoApplicableLeaseRate) {
		t.Fatalf("expected ErrNoApplicableLeaseRate, got %v", err)
	}
}
