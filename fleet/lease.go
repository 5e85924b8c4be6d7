/*
lease.go - Lease calculation for a single driven shift

PURPOSE:
  Computes the lease charge a non-owner driver owes the owner of the shift
  they drove: base rate plus a mileage component. Rate resolution is
  override-first, rate-table second.

RATE RESOLUTION:
  1. Owner-specific overrides in force on the shift date, most specific
     match wins. Specificity is the count of populated narrowing fields
     (cab, shift type, day-of-week); a cab+day+shift override beats an
     owner-wide one. Ties break to the newest CreatedAt, then to the
     lexicographically larger ID, so resolution is deterministic.
  2. Rate table of the lease plan active on the shift date, keyed by
     (cab type, airport license, shift type, day-of-week).
  3. Neither matches: ErrNoApplicableLeaseRate. The engine always surfaces
     the failure; opportunistic callers (reports) may substitute
     DefaultBaseRateFallback themselves, record creation must not.

SELF-DRIVEN EXCLUSION:
  If the driving driver owns the shift, no lease applies - the shift is
  excluded from both the owner's revenue view and the driver's expense view.
  Both views are computed with this one engine, which is what makes the
  revenue/expense reconciliation invariant hold.
*/
package fleet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMileageFallbackMiles is substituted when a driven shift reports no
// distance. Carried over from years of production statements; its economic
// rationale is undocumented, so it stays isolated here until someone decides
// to change it.
const DefaultMileageFallbackMiles = 10

// DefaultBaseRateFallback is the defensive base rate report callers may use
// when no lease rate resolves and the result only needs to be indicative.
var DefaultBaseRateFallback = decimal.NewFromInt(100)

// =============================================================================
// LEASE CHARGE
// =============================================================================

// LeaseCharge is the lease computed for one driven shift.
type LeaseCharge struct {
	DriverShiftID string
	ShiftID       ShiftID
	ShiftDate     Date

	// SelfDriven is set when the driver owns the shift; all amounts are zero
	// and the shift is excluded from both revenue and expense views.
	SelfDriven bool

	// RateSource records where the base rate came from: "override",
	// "rate_table" or "default" (defensive fallback applied by a caller).
	RateSource string

	BaseRate     decimal.Decimal
	MileageRate  decimal.Decimal
	MilesCharged decimal.Decimal
	MileageLease decimal.Decimal
	TotalLease   decimal.Decimal
}

// =============================================================================
// LEASE ENGINE
// =============================================================================

type LeaseEngine struct {
	Lease LeaseStore
}

func NewLeaseEngine(lease LeaseStore) *LeaseEngine { return &LeaseEngine{Lease: lease} }

// CalculateForShift computes the lease for one driven shift against the slot
// it occupied and the slot's owner on that date.
func (le *LeaseEngine) CalculateForShift(ctx context.Context, ds DriverShift, slot CabShift, owner Driver) (LeaseCharge, error) {
	charge := LeaseCharge{
		DriverShiftID: ds.ID,
		ShiftID:       slot.ID,
		ShiftDate:     ds.ShiftDate(),
	}

	if owner.DriverNumber == ds.DriverNumber {
		charge.SelfDriven = true
		return charge, nil
	}

	date := ds.ShiftDate()
	baseRate, mileageRate, source, err := le.resolveRate(ctx, slot, owner.ID, ds.ShiftType, date)
	if err != nil {
		return LeaseCharge{}, err
	}

	miles := ds.TotalDistance
	if miles.IsZero() || miles.IsNegative() {
		miles = decimal.NewFromInt(DefaultMileageFallbackMiles)
	}

	charge.RateSource = source
	charge.BaseRate = baseRate
	charge.MileageRate = mileageRate
	charge.MilesCharged = miles
	charge.MileageLease = mileageRate.Mul(miles).Round(2)
	charge.TotalLease = baseRate.Add(charge.MileageLease)
	return charge, nil
}

// resolveRate finds the applicable base and mileage rate: override first,
// then the active plan's rate table.
func (le *LeaseEngine) resolveRate(ctx context.Context, slot CabShift, ownerID DriverID,
	shiftType ShiftType, date Date) (base, mileage decimal.Decimal, source string, err error) {

	overrides, err := le.Lease.OverridesForOwner(ctx, ownerID, date)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	if best := pickOverride(overrides, slot, shiftType, date.Weekday()); best != nil {
		return best.BaseRate, best.MileageRate, "override", nil
	}

	plan, err := le.Lease.PlanCovering(ctx, date)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	if plan == nil {
		return decimal.Zero, decimal.Zero, "", ErrNoApplicableLeaseRate
	}

	rate, err := le.Lease.RateLookup(ctx, plan.ID, RateKey{
		CabType:        slot.CabType,
		AirportLicense: slot.AirportLicense,
		ShiftType:      shiftType,
		DayOfWeek:      date.Weekday(),
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	if rate == nil {
		return decimal.Zero, decimal.Zero, "", ErrNoApplicableLeaseRate
	}
	return rate.BaseRate, rate.MileageRate, "rate_table", nil
}

// pickOverride returns the matching override with the highest specificity.
// Ties: newest CreatedAt, then larger ID.
func pickOverride(overrides []LeaseRateOverride, slot CabShift, shiftType ShiftType, day time.Weekday) *LeaseRateOverride {
	var best *LeaseRateOverride
	bestScore := -1
	for i := range overrides {
		ov := &overrides[i]
		if !ov.Matches(slot, shiftType, day) {
			continue
		}
		score := overrideSpecificity(*ov)
		switch {
		case score > bestScore:
			best, bestScore = ov, score
		case score == bestScore && best != nil:
			if ov.CreatedAt.After(best.CreatedAt) ||
				(ov.CreatedAt.Equal(best.CreatedAt) && ov.ID > best.ID) {
				best = ov
			}
		}
	}
	return best
}

func overrideSpecificity(ov LeaseRateOverride) int {
	score := 0
	if ov.CabID != nil {
		score++
	}
	if ov.ShiftType != nil {
		score++
	}
	if ov.DayOfWeek != nil {
		score++
	}
	return score
}
