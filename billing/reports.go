/*
reports.go - Lease revenue/expense reports and reconciliation

PURPOSE:
  Computes the two views of the same lease transaction:
  - Revenue: what an owner collects for shifts others drove on their slots
  - Expense: what a driver owes for shifts they drove on slots they don't own

  Both views run through the one LeaseEngine with identical rate resolution
  and mileage fallback, which is what makes the reconciliation invariant
  hold: summed expense over a period equals summed revenue for the same
  driven shifts.

DEBUG REPORT:
  A total mismatch is a detectable condition, not an exception. DebugReport
  recomputes both views per driven shift and lists every line where they
  disagree.

FAILURE HANDLING:
  Rate lookup failures inside a report are non-fatal: the line falls back to
  DefaultBaseRateFallback with a logged warning. A whole-person failure in a
  summary zeroes that person and logs; it never aborts the summary.
*/
package billing

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

type LeaseLine struct {
	DriverShiftID string
	ShiftID       fleet.ShiftID
	CabNumber     string
	Date          fleet.Date
	DriverNumber  string
	OwnerNumber   string
	Charge        fleet.LeaseCharge
}

type LeaseReport struct {
	PersonNumber string
	From, To     fleet.Date
	Lines        []LeaseLine
	Total        decimal.Decimal

	// SkippedSelfDriven counts shifts excluded because the driver owns them.
	SkippedSelfDriven int
	// Defaulted counts lines that fell back to the defensive base rate.
	Defaulted int
	// Errors counts rows skipped for reasons other than a missing rate.
	Errors int
}

// =============================================================================
// LEASE REPORTER
// =============================================================================

type LeaseReporter struct {
	Fleet  fleet.FleetStore
	Engine *fleet.LeaseEngine
}

func NewLeaseReporter(fleetStore fleet.FleetStore, leaseStore fleet.LeaseStore) *LeaseReporter {
	return &LeaseReporter{Fleet: fleetStore, Engine: fleet.NewLeaseEngine(leaseStore)}
}

// Revenue computes the owner-side lease view: every shift driven on a slot
// the owner owned during [from, to], excluding self-driven ones.
func (lr *LeaseReporter) Revenue(ctx context.Context, ownerNumber string, from, to fleet.Date) (*LeaseReport, error) {
	owner, err := lr.Fleet.DriverByNumber(ctx, ownerNumber)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, &fleet.NotFoundError{Kind: "driver", ID: ownerNumber}
	}

	report := &LeaseReport{PersonNumber: ownerNumber, From: from, To: to, Total: decimal.Zero}

	ownerships, err := lr.Fleet.OwnershipsByOwner(ctx, owner.ID, from, to)
	if err != nil {
		return nil, err
	}
	for _, o := range ownerships {
		slot, err := lr.Fleet.ShiftByID(ctx, o.ShiftID)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			report.Errors++
			continue
		}
		driven, err := lr.Fleet.DriverShiftsByCab(ctx, slot.CabNumber, from, to)
		if err != nil {
			return nil, err
		}
		for _, ds := range driven {
			if ds.ShiftType != slot.ShiftType || !fleet.DrivenShiftCounts(ds) {
				continue
			}
			if !o.Covers(ds.ShiftDate()) {
				continue // owned by someone else when this shift ran
			}
			lr.addLine(ctx, report, ds, *slot, *owner)
		}
	}
	return report, nil
}

// Expense computes the driver-side lease view: every shift the driver drove
// on a slot they did not own at the time.
func (lr *LeaseReporter) Expense(ctx context.Context, driverNumber string, from, to fleet.Date) (*LeaseReport, error) {
	driver, err := lr.Fleet.DriverByNumber(ctx, driverNumber)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, &fleet.NotFoundError{Kind: "driver", ID: driverNumber}
	}

	report := &LeaseReport{PersonNumber: driverNumber, From: from, To: to, Total: decimal.Zero}

	driven, err := lr.Fleet.DriverShiftsByDriver(ctx, driverNumber, from, to)
	if err != nil {
		return nil, err
	}
	for _, ds := range driven {
		if !fleet.DrivenShiftCounts(ds) {
			continue
		}
		slot, owner, err := lr.slotAndOwner(ctx, ds)
		if err != nil {
			log.Printf("billing: lease expense for %s: shift %s: %v", driverNumber, ds.ID, err)
			report.Errors++
			continue
		}
		lr.addLine(ctx, report, ds, slot, owner)
	}
	return report, nil
}

// addLine computes one lease leg and appends it, applying the defensive
// default rate on lookup failure.
func (lr *LeaseReporter) addLine(ctx context.Context, report *LeaseReport, ds fleet.DriverShift, slot fleet.CabShift, owner fleet.Driver) {
	charge, err := lr.Engine.CalculateForShift(ctx, ds, slot, owner)
	if err != nil {
		if !fleet.IsNotFound(err) {
			log.Printf("billing: lease for driven shift %s: %v", ds.ID, err)
			report.Errors++
			return
		}
		// Opportunistic context: substitute the fixed default base rate
		// rather than failing the whole report.
		log.Printf("billing: no lease rate for driven shift %s, using default base rate", ds.ID)
		charge = defaultedCharge(ds, slot)
		report.Defaulted++
	}
	if charge.SelfDriven {
		report.SkippedSelfDriven++
		return
	}
	report.Lines = append(report.Lines, LeaseLine{
		DriverShiftID: ds.ID,
		ShiftID:       slot.ID,
		CabNumber:     slot.CabNumber,
		Date:          ds.ShiftDate(),
		DriverNumber:  ds.DriverNumber,
		OwnerNumber:   owner.DriverNumber,
		Charge:        charge,
	})
	report.Total = report.Total.Add(charge.TotalLease)
}

func defaultedCharge(ds fleet.DriverShift, slot fleet.CabShift) fleet.LeaseCharge {
	miles := ds.TotalDistance
	if miles.IsZero() || miles.IsNegative() {
		miles = decimal.NewFromInt(fleet.DefaultMileageFallbackMiles)
	}
	return fleet.LeaseCharge{
		DriverShiftID: ds.ID,
		ShiftID:       slot.ID,
		ShiftDate:     ds.ShiftDate(),
		RateSource:    "default",
		BaseRate:      fleet.DefaultBaseRateFallback,
		MilesCharged:  miles,
		MileageLease:  decimal.Zero,
		TotalLease:    fleet.DefaultBaseRateFallback,
	}
}

// slotAndOwner locates the slot a driven shift occupied and its owner on the
// shift date.
func (lr *LeaseReporter) slotAndOwner(ctx context.Context, ds fleet.DriverShift) (fleet.CabShift, fleet.Driver, error) {
	cab, err := lr.Fleet.CabByNumber(ctx, ds.CabNumber)
	if err != nil {
		return fleet.CabShift{}, fleet.Driver{}, err
	}
	if cab == nil {
		return fleet.CabShift{}, fleet.Driver{}, &fleet.NotFoundError{Kind: "cab", ID: ds.CabNumber}
	}
	slots, err := lr.Fleet.ShiftsByCab(ctx, cab.ID)
	if err != nil {
		return fleet.CabShift{}, fleet.Driver{}, err
	}
	var slot *fleet.CabShift
	for i := range slots {
		if slots[i].ShiftType == ds.ShiftType {
			slot = &slots[i]
			break
		}
	}
	if slot == nil {
		return fleet.CabShift{}, fleet.Driver{}, &fleet.NotFoundError{Kind: "shift", ID: ds.CabNumber + "/" + string(ds.ShiftType)}
	}

	ownership, err := lr.Fleet.OwnershipAt(ctx, slot.ID, ds.ShiftDate())
	if err != nil {
		return fleet.CabShift{}, fleet.Driver{}, err
	}
	if ownership == nil {
		return fleet.CabShift{}, fleet.Driver{}, &fleet.NotFoundError{Kind: "ownership", ID: string(slot.ID)}
	}
	owner, err := lr.Fleet.DriverByID(ctx, ownership.DriverID)
	if err != nil {
		return fleet.CabShift{}, fleet.Driver{}, err
	}
	if owner == nil {
		return fleet.CabShift{}, fleet.Driver{}, &fleet.NotFoundError{Kind: "driver", ID: string(ownership.DriverID)}
	}
	return *slot, *owner, nil
}

// =============================================================================
// RECONCILIATION DEBUG REPORT
// =============================================================================

// DebugLine is one driven shift where the owner-side and driver-side
// computations disagree.
type DebugLine struct {
	DriverShiftID string
	Date          fleet.Date
	DriverNumber  string
	OwnerNumber   string
	RevenueSide   decimal.Decimal
	ExpenseSide   decimal.Decimal
	Difference    decimal.Decimal
}

type DebugReport struct {
	From, To     fleet.Date
	TotalRevenue decimal.Decimal
	TotalExpense decimal.Decimal
	Mismatches   []DebugLine
	Errors       int
}

// Balanced reports whether the two sides agree in aggregate.
func (d DebugReport) Balanced() bool { return d.TotalRevenue.Equal(d.TotalExpense) }

// Reconcile runs the owner-side revenue reports and the driver-side expense
// reports independently over every person touched by the period, then
// compares them per driven shift. A mismatch is reported, never thrown.
func (lr *LeaseReporter) Reconcile(ctx context.Context, from, to fleet.Date) (*DebugReport, error) {
	report := &DebugReport{From: from, To: to, TotalRevenue: decimal.Zero, TotalExpense: decimal.Zero}

	driven, err := lr.Fleet.DriverShiftsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	// Who drove, and who owned what they drove.
	driverNumbers := make(map[string]bool)
	ownerNumbers := make(map[string]bool)
	for _, ds := range driven {
		if !fleet.DrivenShiftCounts(ds) {
			continue
		}
		driverNumbers[ds.DriverNumber] = true
		_, owner, err := lr.slotAndOwner(ctx, ds)
		if err != nil {
			log.Printf("billing: reconcile shift %s: %v", ds.ID, err)
			report.Errors++
			continue
		}
		ownerNumbers[owner.DriverNumber] = true
	}

	// Owner side, indexed by driven shift.
	revenueByShift := make(map[string]LeaseLine)
	for number := range ownerNumbers {
		rev, err := lr.Revenue(ctx, number, from, to)
		if err != nil {
			log.Printf("billing: reconcile revenue for %s: %v", number, err)
			report.Errors++
			continue
		}
		for _, line := range rev.Lines {
			revenueByShift[line.DriverShiftID] = line
			report.TotalRevenue = report.TotalRevenue.Add(line.Charge.TotalLease)
		}
	}

	// Driver side, compared line by line against the owner side.
	for number := range driverNumbers {
		exp, err := lr.Expense(ctx, number, from, to)
		if err != nil {
			log.Printf("billing: reconcile expense for %s: %v", number, err)
			report.Errors++
			continue
		}
		for _, line := range exp.Lines {
			report.TotalExpense = report.TotalExpense.Add(line.Charge.TotalLease)
			revenue, ok := revenueByShift[line.DriverShiftID]
			revenueTotal := decimal.Zero
			if ok {
				revenueTotal = revenue.Charge.TotalLease
			}
			if !revenueTotal.Equal(line.Charge.TotalLease) {
				report.Mismatches = append(report.Mismatches, DebugLine{
					DriverShiftID: line.DriverShiftID,
					Date:          line.Date,
					DriverNumber:  line.DriverNumber,
					OwnerNumber:   line.OwnerNumber,
					RevenueSide:   revenueTotal,
					ExpenseSide:   line.Charge.TotalLease,
					Difference:    revenueTotal.Sub(line.Charge.TotalLease),
				})
			}
			delete(revenueByShift, line.DriverShiftID)
		}
	}

	// Revenue lines no expense line claimed.
	for _, line := range revenueByShift {
		report.Mismatches = append(report.Mismatches, DebugLine{
			DriverShiftID: line.DriverShiftID,
			Date:          line.Date,
			DriverNumber:  line.DriverNumber,
			OwnerNumber:   line.OwnerNumber,
			RevenueSide:   line.Charge.TotalLease,
			ExpenseSide:   decimal.Zero,
			Difference:    line.Charge.TotalLease,
		})
	}
	return report, nil
}
