/*
store.go - Repository interfaces the engines read through

PURPOSE:
  The engines are deterministic computations over a relational snapshot; this
  file is the entire surface they use to see that snapshot. Implementations:
  fleet/store (memory, for tests and dev) and store/sqlite (production).

QUERY SHAPES:
  The expense reads come in exactly four parametrized shapes: by shift
  profile, by specific shift, by specific person, and "effective between"
  with no target filter. Everything the billing orchestration needs is built
  from these.

WRITE DISCIPLINE:
  Recurring-expense history is append-only: UpdateRecurring exists solely so
  the rate-versioning service can soft-close the current version
  (effective_to + active). Implementations must not expose amount edits on
  closed rows. One-time expenses are ordinary mutable rows.
*/
package fleet

import (
	"context"
	"time"
)

// =============================================================================
// EXPENSE STORE
// =============================================================================

type ExpenseStore interface {
	RecurringByID(ctx context.Context, id ExpenseID) (*RecurringExpense, error)

	// The four parametrized query shapes. All return rows whose effective
	// range overlaps [from, to], including soft-closed historical versions.
	RecurringByProfile(ctx context.Context, profileID ProfileID, from, to Date) ([]RecurringExpense, error)
	RecurringByShift(ctx context.Context, shiftID ShiftID, from, to Date) ([]RecurringExpense, error)
	RecurringByPerson(ctx context.Context, personID DriverID, from, to Date) ([]RecurringExpense, error)
	RecurringEffectiveBetween(ctx context.Context, from, to Date) ([]RecurringExpense, error)

	InsertRecurring(ctx context.Context, e RecurringExpense) error
	// UpdateRecurring is for soft-closing/reactivating a version only.
	UpdateRecurring(ctx context.Context, e RecurringExpense) error

	OneTimeByID(ctx context.Context, id ExpenseID) (*OneTimeExpense, error)
	OneTimeInRange(ctx context.Context, from, to Date) ([]OneTimeExpense, error)
	OneTimeByPerson(ctx context.Context, personID DriverID, from, to Date) ([]OneTimeExpense, error)
	OneTimeByShift(ctx context.Context, shiftID ShiftID, from, to Date) ([]OneTimeExpense, error)

	InsertOneTime(ctx context.Context, e OneTimeExpense) error
	UpdateOneTime(ctx context.Context, e OneTimeExpense) error
	DeleteOneTime(ctx context.Context, id ExpenseID) error

	CategoryByID(ctx context.Context, id CategoryID) (*ExpenseCategory, error)
	InsertCategory(ctx context.Context, c ExpenseCategory) error
}

// =============================================================================
// FLEET STORE - Cabs, shifts, drivers, ownership, attributes
// =============================================================================

type FleetStore interface {
	CabByID(ctx context.Context, id CabID) (*Cab, error)
	CabByNumber(ctx context.Context, number string) (*Cab, error)
	InsertCab(ctx context.Context, c Cab) error

	DriverByID(ctx context.Context, id DriverID) (*Driver, error)
	DriverByNumber(ctx context.Context, number string) (*Driver, error)
	Drivers(ctx context.Context) ([]Driver, error)
	InsertDriver(ctx context.Context, d Driver) error

	ShiftByID(ctx context.Context, id ShiftID) (*CabShift, error)
	ShiftsByStatus(ctx context.Context, status ShiftStatus) ([]CabShift, error)
	ShiftsByProfile(ctx context.Context, profileID ProfileID) ([]CabShift, error)
	ShiftsByOwner(ctx context.Context, ownerID DriverID) ([]CabShift, error)
	ShiftsByCab(ctx context.Context, cabID CabID) ([]CabShift, error)
	InsertShift(ctx context.Context, s CabShift) error

	// OwnershipAt returns the ownership record covering the date, nil when
	// the slot was unowned then.
	OwnershipAt(ctx context.Context, shiftID ShiftID, d Date) (*ShiftOwnership, error)
	OwnershipsByOwner(ctx context.Context, ownerID DriverID, from, to Date) ([]ShiftOwnership, error)
	InsertOwnership(ctx context.Context, o ShiftOwnership) error

	DriverShiftsByDriver(ctx context.Context, driverNumber string, from, to Date) ([]DriverShift, error)
	DriverShiftsByCab(ctx context.Context, cabNumber string, from, to Date) ([]DriverShift, error)
	DriverShiftsInRange(ctx context.Context, from, to Date) ([]DriverShift, error)
	InsertDriverShift(ctx context.Context, ds DriverShift) error

	AttributeValuesByShift(ctx context.Context, shiftID ShiftID) ([]CabAttributeValue, error)
	AttributeValuesByType(ctx context.Context, attrTypeID AttributeTypeID) ([]CabAttributeValue, error)
}

// =============================================================================
// LEASE STORE - Plans, rate table, overrides
// =============================================================================

type LeaseStore interface {
	// PlanCovering returns the active lease plan whose effective range
	// contains the date. NotFoundError when none does.
	PlanCovering(ctx context.Context, d Date) (*LeasePlan, error)
	InsertPlan(ctx context.Context, p LeasePlan) error

	RateLookup(ctx context.Context, planID string, key RateKey) (*LeaseRate, error)
	InsertRate(ctx context.Context, r LeaseRate) error

	// OverridesForOwner returns every override for the owner in force on the
	// date; the engine picks the most specific match.
	OverridesForOwner(ctx context.Context, ownerID DriverID, d Date) ([]LeaseRateOverride, error)
	InsertOverride(ctx context.Context, ov LeaseRateOverride) error
}

// RateKey is the rate-table lookup key.
type RateKey struct {
	CabType        CabType
	AirportLicense bool
	ShiftType      ShiftType
	DayOfWeek      time.Weekday
}
