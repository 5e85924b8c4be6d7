/*
Package fleet provides the core financial engine for the taxi-fleet
back office.

PURPOSE:
  This package contains the domain model and the three calculation engines
  the back office is built on:
  - Proration: how much of a date-ranged charge falls in a query window
  - Resolution: which cabs/shifts/drivers an expense rule applies to
  - Lease: what a non-owner driver owes the owner for a driven shift

KEY CONCEPTS IN THIS FILE (types.go):
  - Cab/CabShift: a cab and its two persistent DAY/NIGHT slots
  - Driver: a person; owners are drivers with IsOwner set
  - ShiftOwnership: date-ranged record of who owned a slot
  - DriverShift: one actually-driven shift (the revenue-triggering event)
  - CabAttributeValue: versioned, date-ranged attribute on a slot

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount and rate
  2. History: versioned rows are soft-closed, never edited or deleted
  3. Read-only core: the engines read snapshots and never mutate fleet state
  4. Type safety: distinct ID types so a cab id cannot stand in for a shift id

SEE ALSO:
  - expense.go: Expense definitions and application types
  - proration.go, resolver.go, lease.go: The three engines
  - store.go: Repository interfaces the engines read through
*/
package fleet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CabID string
type ShiftID string
type DriverID string
type ProfileID string
type CategoryID string
type ExpenseID string
type AttributeTypeID string

// =============================================================================
// CAB & SHIFT SLOTS
// =============================================================================

type ShiftType string

const (
	ShiftDay   ShiftType = "DAY"
	ShiftNight ShiftType = "NIGHT"
)

type ShiftStatus string

const (
	ShiftActive   ShiftStatus = "ACTIVE"
	ShiftInactive ShiftStatus = "INACTIVE"
)

type CabType string

const (
	CabSedan   CabType = "SEDAN"
	CabMinivan CabType = "MINIVAN"
	CabWagon   CabType = "WAGON"
)

type ShareType string

const (
	ShareSingle ShareType = "SINGLE"
	ShareSplit  ShareType = "SPLIT"
)

type Cab struct {
	ID        CabID
	CabNumber string
}

// CabShift is the persistent slot: one cab, one of DAY/NIGHT. A cab always
// has exactly two of these. Owner and profile are the CURRENT assignment;
// history lives in ShiftOwnership.
type CabShift struct {
	ID        ShiftID
	CabID     CabID
	CabNumber string
	ShiftType ShiftType
	Status    ShiftStatus

	// Current assignment (mutated only by the administrative workflow,
	// never by the engines).
	OwnerID   DriverID
	ProfileID ProfileID

	// Shift-level attributes used by lease rate lookup.
	CabType        CabType
	ShareType      ShareType
	AirportLicense bool
}

// ShiftOwnership records which driver owned a slot over a date range.
// EndDate nil means current. Ranges never overlap per shift.
type ShiftOwnership struct {
	ID        string
	ShiftID   ShiftID
	DriverID  DriverID
	StartDate Date
	EndDate   *Date
}

// Covers reports whether the ownership was in force on the given date.
func (o ShiftOwnership) Covers(d Date) bool {
	if d.Before(o.StartDate) {
		return false
	}
	return o.EndDate == nil || d.BeforeOrEqual(*o.EndDate)
}

// =============================================================================
// DRIVERS
// =============================================================================

type Driver struct {
	ID           DriverID
	DriverNumber string
	Name         string
	IsOwner      bool
}

// =============================================================================
// DRIVEN SHIFTS
// =============================================================================

type DriverShiftStatus string

const (
	DrivenCompleted DriverShiftStatus = "COMPLETED"
	DrivenOpen      DriverShiftStatus = "OPEN"
	DrivenVoided    DriverShiftStatus = "VOIDED"
)

// DriverShift is one occurrence of a driver operating a cab. This is the
// event lease revenue/expense hangs off - distinct from the CabShift slot.
type DriverShift struct {
	ID           string
	DriverID     DriverID
	DriverNumber string
	CabNumber    string
	ShiftType    ShiftType
	LogonAt      time.Time
	LogoffAt     time.Time
	// TotalDistance in miles. Zero means the meter reported nothing;
	// the lease engine substitutes DefaultMileageFallbackMiles.
	TotalDistance decimal.Decimal
	Status        DriverShiftStatus
}

// ShiftDate is the accounting date of the driven shift (logon day).
func (ds DriverShift) ShiftDate() Date { return DateOf(ds.LogonAt) }

// =============================================================================
// SHIFT ATTRIBUTES - versioned the same way RecurringExpense is
// =============================================================================

// CabAttributeValue tags a CabShift with a typed attribute over a date range.
// Rate changes close the old row and open a new one; rows are never edited.
type CabAttributeValue struct {
	ID              string
	ShiftID         ShiftID
	AttributeTypeID AttributeTypeID
	Value           string
	EffectiveFrom   Date
	EffectiveTo     *Date
	Active          bool
}

// =============================================================================
// LEASE RATE TABLES
// =============================================================================

// LeasePlan versions the rate table itself. Plan selection picks the active
// plan whose effective range contains the shift date.
type LeasePlan struct {
	ID            string
	Name          string
	Active        bool
	EffectiveFrom Date
	EffectiveTo   *Date
}

func (p LeasePlan) Covers(d Date) bool {
	if !p.Active || d.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || d.BeforeOrEqual(*p.EffectiveTo)
}

// LeaseRate is one rate-table row. The lookup key is
// (plan, cab type, airport license, shift type, day-of-week).
type LeaseRate struct {
	ID             string
	PlanID         string
	CabType        CabType
	AirportLicense bool
	ShiftType      ShiftType
	DayOfWeek      time.Weekday
	BaseRate       decimal.Decimal
	MileageRate    decimal.Decimal
}

// LeaseRateOverride is an owner-specific rate checked before the rate table.
// Narrowing fields are optional; the most specific matching override wins
// (see lease.go for the priority and tie-break rules).
type LeaseRateOverride struct {
	ID      string
	OwnerID DriverID

	// Optional narrowing. nil means "any".
	CabID     *CabID
	ShiftType *ShiftType
	DayOfWeek *time.Weekday

	BaseRate    decimal.Decimal
	MileageRate decimal.Decimal

	EffectiveFrom Date
	EffectiveTo   *Date
	CreatedAt     time.Time
}

func (ov LeaseRateOverride) Covers(d Date) bool {
	if d.Before(ov.EffectiveFrom) {
		return false
	}
	return ov.EffectiveTo == nil || d.BeforeOrEqual(*ov.EffectiveTo)
}

// Matches reports whether the override applies to the given driven shift.
func (ov LeaseRateOverride) Matches(shift CabShift, shiftType ShiftType, day time.Weekday) bool {
	if ov.CabID != nil && *ov.CabID != shift.CabID {
		return false
	}
	if ov.ShiftType != nil && *ov.ShiftType != shiftType {
		return false
	}
	if ov.DayOfWeek != nil && *ov.DayOfWeek != day {
		return false
	}
	return true
}
