/*
expense.go - Expense definitions and application types

PURPOSE:
  Defines the charge catalog: recurring (date-ranged, versioned) and one-time
  expenses, the categories that seed them, and the closed set of application
  types that determine who gets charged.

APPLICATION TYPES:
  The application type is a closed enum; the resolver (resolver.go) switches
  over it exhaustively with a Validation error default, so a new variant
  cannot be added without updating the resolver.

VERSIONING:
  A recurring expense is an append-only log per (target, category): a rate
  change soft-closes the old row (effective_to = newFrom - 1 day, active
  false) and opens a new one. Closed rows are never edited or deleted.
  See versioning.go for the operations that enforce this.

SEE ALSO:
  - proration.go: AmountForDateRange over these records
  - resolver.go: target resolution by application type
*/
package fleet

import "github.com/shopspring/decimal"

// =============================================================================
// APPLICATION TYPE - Closed targeting enum
// =============================================================================

type ApplicationType string

const (
	AppSpecificCab         ApplicationType = "SPECIFIC_CAB"
	AppSpecificShift       ApplicationType = "SPECIFIC_SHIFT"
	AppShiftProfile        ApplicationType = "SHIFT_PROFILE"
	AppShiftsWithAttribute ApplicationType = "SHIFTS_WITH_ATTRIBUTE"
	AppAllActiveShifts     ApplicationType = "ALL_ACTIVE_SHIFTS"
	AppAllOwners           ApplicationType = "ALL_OWNERS"
	AppAllDrivers          ApplicationType = "ALL_DRIVERS"
	AppSpecificPerson      ApplicationType = "SPECIFIC_PERSON"
)

// ShiftScoped reports whether charges of this type bill the shift's current
// owner rather than a person directly. This is the owner/driver asymmetry:
// a driver who merely drove a shift never receives shift-scoped charges.
func (a ApplicationType) ShiftScoped() bool {
	switch a {
	case AppSpecificCab, AppSpecificShift, AppShiftProfile, AppShiftsWithAttribute,
		AppAllActiveShifts, AppAllOwners:
		return true
	default:
		return false
	}
}

// ExpandsPerShift reports whether statement rendering fans the charge out
// into one line per matched shift instead of one aggregate line.
func (a ApplicationType) ExpandsPerShift() bool {
	return a == AppAllActiveShifts || a == AppShiftsWithAttribute
}

// =============================================================================
// BILLING METHOD
// =============================================================================

type BillingMethod string

const (
	BillMonthly  BillingMethod = "MONTHLY"
	BillDaily    BillingMethod = "DAILY"
	BillPerShift BillingMethod = "PER_SHIFT"
)

// =============================================================================
// TARGETING - Which ids an expense points at, per application type
// =============================================================================

// TargetRef carries the targeting identifiers of an expense or category.
// Exactly the fields relevant to the application type are populated.
type TargetRef struct {
	CabID           CabID
	ShiftID         ShiftID
	ProfileID       ProfileID
	OwnerID         DriverID
	DriverID        DriverID
	AttributeTypeID AttributeTypeID
}

// Validate checks that the targeting fields required by the application type
// are present.
func (t TargetRef) Validate(app ApplicationType) error {
	switch app {
	case AppSpecificCab:
		if t.CabID == "" {
			return &ValidationError{Field: "cab_id", Message: "required for SPECIFIC_CAB"}
		}
	case AppSpecificShift:
		if t.ShiftID == "" {
			return &ValidationError{Field: "shift_id", Message: "required for SPECIFIC_SHIFT"}
		}
	case AppShiftProfile:
		if t.ProfileID == "" {
			return &ValidationError{Field: "profile_id", Message: "required for SHIFT_PROFILE"}
		}
	case AppShiftsWithAttribute:
		if t.AttributeTypeID == "" {
			return &ValidationError{Field: "attribute_type_id", Message: "required for SHIFTS_WITH_ATTRIBUTE"}
		}
	case AppSpecificPerson:
		if t.DriverID == "" && t.OwnerID == "" {
			return &ValidationError{Field: "driver_id", Message: "required for SPECIFIC_PERSON"}
		}
	case AppAllActiveShifts, AppAllOwners, AppAllDrivers:
		// fleet-wide, no target
	default:
		return &ValidationError{Field: "application_type", Message: "unknown application type " + string(app)}
	}
	return nil
}

// PersonID returns the directly-targeted person for SPECIFIC_PERSON rules.
func (t TargetRef) PersonID() DriverID {
	if t.DriverID != "" {
		return t.DriverID
	}
	return t.OwnerID
}

// =============================================================================
// EXPENSE CATEGORY - Template that seeds new expenses
// =============================================================================

type CategoryScope string

const (
	ScopeCab   CategoryScope = "CAB"
	ScopeShift CategoryScope = "SHIFT"
)

// ExpenseCategory is a reusable definition, not itself a charge.
type ExpenseCategory struct {
	ID              CategoryID
	Code            string
	Name            string
	AppliesTo       CategoryScope
	ProfileID       ProfileID       // optional linked profile
	AttributeTypeID AttributeTypeID // optional linked attribute type
}

// =============================================================================
// RECURRING EXPENSE - Versioned, date-ranged charge definition
// =============================================================================

type RecurringExpense struct {
	ID         ExpenseID
	CategoryID CategoryID

	Application ApplicationType
	Target      TargetRef

	Amount  decimal.Decimal
	Billing BillingMethod

	EffectiveFrom Date
	EffectiveTo   *Date // nil = open-ended
	Active        bool

	AutoGenerated bool
	SourceRuleID  string
	Notes         string
}

// EffectiveRange returns the expense's window clipped at `horizon` when
// open-ended.
func (e RecurringExpense) EffectiveRange(horizon Date) DateRange {
	to := horizon
	if e.EffectiveTo != nil {
		to = *e.EffectiveTo
	}
	return DateRange{From: e.EffectiveFrom, To: to}
}

// InForceOn reports whether the expense row covers the given date.
// Inactive (closed) rows still cover their historical window: proration over
// a past range must see the version that was in force then.
func (e RecurringExpense) InForceOn(d Date) bool {
	if d.Before(e.EffectiveFrom) {
		return false
	}
	return e.EffectiveTo == nil || d.BeforeOrEqual(*e.EffectiveTo)
}

// =============================================================================
// ONE-TIME EXPENSE - Single ad-hoc charge
// =============================================================================

type OneTimeExpense struct {
	ID         ExpenseID
	CategoryID CategoryID

	Application ApplicationType
	Target      TargetRef

	Amount      decimal.Decimal
	ExpenseDate Date

	Reimbursed  bool
	Description string
}

// =============================================================================
// CATEGORY SEEDING - Rule application creates expenses from a category
// =============================================================================

// NewRecurringFromCategory seeds a recurring expense from a category
// template. The category's linked profile/attribute carry over when the
// application type calls for them and the caller did not override them.
func NewRecurringFromCategory(cat ExpenseCategory, app ApplicationType, target TargetRef,
	amount decimal.Decimal, billing BillingMethod, from Date) (RecurringExpense, error) {

	if app == AppShiftProfile && target.ProfileID == "" {
		target.ProfileID = cat.ProfileID
	}
	if app == AppShiftsWithAttribute && target.AttributeTypeID == "" {
		target.AttributeTypeID = cat.AttributeTypeID
	}
	if err := target.Validate(app); err != nil {
		return RecurringExpense{}, err
	}

	return RecurringExpense{
		CategoryID:    cat.ID,
		Application:   app,
		Target:        target,
		Amount:        amount,
		Billing:       billing,
		EffectiveFrom: from,
		Active:        true,
		AutoGenerated: true,
		SourceRuleID:  string(cat.ID),
	}, nil
}

// NewOneTimeFromCategory seeds a one-time expense from a category template.
func NewOneTimeFromCategory(cat ExpenseCategory, app ApplicationType, target TargetRef,
	amount decimal.Decimal, on Date, description string) (OneTimeExpense, error) {

	if app == AppShiftProfile && target.ProfileID == "" {
		target.ProfileID = cat.ProfileID
	}
	if app == AppShiftsWithAttribute && target.AttributeTypeID == "" {
		target.AttributeTypeID = cat.AttributeTypeID
	}
	if err := target.Validate(app); err != nil {
		return OneTimeExpense{}, err
	}

	return OneTimeExpense{
		CategoryID:  cat.ID,
		Application: app,
		Target:      target,
		Amount:      amount,
		ExpenseDate: on,
		Description: description,
	}, nil
}
