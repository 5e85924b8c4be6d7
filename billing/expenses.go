/*
Package billing orchestrates the fleet engines into person-level results:
applicable expense sets, statements and lease reports.

expenses.go - Applicable-expense orchestration

PURPOSE:
  Produce the full set of recurring and one-time charges that apply to one
  person (driver or owner) over a date range. Gathers three resolution paths,
  deduplicates, prorates, and skips broken rows instead of aborting.

RESOLUTION PATHS:
  1. Shift-targeted: expenses matched by the person's shifts (specific shift
     or the shift's profile). Owners only - a driver who merely drove a shift
     is never billed its shift-scoped charges.
  2. Fleet-wide: ALL_ACTIVE_SHIFTS / ALL_OWNERS for owners, ALL_DRIVERS for
     non-owner drivers, SHIFTS_WITH_ATTRIBUTE for owners whose shifts carry
     the attribute on the reference date.
  3. Person-direct: SPECIFIC_PERSON rows for the person.

DEDUPLICATION:
  A person can be matched by two paths at once (e.g. SHIFT_PROFILE and
  SPECIFIC_SHIFT on the same slot). Rows are deduplicated by expense id so
  nobody is double-charged.

FAILURE HANDLING:
  Any error while resolving or prorating one expense is logged and the row
  skipped; the batch continues and reports a skipped count.
*/
package billing

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// RESOLVED EXPENSES
// =============================================================================

// ResolvedRecurring is one applicable recurring expense with its prorated
// amount for the query range and, for per-shift expansion types, the shifts
// it fans out over.
type ResolvedRecurring struct {
	Expense fleet.RecurringExpense

	// Amount prorated for the query range. For PER_SHIFT billing this is the
	// per-occurrence amount; LineTotal folds in Occurrences.
	Amount decimal.Decimal

	// MatchedShifts is populated for expansion types (ALL_ACTIVE_SHIFTS,
	// SHIFTS_WITH_ATTRIBUTE): one statement line is rendered per shift.
	MatchedShifts []fleet.CabShift

	// Occurrences counts matched driven shifts for PER_SHIFT billing.
	Occurrences int
}

// LineTotal is the total the expense contributes to a statement: additive
// fan-out for expansion types, occurrence multiplication for PER_SHIFT.
func (r ResolvedRecurring) LineTotal() decimal.Decimal {
	switch {
	case r.Expense.Billing == fleet.BillPerShift:
		return r.Amount.Mul(decimal.NewFromInt(int64(r.Occurrences)))
	case r.Expense.Application.ExpandsPerShift():
		return r.Amount.Mul(decimal.NewFromInt(int64(len(r.MatchedShifts))))
	default:
		return r.Amount
	}
}

// ResolvedOneTime is one applicable one-time expense.
type ResolvedOneTime struct {
	Expense       fleet.OneTimeExpense
	Amount        decimal.Decimal
	MatchedShifts []fleet.CabShift
}

func (r ResolvedOneTime) LineTotal() decimal.Decimal {
	if r.Expense.Application.ExpandsPerShift() {
		return r.Amount.Mul(decimal.NewFromInt(int64(len(r.MatchedShifts))))
	}
	return r.Amount
}

// RecurringBatch is the partial-result contract for batch resolution.
type RecurringBatch struct {
	Expenses []ResolvedRecurring
	Skipped  int
}

type OneTimeBatch struct {
	Expenses []ResolvedOneTime
	Skipped  int
}

// =============================================================================
// EXPENSE SERVICE
// =============================================================================

type ExpenseService struct {
	Expenses fleet.ExpenseStore
	Fleet    fleet.FleetStore
	Resolver *fleet.Resolver
}

func NewExpenseService(expenses fleet.ExpenseStore, fleetStore fleet.FleetStore) *ExpenseService {
	return &ExpenseService{
		Expenses: expenses,
		Fleet:    fleetStore,
		Resolver: fleet.NewResolver(fleetStore),
	}
}

// ApplicableRecurring gathers every recurring expense applicable to the
// person over [from, to]. shifts are the person's current shifts (owners);
// pass nil for non-owner drivers.
func (s *ExpenseService) ApplicableRecurring(ctx context.Context, person fleet.Driver,
	shifts []fleet.CabShift, from, to fleet.Date) (RecurringBatch, error) {

	if to.Before(from) {
		return RecurringBatch{}, fleet.ErrInvalidDateRange
	}

	var candidates []fleet.RecurringExpense

	// Path 1: shift-targeted, owners only.
	if person.IsOwner {
		for _, shift := range shifts {
			byShift, err := s.Expenses.RecurringByShift(ctx, shift.ID, from, to)
			if err != nil {
				return RecurringBatch{}, err
			}
			candidates = append(candidates, byShift...)

			if shift.ProfileID != "" {
				byProfile, err := s.Expenses.RecurringByProfile(ctx, shift.ProfileID, from, to)
				if err != nil {
					return RecurringBatch{}, err
				}
				candidates = append(candidates, byProfile...)
			}
		}
	}

	// Path 2: fleet-wide.
	fleetWide, err := s.Expenses.RecurringEffectiveBetween(ctx, from, to)
	if err != nil {
		return RecurringBatch{}, err
	}
	for _, e := range fleetWide {
		if s.fleetWideApplies(ctx, e.Application, e.Target, person, shifts, to) {
			candidates = append(candidates, e)
		}
	}

	// Path 3: person-direct.
	direct, err := s.Expenses.RecurringByPerson(ctx, person.ID, from, to)
	if err != nil {
		return RecurringBatch{}, err
	}
	candidates = append(candidates, direct...)

	// Dedupe, prorate, skip broken rows.
	batch := RecurringBatch{}
	seen := make(map[fleet.ExpenseID]bool)
	for _, e := range candidates {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		resolved, err := s.resolveRecurring(ctx, e, person, from, to)
		if err != nil {
			log.Printf("billing: skipping recurring expense %s for %s: %v", e.ID, person.DriverNumber, err)
			batch.Skipped++
			continue
		}
		if resolved.LineTotal().IsZero() {
			// Outside the effective window, no matched shifts, or no
			// per-shift occurrences: nothing to bill this period.
			continue
		}
		batch.Expenses = append(batch.Expenses, resolved)
	}
	return batch, nil
}

// ApplicableOneTime gathers one-time expenses the same way.
func (s *ExpenseService) ApplicableOneTime(ctx context.Context, person fleet.Driver,
	shifts []fleet.CabShift, from, to fleet.Date) (OneTimeBatch, error) {

	if to.Before(from) {
		return OneTimeBatch{}, fleet.ErrInvalidDateRange
	}

	var candidates []fleet.OneTimeExpense

	if person.IsOwner {
		for _, shift := range shifts {
			byShift, err := s.Expenses.OneTimeByShift(ctx, shift.ID, from, to)
			if err != nil {
				return OneTimeBatch{}, err
			}
			candidates = append(candidates, byShift...)
		}
	}

	inRange, err := s.Expenses.OneTimeInRange(ctx, from, to)
	if err != nil {
		return OneTimeBatch{}, err
	}
	for _, e := range inRange {
		switch e.Application {
		case fleet.AppShiftProfile:
			if person.IsOwner && profileMatches(shifts, e.Target.ProfileID) {
				candidates = append(candidates, e)
			}
		default:
			if s.fleetWideApplies(ctx, e.Application, e.Target, person, shifts, to) {
				candidates = append(candidates, e)
			}
		}
	}

	direct, err := s.Expenses.OneTimeByPerson(ctx, person.ID, from, to)
	if err != nil {
		return OneTimeBatch{}, err
	}
	candidates = append(candidates, direct...)

	batch := OneTimeBatch{}
	seen := make(map[fleet.ExpenseID]bool)
	for _, e := range candidates {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		resolved, err := s.resolveOneTime(ctx, e, person, from, to)
		if err != nil {
			log.Printf("billing: skipping one-time expense %s for %s: %v", e.ID, person.DriverNumber, err)
			batch.Skipped++
			continue
		}
		if resolved.LineTotal().IsZero() {
			continue
		}
		batch.Expenses = append(batch.Expenses, resolved)
	}
	return batch, nil
}

// fleetWideApplies decides whether a fleet-wide application type reaches this
// person: owner types for owners, ALL_DRIVERS for non-owner drivers,
// attribute types for owners with a tagged shift.
func (s *ExpenseService) fleetWideApplies(ctx context.Context, app fleet.ApplicationType,
	target fleet.TargetRef, person fleet.Driver, shifts []fleet.CabShift, asOf fleet.Date) bool {

	switch app {
	case fleet.AppAllActiveShifts, fleet.AppAllOwners:
		return person.IsOwner
	case fleet.AppAllDrivers:
		return !person.IsOwner
	case fleet.AppShiftsWithAttribute:
		if !person.IsOwner {
			return false
		}
		for _, shift := range shifts {
			values, err := s.Fleet.AttributeValuesByShift(ctx, shift.ID)
			if err != nil {
				continue
			}
			for _, v := range values {
				if v.AttributeTypeID == target.AttributeTypeID && fleet.AttributeActiveOn(v, asOf) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func (s *ExpenseService) resolveRecurring(ctx context.Context, e fleet.RecurringExpense,
	person fleet.Driver, from, to fleet.Date) (ResolvedRecurring, error) {

	resolved := ResolvedRecurring{
		Expense: e,
		Amount:  e.AmountForDateRange(from, to),
	}

	if e.Application.ExpandsPerShift() {
		matched, err := s.matchedShifts(ctx, e.Application, e.Target, person, to)
		if err != nil {
			return ResolvedRecurring{}, err
		}
		resolved.MatchedShifts = matched
	}

	if e.Billing == fleet.BillPerShift {
		n, err := s.countOccurrences(ctx, e, person, from, to)
		if err != nil {
			return ResolvedRecurring{}, err
		}
		resolved.Occurrences = n
	}
	return resolved, nil
}

func (s *ExpenseService) resolveOneTime(ctx context.Context, e fleet.OneTimeExpense,
	person fleet.Driver, from, to fleet.Date) (ResolvedOneTime, error) {

	resolved := ResolvedOneTime{
		Expense: e,
		Amount:  e.OneTimeAmountForRange(from, to),
	}
	if e.Application.ExpandsPerShift() {
		matched, err := s.matchedShifts(ctx, e.Application, e.Target, person, to)
		if err != nil {
			return ResolvedOneTime{}, err
		}
		resolved.MatchedShifts = matched
	}
	return resolved, nil
}

// matchedShifts resolves an expansion type down to the person's shifts as of
// the reference date.
func (s *ExpenseService) matchedShifts(ctx context.Context, app fleet.ApplicationType,
	target fleet.TargetRef, person fleet.Driver, asOf fleet.Date) ([]fleet.CabShift, error) {

	targets, err := s.Resolver.ResolveTargets(ctx, app, target, asOf,
		fleet.ResolveOptions{OwnerScope: person.ID})
	if err != nil {
		return nil, err
	}
	var shifts []fleet.CabShift
	for _, t := range targets {
		if t.Shift != nil {
			shifts = append(shifts, *t.Shift)
		}
	}
	return shifts, nil
}

// countOccurrences counts driven shifts in range on the slots a PER_SHIFT
// expense targets.
func (s *ExpenseService) countOccurrences(ctx context.Context, e fleet.RecurringExpense,
	person fleet.Driver, from, to fleet.Date) (int, error) {

	opts := fleet.ResolveOptions{OwnerScope: person.ID}
	if !e.Application.ShiftScoped() {
		opts = fleet.ResolveOptions{}
	}
	targets, err := s.Resolver.ResolveTargets(ctx, e.Application, e.Target, to, opts)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, t := range targets {
		if t.Shift == nil {
			continue
		}
		driven, err := s.Fleet.DriverShiftsByCab(ctx, t.Shift.CabNumber, from, to)
		if err != nil {
			return 0, err
		}
		for _, ds := range driven {
			if ds.ShiftType == t.Shift.ShiftType && fleet.DrivenShiftCounts(ds) {
				count++
			}
		}
	}
	return count, nil
}

func profileMatches(shifts []fleet.CabShift, profileID fleet.ProfileID) bool {
	if profileID == "" {
		return false
	}
	for _, s := range shifts {
		if s.ProfileID == profileID {
			return true
		}
	}
	return false
}
