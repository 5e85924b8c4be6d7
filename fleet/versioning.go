/*
versioning.go - Soft-close versioning of recurring expenses

PURPOSE:
  Rate changes never edit history. A change closes the current version
  (effective_to = newFrom - 1 day, active = false) and inserts a new one.
  Summing proration across the boundary therefore equals the sum of each
  version's contribution: no gap, no overlap.

OPERATIONS:
  ChangeRate:            close current, open new at the new amount
  DeactivateWithEndDate: close current, open nothing
  ReactivateWithDate:    open a new version of a closed expense
*/
package fleet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RateService struct {
	Expenses ExpenseStore
}

func NewRateService(expenses ExpenseStore) *RateService { return &RateService{Expenses: expenses} }

// ChangeRate closes the current version of the expense the day before
// effectiveFrom and inserts a new version at newAmount. Returns the new
// version.
func (rs *RateService) ChangeRate(ctx context.Context, id ExpenseID, newAmount decimal.Decimal,
	effectiveFrom Date, notes string) (*RecurringExpense, error) {

	current, err := rs.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !effectiveFrom.After(current.EffectiveFrom) {
		return nil, &ValidationError{
			Field:   "effective_from",
			Message: "rate change must start after the current version's effective date",
		}
	}

	if err := rs.close(ctx, current, effectiveFrom.AddDays(-1)); err != nil {
		return nil, err
	}

	next := *current
	next.ID = ExpenseID(uuid.NewString())
	next.Amount = newAmount
	next.EffectiveFrom = effectiveFrom
	next.EffectiveTo = nil
	next.Active = true
	next.Notes = notes
	if err := rs.Expenses.InsertRecurring(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeactivateWithEndDate closes the current version at endDate without
// opening a successor.
func (rs *RateService) DeactivateWithEndDate(ctx context.Context, id ExpenseID, endDate Date) error {
	current, err := rs.loadActive(ctx, id)
	if err != nil {
		return err
	}
	if endDate.Before(current.EffectiveFrom) {
		return &ValidationError{
			Field:   "end_date",
			Message: "end date precedes the version's effective date",
		}
	}
	return rs.close(ctx, current, endDate)
}

// ReactivateWithDate opens a new version of a closed expense starting at
// effectiveFrom, carrying the closed version's amount and billing.
func (rs *RateService) ReactivateWithDate(ctx context.Context, id ExpenseID, effectiveFrom Date) (*RecurringExpense, error) {
	closed, err := rs.Expenses.RecurringByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, &NotFoundError{Kind: "recurring expense", ID: string(id)}
	}
	if closed.Active {
		return nil, &ValidationError{Field: "id", Message: "expense is already active"}
	}

	next := *closed
	next.ID = ExpenseID(uuid.NewString())
	next.EffectiveFrom = effectiveFrom
	next.EffectiveTo = nil
	next.Active = true
	if err := rs.Expenses.InsertRecurring(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (rs *RateService) loadActive(ctx context.Context, id ExpenseID) (*RecurringExpense, error) {
	e, err := rs.Expenses.RecurringByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "recurring expense", ID: string(id)}
	}
	if !e.Active {
		return nil, &ValidationError{Field: "id", Message: "expense version is closed; rate changes apply to the active version"}
	}
	return e, nil
}

func (rs *RateService) close(ctx context.Context, e *RecurringExpense, endDate Date) error {
	closed := *e
	closed.EffectiveTo = &endDate
	closed.Active = false
	return rs.Expenses.UpdateRecurring(ctx, closed)
}
