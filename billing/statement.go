/*
statement.go - Statement assembly and finalization

PURPOSE:
  Merges resolved expenses, lease legs and revenue items into one person's
  statement for a period, computes net totals, and freezes the result.

EXPANSION:
  ALL_ACTIVE_SHIFTS and SHIFTS_WITH_ATTRIBUTE charges render as one line per
  matched shift, each carrying the full prorated amount. The fan-out is
  additive (3 shifts at X = 3 lines of X), so a report shows exactly which
  shifts incurred the charge.

FINALIZATION:
  Finalize serializes the line items to JSON and stamps the statement. A
  finalized statement is an immutable snapshot: the stores expose save and
  read but no update.
*/
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// STATEMENT LINES
// =============================================================================

type LineKind string

const (
	LineRecurringExpense LineKind = "recurring_expense"
	LineOneTimeExpense   LineKind = "one_time_expense"
	LineLeaseRevenue     LineKind = "lease_revenue"
	LineLeaseExpense     LineKind = "lease_expense"
	LineRevenue          LineKind = "revenue"
)

type StatementLine struct {
	Kind        LineKind        `json:"kind"`
	Description string          `json:"description"`
	ExpenseID   fleet.ExpenseID `json:"expense_id,omitempty"`
	ShiftID     fleet.ShiftID   `json:"shift_id,omitempty"`
	CabNumber   string          `json:"cab_number,omitempty"`
	Date        *fleet.Date     `json:"date,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// =============================================================================
// STATEMENT
// =============================================================================

// Statement accumulates lines until finalized.
type Statement struct {
	ID           string
	PersonID     fleet.DriverID
	PersonNumber string
	From, To     fleet.Date

	Lines []StatementLine

	finalized bool
}

func NewStatement(person fleet.Driver, from, to fleet.Date) *Statement {
	return &Statement{
		ID:           uuid.NewString(),
		PersonID:     person.ID,
		PersonNumber: person.DriverNumber,
		From:         from,
		To:           to,
	}
}

// TotalExpenses sums expense-side lines.
func (st *Statement) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, l := range st.Lines {
		switch l.Kind {
		case LineRecurringExpense, LineOneTimeExpense, LineLeaseExpense:
			total = total.Add(l.Amount)
		}
	}
	return total
}

// TotalRevenue sums revenue-side lines.
func (st *Statement) TotalRevenue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range st.Lines {
		switch l.Kind {
		case LineLeaseRevenue, LineRevenue:
			total = total.Add(l.Amount)
		}
	}
	return total
}

// Net is revenue minus expenses.
func (st *Statement) Net() decimal.Decimal { return st.TotalRevenue().Sub(st.TotalExpenses()) }

// =============================================================================
// BUILDER - line-item expansion
// =============================================================================

// AddRecurringExpenses renders resolved recurring expenses onto the
// statement, fanning expansion types out per shift.
func (st *Statement) AddRecurringExpenses(resolved []ResolvedRecurring) error {
	if st.finalized {
		return fmt.Errorf("statement %s is finalized", st.ID)
	}
	for _, r := range resolved {
		switch {
		case r.Expense.Application.ExpandsPerShift():
			for _, shift := range r.MatchedShifts {
				st.Lines = append(st.Lines, StatementLine{
					Kind:        LineRecurringExpense,
					Description: describeExpense(r.Expense.Notes, r.Expense.CategoryID),
					ExpenseID:   r.Expense.ID,
					ShiftID:     shift.ID,
					CabNumber:   shift.CabNumber,
					Amount:      r.Amount,
				})
			}
		case r.Expense.Billing == fleet.BillPerShift:
			st.Lines = append(st.Lines, StatementLine{
				Kind:        LineRecurringExpense,
				Description: fmt.Sprintf("%s (%d shifts)", describeExpense(r.Expense.Notes, r.Expense.CategoryID), r.Occurrences),
				ExpenseID:   r.Expense.ID,
				ShiftID:     r.Expense.Target.ShiftID,
				Amount:      r.LineTotal(),
			})
		default:
			st.Lines = append(st.Lines, StatementLine{
				Kind:        LineRecurringExpense,
				Description: describeExpense(r.Expense.Notes, r.Expense.CategoryID),
				ExpenseID:   r.Expense.ID,
				ShiftID:     r.Expense.Target.ShiftID,
				Amount:      r.Amount,
			})
		}
	}
	return nil
}

// AddOneTimeExpenses renders resolved one-time expenses, with the same
// per-shift fan-out for expansion types.
func (st *Statement) AddOneTimeExpenses(resolved []ResolvedOneTime) error {
	if st.finalized {
		return fmt.Errorf("statement %s is finalized", st.ID)
	}
	for _, r := range resolved {
		date := r.Expense.ExpenseDate
		if r.Expense.Application.ExpandsPerShift() {
			for _, shift := range r.MatchedShifts {
				st.Lines = append(st.Lines, StatementLine{
					Kind:        LineOneTimeExpense,
					Description: describeExpense(r.Expense.Description, r.Expense.CategoryID),
					ExpenseID:   r.Expense.ID,
					ShiftID:     shift.ID,
					CabNumber:   shift.CabNumber,
					Date:        &date,
					Amount:      r.Amount,
				})
			}
			continue
		}
		st.Lines = append(st.Lines, StatementLine{
			Kind:        LineOneTimeExpense,
			Description: describeExpense(r.Expense.Description, r.Expense.CategoryID),
			ExpenseID:   r.Expense.ID,
			ShiftID:     r.Expense.Target.ShiftID,
			Date:        &date,
			Amount:      r.Amount,
		})
	}
	return nil
}

// AddLeaseCharges appends lease legs. kind selects the owner (revenue) or
// driver (expense) view; self-driven charges are excluded from both.
func (st *Statement) AddLeaseCharges(kind LineKind, charges []fleet.LeaseCharge) error {
	if st.finalized {
		return fmt.Errorf("statement %s is finalized", st.ID)
	}
	if kind != LineLeaseRevenue && kind != LineLeaseExpense {
		return fmt.Errorf("lease lines must be %s or %s", LineLeaseRevenue, LineLeaseExpense)
	}
	for _, c := range charges {
		if c.SelfDriven {
			continue
		}
		date := c.ShiftDate
		st.Lines = append(st.Lines, StatementLine{
			Kind:        kind,
			Description: fmt.Sprintf("lease %s (base %s + mileage %s)", c.ShiftDate, c.BaseRate.StringFixed(2), c.MileageLease.StringFixed(2)),
			ShiftID:     c.ShiftID,
			Date:        &date,
			Amount:      c.TotalLease,
		})
	}
	return nil
}

// AddRevenueLine appends an externally computed revenue item (trip income
// from the import pipeline, card settlements, ...).
func (st *Statement) AddRevenueLine(description string, on fleet.Date, amount decimal.Decimal) error {
	if st.finalized {
		return fmt.Errorf("statement %s is finalized", st.ID)
	}
	st.Lines = append(st.Lines, StatementLine{
		Kind:        LineRevenue,
		Description: description,
		Date:        &on,
		Amount:      amount,
	})
	return nil
}

func describeExpense(text string, category fleet.CategoryID) string {
	if text != "" {
		return text
	}
	return "expense " + string(category)
}

// =============================================================================
// FINALIZED STATEMENT - immutable snapshot
// =============================================================================

// FinalizedStatement is the frozen form: JSON line items plus computed
// totals. Never mutated after creation.
type FinalizedStatement struct {
	ID           string
	PersonID     fleet.DriverID
	PersonNumber string
	From, To     fleet.Date

	LinesJSON     string
	TotalExpenses decimal.Decimal
	TotalRevenue  decimal.Decimal
	Net           decimal.Decimal

	FinalizedAt time.Time
}

// Finalize freezes the statement. The builder rejects further additions.
func (st *Statement) Finalize(now time.Time) (FinalizedStatement, error) {
	linesJSON, err := json.Marshal(st.Lines)
	if err != nil {
		return FinalizedStatement{}, fmt.Errorf("serializing statement lines: %w", err)
	}
	st.finalized = true
	return FinalizedStatement{
		ID:            st.ID,
		PersonID:      st.PersonID,
		PersonNumber:  st.PersonNumber,
		From:          st.From,
		To:            st.To,
		LinesJSON:     string(linesJSON),
		TotalExpenses: st.TotalExpenses(),
		TotalRevenue:  st.TotalRevenue(),
		Net:           st.Net(),
		FinalizedAt:   now,
	}, nil
}

// Lines decodes the frozen line items.
func (fs FinalizedStatement) Lines() ([]StatementLine, error) {
	var lines []StatementLine
	if err := json.Unmarshal([]byte(fs.LinesJSON), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// StatementStore persists finalized statements. No update method exists:
// finalized statements are immutable.
type StatementStore interface {
	SaveStatement(ctx context.Context, st FinalizedStatement) error
	StatementByID(ctx context.Context, id string) (*FinalizedStatement, error)
	StatementsByPerson(ctx context.Context, personID fleet.DriverID) ([]FinalizedStatement, error)
}
