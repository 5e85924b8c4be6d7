/*
service.go - Full-statement assembly per person

PURPOSE:
  Ties the expense orchestration and the lease reports together into one
  person's statement for a period, and runs multi-person summaries with a
  per-person failure boundary: one broken person renders zeroed with a
  logged error, the summary never crashes.
*/
package billing

import (
	"context"
	"log"
	"time"

	"github.com/warp/fleet-engine/fleet"
)

type StatementService struct {
	Expenses   *ExpenseService
	Reports    *LeaseReporter
	Fleet      fleet.FleetStore
	Statements StatementStore // optional; nil disables persistence
}

func NewStatementService(expenses fleet.ExpenseStore, fleetStore fleet.FleetStore,
	leaseStore fleet.LeaseStore, statements StatementStore) *StatementService {
	return &StatementService{
		Expenses:   NewExpenseService(expenses, fleetStore),
		Reports:    NewLeaseReporter(fleetStore, leaseStore),
		Fleet:      fleetStore,
		Statements: statements,
	}
}

// BuildStatement assembles the full statement for one person over [from, to]:
// applicable recurring and one-time expenses, lease revenue legs for owners,
// lease expense legs for shifts driven on others' slots.
func (ss *StatementService) BuildStatement(ctx context.Context, personNumber string, from, to fleet.Date) (*Statement, error) {
	person, err := ss.Fleet.DriverByNumber(ctx, personNumber)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, &fleet.NotFoundError{Kind: "driver", ID: personNumber}
	}

	var shifts []fleet.CabShift
	if person.IsOwner {
		shifts, err = ss.Fleet.ShiftsByOwner(ctx, person.ID)
		if err != nil {
			return nil, err
		}
	}

	st := NewStatement(*person, from, to)

	recurring, err := ss.Expenses.ApplicableRecurring(ctx, *person, shifts, from, to)
	if err != nil {
		return nil, err
	}
	if err := st.AddRecurringExpenses(recurring.Expenses); err != nil {
		return nil, err
	}

	oneTime, err := ss.Expenses.ApplicableOneTime(ctx, *person, shifts, from, to)
	if err != nil {
		return nil, err
	}
	if err := st.AddOneTimeExpenses(oneTime.Expenses); err != nil {
		return nil, err
	}

	if person.IsOwner {
		revenue, err := ss.Reports.Revenue(ctx, personNumber, from, to)
		if err != nil {
			return nil, err
		}
		if err := st.AddLeaseCharges(LineLeaseRevenue, leaseCharges(revenue)); err != nil {
			return nil, err
		}
	}

	expense, err := ss.Reports.Expense(ctx, personNumber, from, to)
	if err != nil {
		return nil, err
	}
	if err := st.AddLeaseCharges(LineLeaseExpense, leaseCharges(expense)); err != nil {
		return nil, err
	}

	return st, nil
}

// FinalizeStatement freezes and, when a store is configured, persists the
// statement snapshot.
func (ss *StatementService) FinalizeStatement(ctx context.Context, st *Statement) (FinalizedStatement, error) {
	frozen, err := st.Finalize(time.Now().UTC())
	if err != nil {
		return FinalizedStatement{}, err
	}
	if ss.Statements != nil {
		if err := ss.Statements.SaveStatement(ctx, frozen); err != nil {
			return FinalizedStatement{}, err
		}
	}
	return frozen, nil
}

// BuildSummary assembles statements for many people. A failure for one
// person yields a zeroed statement and a logged error; the rest proceed.
func (ss *StatementService) BuildSummary(ctx context.Context, personNumbers []string, from, to fleet.Date) []Statement {
	out := make([]Statement, 0, len(personNumbers))
	for _, number := range personNumbers {
		st, err := ss.BuildStatement(ctx, number, from, to)
		if err != nil {
			log.Printf("billing: statement for %s failed, rendering zeroed: %v", number, err)
			out = append(out, Statement{PersonNumber: number, From: from, To: to})
			continue
		}
		out = append(out, *st)
	}
	return out
}

func leaseCharges(report *LeaseReport) []fleet.LeaseCharge {
	charges := make([]fleet.LeaseCharge, 0, len(report.Lines))
	for _, line := range report.Lines {
		charges = append(charges, line.Charge)
	}
	return charges
}
