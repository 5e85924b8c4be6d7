/*
proration.go - Charge proration over a query date range

PURPOSE:
  Given an expense's amount, billing method and effective range, compute the
  charge attributable to an arbitrary query range.

ROUNDING POLICY (canonical, do not change):
  MONTHLY proration rounds each month's share to 2 decimals half-up BEFORE
  summing, not globally. A 300/month charge over 16 of January's 31 days is
  round(300*16/31) = 154.84. Statements produced for years depend on this
  exact behavior.

BILLING METHODS:
  MONTHLY:   per-calendar-month share of the monthly amount
  DAILY:     amount * days in the intersection
  PER_SHIFT: flat per-occurrence amount; the billing orchestration multiplies
             by matched driven-shift occurrences, the calculator only answers
             "does the window intersect, and what is the occurrence amount"

EDGE CASES:
  An empty intersection yields zero, never an error.
*/
package fleet

import "github.com/shopspring/decimal"

// AmountForDateRange computes the charge the expense contributes to
// [from, to]. See the file header for the per-method semantics.
func (e RecurringExpense) AmountForDateRange(from, to Date) decimal.Decimal {
	query := DateRange{From: from, To: to}
	if !query.IsValid() {
		return decimal.Zero
	}

	window, ok := e.EffectiveRange(to).Intersect(query)
	if !ok {
		return decimal.Zero
	}

	switch e.Billing {
	case BillDaily:
		return e.Amount.Mul(decimal.NewFromInt(int64(window.Days())))
	case BillPerShift:
		// Per-occurrence amount; occurrence counting is the caller's job.
		return e.Amount
	default: // BillMonthly
		return prorateMonthly(e.Amount, window)
	}
}

// prorateMonthly walks each calendar month the window touches and charges
// amount * (chargedDaysInMonth / daysInMonth), rounded half-up to 2 decimals
// per month, summed.
func prorateMonthly(amount decimal.Decimal, window DateRange) decimal.Decimal {
	total := decimal.Zero
	for _, monthStart := range window.Months() {
		monthRange := DateRange{
			From: monthStart,
			To:   EndOfMonth(monthStart.Year(), monthStart.Month()),
		}
		charged, ok := window.Intersect(monthRange)
		if !ok {
			continue
		}
		share := amount.
			Mul(decimal.NewFromInt(int64(charged.Days()))).
			Div(decimal.NewFromInt(int64(DaysInMonth(monthStart)))).
			Round(2)
		total = total.Add(share)
	}
	return total
}

// OneTimeAmountForRange returns the one-time expense's amount when its
// expense date falls inside [from, to], zero otherwise.
func (e OneTimeExpense) OneTimeAmountForRange(from, to Date) decimal.Decimal {
	r := DateRange{From: from, To: to}
	if r.IsValid() && r.Contains(e.ExpenseDate) {
		return e.Amount
	}
	return decimal.Zero
}
