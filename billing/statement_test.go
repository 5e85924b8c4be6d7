package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
)

func testOwner() fleet.Driver {
	return fleet.Driver{ID: "own-1", DriverNumber: "9001", Name: "Alva", IsOwner: true}
}

func TestStatement_ExpansionFansOutOnePerShift(t *testing.T) {
	// GIVEN: A fleet-wide expense of 30.00 matched to three shifts
	// WHEN: Rendering it onto a statement
	// THEN: Three lines of 30.00 each; the total is additive, 90.00

	st := billing.NewStatement(testOwner(), janFrom, janTo)

	resolved := billing.ResolvedRecurring{
		Expense: monthlyRecurring("exp-fleet", fleet.AppAllActiveShifts, fleet.TargetRef{}, "30.00"),
		Amount:  dec("30.00"),
		MatchedShifts: []fleet.CabShift{
			{ID: "s-1", CabNumber: "101", ShiftType: fleet.ShiftDay},
			{ID: "s-2", CabNumber: "101", ShiftType: fleet.ShiftNight},
			{ID: "s-3", CabNumber: "202", ShiftType: fleet.ShiftDay},
		},
	}
	require.NoError(t, st.AddRecurringExpenses([]billing.ResolvedRecurring{resolved}))

	require.Len(t, st.Lines, 3)
	for _, line := range st.Lines {
		assert.Equal(t, billing.LineRecurringExpense, line.Kind)
		assert.True(t, line.Amount.Equal(dec("30.00")), "line amount %s", line.Amount)
	}
	assert.True(t, st.TotalExpenses().Equal(dec("90.00")), "total %s", st.TotalExpenses())
}

func TestStatement_PerShiftRendersOneAggregateLine(t *testing.T) {
	st := billing.NewStatement(testOwner(), janFrom, janTo)

	perShift := monthlyRecurring("exp-wash", fleet.AppSpecificShift,
		fleet.TargetRef{ShiftID: "s-1"}, "7.50")
	perShift.Billing = fleet.BillPerShift
	perShift.Notes = "cab wash"

	require.NoError(t, st.AddRecurringExpenses([]billing.ResolvedRecurring{{
		Expense: perShift, Amount: dec("7.50"), Occurrences: 3,
	}}))

	require.Len(t, st.Lines, 1)
	assert.Equal(t, "cab wash (3 shifts)", st.Lines[0].Description)
	assert.True(t, st.Lines[0].Amount.Equal(dec("22.50")), "amount %s", st.Lines[0].Amount)
}

func TestStatement_TotalsAndNet(t *testing.T) {
	st := billing.NewStatement(testOwner(), janFrom, janTo)

	require.NoError(t, st.AddRecurringExpenses([]billing.ResolvedRecurring{{
		Expense: monthlyRecurring("exp-1", fleet.AppSpecificShift, fleet.TargetRef{ShiftID: "s-1"}, "100.00"),
		Amount:  dec("100.00"),
	}}))
	require.NoError(t, st.AddLeaseCharges(billing.LineLeaseRevenue, []fleet.LeaseCharge{
		{DriverShiftID: "ds-1", ShiftID: "s-1", ShiftDate: date(2026, 1, 5),
			BaseRate: dec("85.00"), MileageLease: dec("42.18"), TotalLease: dec("127.18")},
	}))
	require.NoError(t, st.AddRevenueLine("card settlements", date(2026, 1, 31), dec("50.00")))

	assert.True(t, st.TotalExpenses().Equal(dec("100.00")), "expenses %s", st.TotalExpenses())
	assert.True(t, st.TotalRevenue().Equal(dec("177.18")), "revenue %s", st.TotalRevenue())
	assert.True(t, st.Net().Equal(dec("77.18")), "net %s", st.Net())
}

func TestStatement_LeaseLinesSkipSelfDriven(t *testing.T) {
	st := billing.NewStatement(testOwner(), janFrom, janTo)

	require.NoError(t, st.AddLeaseCharges(billing.LineLeaseExpense, []fleet.LeaseCharge{
		{DriverShiftID: "ds-1", ShiftID: "s-1", ShiftDate: date(2026, 1, 5), SelfDriven: true},
		{DriverShiftID: "ds-2", ShiftID: "s-1", ShiftDate: date(2026, 1, 6),
			BaseRate: dec("85.00"), MileageLease: dec("3.50"), TotalLease: dec("88.50")},
	}))

	require.Len(t, st.Lines, 1)
	assert.True(t, st.Lines[0].Amount.Equal(dec("88.50")))
}

func TestStatement_LeaseLinesRejectNonLeaseKind(t *testing.T) {
	st := billing.NewStatement(testOwner(), janFrom, janTo)
	err := st.AddLeaseCharges(billing.LineRevenue, nil)
	assert.Error(t, err)
}

func TestStatement_FinalizedRejectsFurtherLines(t *testing.T) {
	// GIVEN: A finalized statement
	// WHEN: Attempting any further addition
	// THEN: Every builder method refuses

	st := billing.NewStatement(testOwner(), janFrom, janTo)
	_, err := st.Finalize(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Error(t, st.AddRecurringExpenses(nil))
	assert.Error(t, st.AddOneTimeExpenses(nil))
	assert.Error(t, st.AddLeaseCharges(billing.LineLeaseRevenue, nil))
	assert.Error(t, st.AddRevenueLine("late", janTo, dec("1.00")))
}

func TestStatement_FinalizeSnapshotRoundTrip(t *testing.T) {
	st := billing.NewStatement(testOwner(), janFrom, janTo)
	require.NoError(t, st.AddRecurringExpenses([]billing.ResolvedRecurring{{
		Expense: monthlyRecurring("exp-1", fleet.AppSpecificShift, fleet.TargetRef{ShiftID: "s-1"}, "100.00"),
		Amount:  dec("100.00"),
	}}))
	require.NoError(t, st.AddRevenueLine("card settlements", date(2026, 1, 31), dec("250.00")))

	finalizedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	frozen, err := st.Finalize(finalizedAt)
	require.NoError(t, err)

	assert.Equal(t, st.ID, frozen.ID)
	assert.Equal(t, "9001", frozen.PersonNumber)
	assert.Equal(t, finalizedAt, frozen.FinalizedAt)
	assert.True(t, frozen.TotalExpenses.Equal(dec("100.00")))
	assert.True(t, frozen.TotalRevenue.Equal(dec("250.00")))
	assert.True(t, frozen.Net.Equal(dec("150.00")))

	lines, err := frozen.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, billing.LineRecurringExpense, lines[0].Kind)
	assert.Equal(t, fleet.ExpenseID("exp-1"), lines[0].ExpenseID)
	assert.True(t, lines[1].Amount.Equal(dec("250.00")))
}
