package fleet_test

import (
	"errors"
	"testing"

	"github.com/warp/fleet-engine/fleet"
)

func TestNewRecurringFromCategory_CarriesLinkedProfile(t *testing.T) {
	// GIVEN: A category linked to a profile and no explicit profile target
	// WHEN: Seeding a SHIFT_PROFILE expense from it
	// THEN: The category's profile carries over and the row opens active

	cat := fleet.ExpenseCategory{
		ID: "cat-insurance", Code: "INS", Name: "Insurance",
		AppliesTo: fleet.ScopeShift, ProfileID: "standard",
	}
	e, err := fleet.NewRecurringFromCategory(cat, fleet.AppShiftProfile,
		fleet.TargetRef{}, dec("120.00"), fleet.BillMonthly, date(2026, 1, 1))
	if err != nil {
		t.Fatalf("NewRecurringFromCategory failed: %v", err)
	}
	if e.Target.ProfileID != "standard" {
		t.Errorf("expected the category's profile, got %q", e.Target.ProfileID)
	}
	if !e.Active || !e.AutoGenerated || e.SourceRuleID != "cat-insurance" {
		t.Errorf("seeding flags wrong: %+v", e)
	}
}

func TestNewRecurringFromCategory_ExplicitTargetWins(t *testing.T) {
	cat := fleet.ExpenseCategory{ID: "cat-1", AppliesTo: fleet.ScopeShift, ProfileID: "standard"}
	e, err := fleet.NewRecurringFromCategory(cat, fleet.AppShiftProfile,
		fleet.TargetRef{ProfileID: "premium"}, dec("120.00"), fleet.BillMonthly, date(2026, 1, 1))
	if err != nil {
		t.Fatalf("NewRecurringFromCategory failed: %v", err)
	}
	if e.Target.ProfileID != "premium" {
		t.Errorf("explicit target should win, got %q", e.Target.ProfileID)
	}
}

func TestNewRecurringFromCategory_MissingTarget(t *testing.T) {
	// A SPECIFIC_SHIFT seed without a shift id must fail validation.
	cat := fleet.ExpenseCategory{ID: "cat-1", AppliesTo: fleet.ScopeShift}
	_, err := fleet.NewRecurringFromCategory(cat, fleet.AppSpecificShift,
		fleet.TargetRef{}, dec("50.00"), fleet.BillMonthly, date(2026, 1, 1))
	if !errors.Is(err, fleet.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNewOneTimeFromCategory_CarriesLinkedAttribute(t *testing.T) {
	cat := fleet.ExpenseCategory{
		ID: "cat-permit", AppliesTo: fleet.ScopeShift, AttributeTypeID: "wheelchair",
	}
	e, err := fleet.NewOneTimeFromCategory(cat, fleet.AppShiftsWithAttribute,
		fleet.TargetRef{}, dec("75.00"), date(2026, 1, 10), "annual permit")
	if err != nil {
		t.Fatalf("NewOneTimeFromCategory failed: %v", err)
	}
	if e.Target.AttributeTypeID != "wheelchair" {
		t.Errorf("expected the category's attribute type, got %q", e.Target.AttributeTypeID)
	}
	if e.Description != "annual permit" || !e.ExpenseDate.Equal(date(2026, 1, 10)) {
		t.Errorf("fields mangled: %+v", e)
	}
}
