/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts cross the wire as strings ("154.84") so clients never see float
  artifacts. Handlers parse them back through shopspring/decimal.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/statement.go: StatementLine, the persisted line shape
*/
package api

import (
	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/importer"
)

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// StatementDTO represents an assembled statement in API responses.
type StatementDTO struct {
	ID            string                  `json:"id"`
	PersonID      string                  `json:"person_id"`
	PersonNumber  string                  `json:"person_number"`
	From          string                  `json:"from"`
	To            string                  `json:"to"`
	Lines         []billing.StatementLine `json:"lines"`
	TotalExpenses string                  `json:"total_expenses"`
	TotalRevenue  string                  `json:"total_revenue"`
	Net           string                  `json:"net"`
	FinalizedAt   string                  `json:"finalized_at,omitempty"`
}

// BuildStatementRequest is the request to assemble (and optionally
// finalize) a statement.
type BuildStatementRequest struct {
	PersonNumber string `json:"person_number"`
	From         string `json:"from"`
	To           string `json:"to"`
	Finalize     bool   `json:"finalize"`
}

// SummaryRequest assembles statements for many people at once.
type SummaryRequest struct {
	PersonNumbers []string `json:"person_numbers"`
	From          string   `json:"from"`
	To            string   `json:"to"`
}

// =============================================================================
// LEASE REPORT TYPES
// =============================================================================

// LeaseLineDTO is one lease leg in a report response.
type LeaseLineDTO struct {
	DriverShiftID string `json:"driver_shift_id"`
	ShiftID       string `json:"shift_id"`
	CabNumber     string `json:"cab_number"`
	Date          string `json:"date"`
	DriverNumber  string `json:"driver_number"`
	OwnerNumber   string `json:"owner_number"`
	RateSource    string `json:"rate_source"`
	BaseRate      string `json:"base_rate"`
	MileageLease  string `json:"mileage_lease"`
	TotalLease    string `json:"total_lease"`
}

// LeaseReportDTO is the revenue or expense view for one person.
type LeaseReportDTO struct {
	PersonNumber      string         `json:"person_number"`
	From              string         `json:"from"`
	To                string         `json:"to"`
	Lines             []LeaseLineDTO `json:"lines"`
	Total             string         `json:"total"`
	SkippedSelfDriven int            `json:"skipped_self_driven"`
	Defaulted         int            `json:"defaulted"`
	Errors            int            `json:"errors"`
}

// ReconcileLineDTO is one driven shift where the two sides disagree.
type ReconcileLineDTO struct {
	DriverShiftID string `json:"driver_shift_id"`
	Date          string `json:"date"`
	DriverNumber  string `json:"driver_number"`
	OwnerNumber   string `json:"owner_number"`
	RevenueSide   string `json:"revenue_side"`
	ExpenseSide   string `json:"expense_side"`
	Difference    string `json:"difference"`
}

// ReconcileReportDTO compares the owner-side and driver-side lease totals.
type ReconcileReportDTO struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	TotalRevenue string             `json:"total_revenue"`
	TotalExpense string             `json:"total_expense"`
	Balanced     bool               `json:"balanced"`
	Mismatches   []ReconcileLineDTO `json:"mismatches"`
	Errors       int                `json:"errors"`
}

// =============================================================================
// EXPENSE TYPES
// =============================================================================

// RecurringExpenseDTO represents a recurring expense version.
type RecurringExpenseDTO struct {
	ID            string          `json:"id"`
	CategoryID    string          `json:"category_id"`
	Application   string          `json:"application_type"`
	Target        fleet.TargetRef `json:"target"`
	Amount        string          `json:"amount"`
	BillingMethod string          `json:"billing_method"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
	Active        bool            `json:"active"`
	Notes         string          `json:"notes,omitempty"`
}

// OneTimeExpenseDTO represents a single ad-hoc charge.
type OneTimeExpenseDTO struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id"`
	Application string          `json:"application_type"`
	Target      fleet.TargetRef `json:"target"`
	Amount      string          `json:"amount"`
	ExpenseDate string          `json:"expense_date"`
	Reimbursed  bool            `json:"reimbursed"`
	Description string          `json:"description,omitempty"`
}

// TargetRequest carries the targeting ids of a new expense. Only the fields
// the application type requires need to be set.
type TargetRequest struct {
	CabID           string `json:"cab_id,omitempty"`
	ShiftID         string `json:"shift_id,omitempty"`
	ProfileID       string `json:"profile_id,omitempty"`
	OwnerID         string `json:"owner_id,omitempty"`
	DriverID        string `json:"driver_id,omitempty"`
	AttributeTypeID string `json:"attribute_type_id,omitempty"`
}

// CreateRecurringRequest seeds a new recurring expense from a category.
type CreateRecurringRequest struct {
	CategoryID    string        `json:"category_id"`
	Application   string        `json:"application_type"`
	Target        TargetRequest `json:"target"`
	Amount        string        `json:"amount"`
	BillingMethod string        `json:"billing_method"`
	EffectiveFrom string        `json:"effective_from"`
}

// CreateOneTimeRequest seeds a new one-time expense from a category.
type CreateOneTimeRequest struct {
	CategoryID  string        `json:"category_id"`
	Application string        `json:"application_type"`
	Target      TargetRequest `json:"target"`
	Amount      string        `json:"amount"`
	ExpenseDate string        `json:"expense_date"`
	Description string        `json:"description"`
}

// ChangeRateRequest closes the current version and opens a new one.
type ChangeRateRequest struct {
	NewAmount     string `json:"new_amount"`
	EffectiveFrom string `json:"effective_from"`
	Notes         string `json:"notes"`
}

// DeactivateRequest closes the current version without a successor.
type DeactivateRequest struct {
	EndDate string `json:"end_date"`
}

// ReactivateRequest opens a new version of a closed expense.
type ReactivateRequest struct {
	EffectiveFrom string `json:"effective_from"`
}

// =============================================================================
// IMPORT TYPES
// =============================================================================

// ImportJobDTO represents a CSV import run.
type ImportJobDTO struct {
	ID           string              `json:"id"`
	Kind         string              `json:"kind"`
	Status       string              `json:"status"`
	StartedAt    string              `json:"started_at"`
	EndedAt      string              `json:"ended_at,omitempty"`
	RowsTotal    int                 `json:"rows_total"`
	RowsImported int                 `json:"rows_imported"`
	RowErrors    []importer.RowError `json:"row_errors,omitempty"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
