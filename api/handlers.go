/*
handlers.go - HTTP API handlers for the fleet financial engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Statements:
    POST   /api/statements                 Build (and optionally finalize)
    POST   /api/statements/summary         Build for many people
    GET    /api/statements/{id}            Get a finalized statement
    GET    /api/people/{number}/statements Finalized statements for a person

  Lease reports:
    GET    /api/people/{number}/lease/revenue  Owner-side view
    GET    /api/people/{number}/lease/expense  Driver-side view
    GET    /api/reports/reconcile              Compare both views

  Expenses:
    POST   /api/expenses/recurring         Seed from a category
    POST   /api/expenses/one-time          Seed from a category
    GET    /api/expenses/recurring/{id}
    POST   /api/expenses/recurring/{id}/change-rate
    POST   /api/expenses/recurring/{id}/deactivate
    POST   /api/expenses/recurring/{id}/reactivate

  Imports:
    POST   /api/imports/driver-shifts      CSV upload
    POST   /api/imports/card-charges       CSV upload
    GET    /api/imports/jobs               List runs
    GET    /api/imports/jobs/{id}          Run detail

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors
  The fleet sentinel hierarchy drives the mapping (see statusFor).

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/importer"
	"github.com/warp/fleet-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Statements *billing.StatementService
	Rates      *fleet.RateService
	Importer   *importer.Importer
}

// NewHandler wires the services onto the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:      store,
		Statements: billing.NewStatementService(store, store, store, store),
		Rates:      fleet.NewRateService(store),
		Importer:   importer.New(store, store, store),
	}
}

// =============================================================================
// STATEMENT HANDLERS
// =============================================================================

// BuildStatement assembles a statement for one person over a period.
func (h *Handler) BuildStatement(w http.ResponseWriter, r *http.Request) {
	var req BuildStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, to, ok := parsePeriod(w, req.From, req.To)
	if !ok {
		return
	}
	if req.PersonNumber == "" {
		writeError(w, http.StatusBadRequest, "person_number is required", nil)
		return
	}

	st, err := h.Statements.BuildStatement(r.Context(), req.PersonNumber, from, to)
	if err != nil {
		writeDomainError(w, "Failed to build statement", err)
		return
	}

	if req.Finalize {
		frozen, err := h.Statements.FinalizeStatement(r.Context(), st)
		if err != nil {
			writeDomainError(w, "Failed to finalize statement", err)
			return
		}
		writeJSON(w, http.StatusCreated, finalizedToDTO(frozen))
		return
	}

	writeJSON(w, http.StatusOK, statementToDTO(st))
}

// BuildSummary assembles statements for many people. Persons that fail
// render zeroed rather than failing the batch.
func (h *Handler) BuildSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, to, ok := parsePeriod(w, req.From, req.To)
	if !ok {
		return
	}
	if len(req.PersonNumbers) == 0 {
		writeError(w, http.StatusBadRequest, "person_numbers is required", nil)
		return
	}

	statements := h.Statements.BuildSummary(r.Context(), req.PersonNumbers, from, to)
	dtos := make([]StatementDTO, len(statements))
	for i := range statements {
		dtos[i] = statementToDTO(&statements[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatement returns a finalized statement snapshot.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.Store.StatementByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get statement", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Statement not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, finalizedToDTO(*st))
}

// ListStatements returns the finalized statements for a person.
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	person, err := h.Store.DriverByNumber(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get person", err)
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}

	statements, err := h.Store.StatementsByPerson(r.Context(), person.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list statements", err)
		return
	}

	dtos := make([]StatementDTO, len(statements))
	for i, st := range statements {
		dtos[i] = finalizedToDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEASE REPORT HANDLERS
// =============================================================================

// LeaseRevenue returns the owner-side lease view for a period.
func (h *Handler) LeaseRevenue(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	from, to, ok := parsePeriod(w, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		return
	}

	report, err := h.Statements.Reports.Revenue(r.Context(), number, from, to)
	if err != nil {
		writeDomainError(w, "Failed to compute lease revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, leaseReportToDTO(report))
}

// LeaseExpense returns the driver-side lease view for a period.
func (h *Handler) LeaseExpense(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	from, to, ok := parsePeriod(w, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		return
	}

	report, err := h.Statements.Reports.Expense(r.Context(), number, from, to)
	if err != nil {
		writeDomainError(w, "Failed to compute lease expense", err)
		return
	}
	writeJSON(w, http.StatusOK, leaseReportToDTO(report))
}

// Reconcile recomputes both lease views over the period and reports any
// per-shift disagreement.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parsePeriod(w, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		return
	}

	report, err := h.Statements.Reports.Reconcile(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to reconcile", err)
		return
	}

	dto := ReconcileReportDTO{
		From:         from.String(),
		To:           to.String(),
		TotalRevenue: report.TotalRevenue.StringFixed(2),
		TotalExpense: report.TotalExpense.StringFixed(2),
		Balanced:     report.Balanced(),
		Mismatches:   make([]ReconcileLineDTO, 0, len(report.Mismatches)),
		Errors:       report.Errors,
	}
	for _, m := range report.Mismatches {
		dto.Mismatches = append(dto.Mismatches, ReconcileLineDTO{
			DriverShiftID: m.DriverShiftID,
			Date:          m.Date.String(),
			DriverNumber:  m.DriverNumber,
			OwnerNumber:   m.OwnerNumber,
			RevenueSide:   m.RevenueSide.StringFixed(2),
			ExpenseSide:   m.ExpenseSide.StringFixed(2),
			Difference:    m.Difference.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// CreateRecurring seeds a new recurring expense from a category template.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req CreateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	from, err := fleet.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from (use YYYY-MM-DD)", err)
		return
	}
	billingMethod := fleet.BillingMethod(req.BillingMethod)
	switch billingMethod {
	case fleet.BillMonthly, fleet.BillDaily, fleet.BillPerShift:
	default:
		writeError(w, http.StatusBadRequest, "Invalid billing_method (MONTHLY, DAILY or PER_SHIFT)", nil)
		return
	}

	cat, err := h.Store.CategoryByID(r.Context(), fleet.CategoryID(req.CategoryID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get category", err)
		return
	}
	if cat == nil {
		writeError(w, http.StatusNotFound, "Category not found", nil)
		return
	}

	e, err := fleet.NewRecurringFromCategory(*cat, fleet.ApplicationType(req.Application),
		targetFromRequest(req.Target), amount, billingMethod, from)
	if err != nil {
		writeDomainError(w, "Failed to create expense", err)
		return
	}
	e.ID = fleet.ExpenseID(uuid.NewString())

	if err := h.Store.InsertRecurring(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringToDTO(e))
}

// CreateOneTime seeds a new one-time expense from a category template.
func (h *Handler) CreateOneTime(w http.ResponseWriter, r *http.Request) {
	var req CreateOneTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	on, err := fleet.ParseDate(req.ExpenseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expense_date (use YYYY-MM-DD)", err)
		return
	}

	cat, err := h.Store.CategoryByID(r.Context(), fleet.CategoryID(req.CategoryID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get category", err)
		return
	}
	if cat == nil {
		writeError(w, http.StatusNotFound, "Category not found", nil)
		return
	}

	e, err := fleet.NewOneTimeFromCategory(*cat, fleet.ApplicationType(req.Application),
		targetFromRequest(req.Target), amount, on, req.Description)
	if err != nil {
		writeDomainError(w, "Failed to create expense", err)
		return
	}
	e.ID = fleet.ExpenseID(uuid.NewString())

	if err := h.Store.InsertOneTime(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, oneTimeToDTO(e))
}

// GetRecurring returns one recurring expense version.
func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	id := fleet.ExpenseID(chi.URLParam(r, "id"))

	e, err := h.Store.RecurringByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get expense", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Expense not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, recurringToDTO(*e))
}

// ChangeRate closes the current version and opens a new one at the new
// amount.
func (h *Handler) ChangeRate(w http.ResponseWriter, r *http.Request) {
	id := fleet.ExpenseID(chi.URLParam(r, "id"))

	var req ChangeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.NewAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_amount", err)
		return
	}
	effectiveFrom, err := fleet.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from (use YYYY-MM-DD)", err)
		return
	}

	next, err := h.Rates.ChangeRate(r.Context(), id, amount, effectiveFrom, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to change rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringToDTO(*next))
}

// Deactivate closes the current version at the given end date.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := fleet.ExpenseID(chi.URLParam(r, "id"))

	var req DeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	endDate, err := fleet.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Rates.DeactivateWithEndDate(r.Context(), id, endDate); err != nil {
		writeDomainError(w, "Failed to deactivate expense", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// Reactivate opens a new version of a closed expense.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id := fleet.ExpenseID(chi.URLParam(r, "id"))

	var req ReactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	effectiveFrom, err := fleet.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from (use YYYY-MM-DD)", err)
		return
	}

	next, err := h.Rates.ReactivateWithDate(r.Context(), id, effectiveFrom)
	if err != nil {
		writeDomainError(w, "Failed to reactivate expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringToDTO(*next))
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportDriverShifts ingests a driver-shift CSV from the request body.
func (h *Handler) ImportDriverShifts(w http.ResponseWriter, r *http.Request) {
	job, err := h.Importer.ImportDriverShifts(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, jobToDTO(job))
}

// ImportCardCharges ingests a card-charge CSV from the request body.
func (h *Handler) ImportCardCharges(w http.ResponseWriter, r *http.Request) {
	job, err := h.Importer.ImportCardCharges(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, jobToDTO(job))
}

// ListJobs returns all import runs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.Jobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}
	dtos := make([]ImportJobDTO, len(jobs))
	for i, job := range jobs {
		dtos[i] = jobToDTO(job)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetJob returns one import run.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.Store.JobByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get job", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, jobToDTO(*job))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the fleet error hierarchy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case fleet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case fleet.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parsePeriod(w http.ResponseWriter, fromStr, toStr string) (fleet.Date, fleet.Date, bool) {
	from, err := fleet.ParseDate(fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return fleet.Date{}, fleet.Date{}, false
	}
	to, err := fleet.ParseDate(toStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return fleet.Date{}, fleet.Date{}, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to precedes from", nil)
		return fleet.Date{}, fleet.Date{}, false
	}
	return from, to, true
}

func statementToDTO(st *billing.Statement) StatementDTO {
	lines := st.Lines
	if lines == nil {
		lines = []billing.StatementLine{}
	}
	return StatementDTO{
		ID:            st.ID,
		PersonID:      string(st.PersonID),
		PersonNumber:  st.PersonNumber,
		From:          st.From.String(),
		To:            st.To.String(),
		Lines:         lines,
		TotalExpenses: st.TotalExpenses().StringFixed(2),
		TotalRevenue:  st.TotalRevenue().StringFixed(2),
		Net:           st.Net().StringFixed(2),
	}
}

func finalizedToDTO(st billing.FinalizedStatement) StatementDTO {
	lines, err := st.Lines()
	if err != nil || lines == nil {
		lines = []billing.StatementLine{}
	}
	return StatementDTO{
		ID:            st.ID,
		PersonID:      string(st.PersonID),
		PersonNumber:  st.PersonNumber,
		From:          st.From.String(),
		To:            st.To.String(),
		Lines:         lines,
		TotalExpenses: st.TotalExpenses.StringFixed(2),
		TotalRevenue:  st.TotalRevenue.StringFixed(2),
		Net:           st.Net.StringFixed(2),
		FinalizedAt:   st.FinalizedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func leaseReportToDTO(report *billing.LeaseReport) LeaseReportDTO {
	dto := LeaseReportDTO{
		PersonNumber:      report.PersonNumber,
		From:              report.From.String(),
		To:                report.To.String(),
		Lines:             make([]LeaseLineDTO, 0, len(report.Lines)),
		Total:             report.Total.StringFixed(2),
		SkippedSelfDriven: report.SkippedSelfDriven,
		Defaulted:         report.Defaulted,
		Errors:            report.Errors,
	}
	for _, line := range report.Lines {
		dto.Lines = append(dto.Lines, LeaseLineDTO{
			DriverShiftID: line.DriverShiftID,
			ShiftID:       string(line.ShiftID),
			CabNumber:     line.CabNumber,
			Date:          line.Date.String(),
			DriverNumber:  line.DriverNumber,
			OwnerNumber:   line.OwnerNumber,
			RateSource:    line.Charge.RateSource,
			BaseRate:      line.Charge.BaseRate.StringFixed(2),
			MileageLease:  line.Charge.MileageLease.StringFixed(2),
			TotalLease:    line.Charge.TotalLease.StringFixed(2),
		})
	}
	return dto
}

func recurringToDTO(e fleet.RecurringExpense) RecurringExpenseDTO {
	dto := RecurringExpenseDTO{
		ID:            string(e.ID),
		CategoryID:    string(e.CategoryID),
		Application:   string(e.Application),
		Target:        e.Target,
		Amount:        e.Amount.StringFixed(2),
		BillingMethod: string(e.Billing),
		EffectiveFrom: e.EffectiveFrom.String(),
		Active:        e.Active,
		Notes:         e.Notes,
	}
	if e.EffectiveTo != nil {
		s := e.EffectiveTo.String()
		dto.EffectiveTo = &s
	}
	return dto
}

func targetFromRequest(t TargetRequest) fleet.TargetRef {
	return fleet.TargetRef{
		CabID:           fleet.CabID(t.CabID),
		ShiftID:         fleet.ShiftID(t.ShiftID),
		ProfileID:       fleet.ProfileID(t.ProfileID),
		OwnerID:         fleet.DriverID(t.OwnerID),
		DriverID:        fleet.DriverID(t.DriverID),
		AttributeTypeID: fleet.AttributeTypeID(t.AttributeTypeID),
	}
}

func oneTimeToDTO(e fleet.OneTimeExpense) OneTimeExpenseDTO {
	return OneTimeExpenseDTO{
		ID:          string(e.ID),
		CategoryID:  string(e.CategoryID),
		Application: string(e.Application),
		Target:      e.Target,
		Amount:      e.Amount.StringFixed(2),
		ExpenseDate: e.ExpenseDate.String(),
		Reimbursed:  e.Reimbursed,
		Description: e.Description,
	}
}

func jobToDTO(job importer.Job) ImportJobDTO {
	dto := ImportJobDTO{
		ID:           job.ID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		StartedAt:    job.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		RowsTotal:    job.RowsTotal,
		RowsImported: job.RowsImported,
		RowErrors:    job.RowErrors,
	}
	if job.EndedAt != nil {
		dto.EndedAt = job.EndedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}
