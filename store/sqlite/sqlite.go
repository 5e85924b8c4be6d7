/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  fleet.ExpenseStore:     expense catalog (recurring versions, one-time rows)
  fleet.FleetStore:       cabs, drivers, slots, ownership, driven shifts
  fleet.LeaseStore:       lease plans, rate table, overrides
  billing.StatementStore: finalized statement snapshots (no update)
  importer.JobStore:      import job runs

VERSIONING ENFORCEMENT:
  recurring_expenses rows are soft-closed: UpdateRecurring only touches
  effective_to, active and notes. Amounts on existing rows are never
  rewritten; a rate change is a new row.

CONVENTIONS:
  Dates are TEXT 'YYYY-MM-DD'; timestamps are RFC 3339 TEXT; money is TEXT
  decimal to avoid float drift. WAL mode for better read concurrency.

USAGE:
  store, err := sqlite.New("./data/fleet.db")   // ":memory:" for tests
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/billing"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/importer"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ fleet.ExpenseStore     = (*Store)(nil)
	_ fleet.FleetStore       = (*Store)(nil)
	_ fleet.LeaseStore       = (*Store)(nil)
	_ billing.StatementStore = (*Store)(nil)
	_ importer.JobStore      = (*Store)(nil)
)

// New opens (creating if needed) the database at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cabs (
		id TEXT PRIMARY KEY,
		cab_number TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS drivers (
		id TEXT PRIMARY KEY,
		driver_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_owner INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cab_shifts (
		id TEXT PRIMARY KEY,
		cab_id TEXT NOT NULL REFERENCES cabs(id),
		cab_number TEXT NOT NULL,
		shift_type TEXT NOT NULL,
		status TEXT NOT NULL,
		owner_id TEXT,
		profile_id TEXT,
		cab_type TEXT NOT NULL,
		share_type TEXT NOT NULL,
		airport_license INTEGER NOT NULL DEFAULT 0,
		UNIQUE(cab_id, shift_type)
	);
	CREATE INDEX IF NOT EXISTS idx_cab_shifts_profile ON cab_shifts(profile_id);
	CREATE INDEX IF NOT EXISTS idx_cab_shifts_owner ON cab_shifts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_cab_shifts_status ON cab_shifts(status);

	CREATE TABLE IF NOT EXISTS shift_ownerships (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES cab_shifts(id),
		driver_id TEXT NOT NULL REFERENCES drivers(id),
		start_date TEXT NOT NULL,
		end_date TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_ownerships_shift ON shift_ownerships(shift_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_ownerships_driver ON shift_ownerships(driver_id, start_date);

	CREATE TABLE IF NOT EXISTS driver_shifts (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		driver_number TEXT NOT NULL,
		cab_number TEXT NOT NULL,
		shift_type TEXT NOT NULL,
		logon_at TEXT NOT NULL,
		logoff_at TEXT NOT NULL,
		total_distance TEXT NOT NULL,
		status TEXT NOT NULL,
		shift_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_driver_shifts_driver ON driver_shifts(driver_number, shift_date);
	CREATE INDEX IF NOT EXISTS idx_driver_shifts_cab ON driver_shifts(cab_number, shift_date);

	CREATE TABLE IF NOT EXISTS cab_attribute_values (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES cab_shifts(id),
		attribute_type_id TEXT NOT NULL,
		value TEXT,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_attr_values_type ON cab_attribute_values(attribute_type_id);
	CREATE INDEX IF NOT EXISTS idx_attr_values_shift ON cab_attribute_values(shift_id);

	CREATE TABLE IF NOT EXISTS expense_categories (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		applies_to TEXT NOT NULL,
		profile_id TEXT,
		attribute_type_id TEXT
	);

	-- Versioned charge definitions. Rows are soft-closed, never edited in
	-- amount or deleted.
	CREATE TABLE IF NOT EXISTS recurring_expenses (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		application_type TEXT NOT NULL,
		cab_id TEXT,
		shift_id TEXT,
		profile_id TEXT,
		owner_id TEXT,
		driver_id TEXT,
		attribute_type_id TEXT,
		amount TEXT NOT NULL,
		billing_method TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		auto_generated INTEGER NOT NULL DEFAULT 0,
		source_rule_id TEXT,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_recurring_profile ON recurring_expenses(profile_id, effective_from);
	CREATE INDEX IF NOT EXISTS idx_recurring_shift ON recurring_expenses(shift_id, effective_from);
	CREATE INDEX IF NOT EXISTS idx_recurring_person ON recurring_expenses(driver_id, owner_id, effective_from);
	CREATE INDEX IF NOT EXISTS idx_recurring_effective ON recurring_expenses(effective_from, effective_to);

	CREATE TABLE IF NOT EXISTS one_time_expenses (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		application_type TEXT NOT NULL,
		cab_id TEXT,
		shift_id TEXT,
		profile_id TEXT,
		owner_id TEXT,
		driver_id TEXT,
		attribute_type_id TEXT,
		amount TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		reimbursed INTEGER NOT NULL DEFAULT 0,
		description TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_one_time_date ON one_time_expenses(expense_date);

	CREATE TABLE IF NOT EXISTS lease_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		effective_from TEXT NOT NULL,
		effective_to TEXT
	);

	CREATE TABLE IF NOT EXISTS lease_rates (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES lease_plans(id),
		cab_type TEXT NOT NULL,
		airport_license INTEGER NOT NULL,
		shift_type TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		base_rate TEXT NOT NULL,
		mileage_rate TEXT NOT NULL,
		UNIQUE(plan_id, cab_type, airport_license, shift_type, day_of_week)
	);

	CREATE TABLE IF NOT EXISTS lease_rate_overrides (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		cab_id TEXT,
		shift_type TEXT,
		day_of_week INTEGER,
		base_rate TEXT NOT NULL,
		mileage_rate TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_overrides_owner ON lease_rate_overrides(owner_id, effective_from);

	-- Finalized statements are immutable snapshots; there is no UPDATE path.
	CREATE TABLE IF NOT EXISTS statements (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		person_number TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		total_expenses TEXT NOT NULL,
		total_revenue TEXT NOT NULL,
		net TEXT NOT NULL,
		finalized_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_statements_person ON statements(person_id, from_date);

	CREATE TABLE IF NOT EXISTS import_jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		rows_total INTEGER NOT NULL DEFAULT 0,
		rows_imported INTEGER NOT NULL DEFAULT 0,
		row_errors_json TEXT NOT NULL DEFAULT '[]'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func nullDate(d *fleet.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanNullDate(ns sql.NullString) *fleet.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := fleet.ParseDate(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func mustDate(s string) fleet.Date {
	d, _ := fleet.ParseDate(s)
	return d
}

func mustDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func emptyIfNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// EXPENSE STORE - recurring
// =============================================================================

const recurringColumns = `id, category_id, application_type, cab_id, shift_id, profile_id,
	owner_id, driver_id, attribute_type_id, amount, billing_method,
	effective_from, effective_to, active, auto_generated, source_rule_id, notes`

func scanRecurring(row interface{ Scan(...any) error }) (fleet.RecurringExpense, error) {
	var (
		e                                            fleet.RecurringExpense
		cabID, shiftID, profileID, ownerID, driverID sql.NullString
		attrTypeID, sourceRule, notes, effectiveTo   sql.NullString
		amount, effectiveFrom                        string
		active, autoGenerated                        int
	)
	err := row.Scan(&e.ID, &e.CategoryID, &e.Application, &cabID, &shiftID, &profileID,
		&ownerID, &driverID, &attrTypeID, &amount, &e.Billing,
		&effectiveFrom, &effectiveTo, &active, &autoGenerated, &sourceRule, &notes)
	if err != nil {
		return e, err
	}
	e.Target = fleet.TargetRef{
		CabID:           fleet.CabID(emptyIfNull(cabID)),
		ShiftID:         fleet.ShiftID(emptyIfNull(shiftID)),
		ProfileID:       fleet.ProfileID(emptyIfNull(profileID)),
		OwnerID:         fleet.DriverID(emptyIfNull(ownerID)),
		DriverID:        fleet.DriverID(emptyIfNull(driverID)),
		AttributeTypeID: fleet.AttributeTypeID(emptyIfNull(attrTypeID)),
	}
	e.Amount = mustDecimal(amount)
	e.EffectiveFrom = mustDate(effectiveFrom)
	e.EffectiveTo = scanNullDate(effectiveTo)
	e.Active = active == 1
	e.AutoGenerated = autoGenerated == 1
	e.SourceRuleID = emptyIfNull(sourceRule)
	e.Notes = emptyIfNull(notes)
	return e, nil
}

func (s *Store) queryRecurring(ctx context.Context, where string, args ...any) ([]fleet.RecurringExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE `+where+` ORDER BY effective_from, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.RecurringExpense
	for rows.Next() {
		e, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// overlapClause matches rows whose effective range overlaps [from, to].
const overlapClause = `effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)`

func (s *Store) RecurringByID(ctx context.Context, id fleet.ExpenseID) (*fleet.RecurringExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE id = ?`, string(id))
	e, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) RecurringByProfile(ctx context.Context, profileID fleet.ProfileID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	return s.queryRecurring(ctx,
		`application_type = ? AND profile_id = ? AND `+overlapClause,
		string(fleet.AppShiftProfile), string(profileID), to.String(), from.String())
}

func (s *Store) RecurringByShift(ctx context.Context, shiftID fleet.ShiftID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	return s.queryRecurring(ctx,
		`application_type = ? AND shift_id = ? AND `+overlapClause,
		string(fleet.AppSpecificShift), string(shiftID), to.String(), from.String())
}

func (s *Store) RecurringByPerson(ctx context.Context, personID fleet.DriverID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	return s.queryRecurring(ctx,
		`application_type = ? AND (driver_id = ? OR owner_id = ?) AND `+overlapClause,
		string(fleet.AppSpecificPerson), string(personID), string(personID), to.String(), from.String())
}

func (s *Store) RecurringEffectiveBetween(ctx context.Context, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	return s.queryRecurring(ctx, overlapClause, to.String(), from.String())
}

func (s *Store) InsertRecurring(ctx context.Context, e fleet.RecurringExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_expenses (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.CategoryID), string(e.Application),
		nullStr(string(e.Target.CabID)), nullStr(string(e.Target.ShiftID)), nullStr(string(e.Target.ProfileID)),
		nullStr(string(e.Target.OwnerID)), nullStr(string(e.Target.DriverID)), nullStr(string(e.Target.AttributeTypeID)),
		e.Amount.String(), string(e.Billing),
		e.EffectiveFrom.String(), nullDate(e.EffectiveTo),
		boolToInt(e.Active), boolToInt(e.AutoGenerated), nullStr(e.SourceRuleID), nullStr(e.Notes))
	return err
}

// UpdateRecurring soft-closes or reactivates a version. Deliberately only
// effective_to, active and notes are writable; amounts on existing rows are
// immutable.
func (s *Store) UpdateRecurring(ctx context.Context, e fleet.RecurringExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_expenses SET effective_to = ?, active = ?, notes = ?
		WHERE id = ?`,
		nullDate(e.EffectiveTo), boolToInt(e.Active), nullStr(e.Notes), string(e.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &fleet.NotFoundError{Kind: "recurring expense", ID: string(e.ID)}
	}
	return nil
}

// =============================================================================
// EXPENSE STORE - one-time
// =============================================================================

const oneTimeColumns = `id, category_id, application_type, cab_id, shift_id, profile_id,
	owner_id, driver_id, attribute_type_id, amount, expense_date, reimbursed, description`

func scanOneTime(row interface{ Scan(...any) error }) (fleet.OneTimeExpense, error) {
	var (
		e                                            fleet.OneTimeExpense
		cabID, shiftID, profileID, ownerID, driverID sql.NullString
		attrTypeID, description                      sql.NullString
		amount, expenseDate                          string
		reimbursed                                   int
	)
	err := row.Scan(&e.ID, &e.CategoryID, &e.Application, &cabID, &shiftID, &profileID,
		&ownerID, &driverID, &attrTypeID, &amount, &expenseDate, &reimbursed, &description)
	if err != nil {
		return e, err
	}
	e.Target = fleet.TargetRef{
		CabID:           fleet.CabID(emptyIfNull(cabID)),
		ShiftID:         fleet.ShiftID(emptyIfNull(shiftID)),
		ProfileID:       fleet.ProfileID(emptyIfNull(profileID)),
		OwnerID:         fleet.DriverID(emptyIfNull(ownerID)),
		DriverID:        fleet.DriverID(emptyIfNull(driverID)),
		AttributeTypeID: fleet.AttributeTypeID(emptyIfNull(attrTypeID)),
	}
	e.Amount = mustDecimal(amount)
	e.ExpenseDate = mustDate(expenseDate)
	e.Reimbursed = reimbursed == 1
	e.Description = emptyIfNull(description)
	return e, nil
}

func (s *Store) queryOneTime(ctx context.Context, where string, args ...any) ([]fleet.OneTimeExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+oneTimeColumns+` FROM one_time_expenses WHERE `+where+` ORDER BY expense_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.OneTimeExpense
	for rows.Next() {
		e, err := scanOneTime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) OneTimeByID(ctx context.Context, id fleet.ExpenseID) (*fleet.OneTimeExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+oneTimeColumns+` FROM one_time_expenses WHERE id = ?`, string(id))
	e, err := scanOneTime(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) OneTimeInRange(ctx context.Context, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	return s.queryOneTime(ctx, `expense_date >= ? AND expense_date <= ?`, from.String(), to.String())
}

func (s *Store) OneTimeByPerson(ctx context.Context, personID fleet.DriverID, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	return s.queryOneTime(ctx,
		`application_type = ? AND (driver_id = ? OR owner_id = ?) AND expense_date >= ? AND expense_date <= ?`,
		string(fleet.AppSpecificPerson), string(personID), string(personID), from.String(), to.String())
}

func (s *Store) OneTimeByShift(ctx context.Context, shiftID fleet.ShiftID, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	return s.queryOneTime(ctx,
		`application_type = ? AND shift_id = ? AND expense_date >= ? AND expense_date <= ?`,
		string(fleet.AppSpecificShift), string(shiftID), from.String(), to.String())
}

func (s *Store) InsertOneTime(ctx context.Context, e fleet.OneTimeExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO one_time_expenses (`+oneTimeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.CategoryID), string(e.Application),
		nullStr(string(e.Target.CabID)), nullStr(string(e.Target.ShiftID)), nullStr(string(e.Target.ProfileID)),
		nullStr(string(e.Target.OwnerID)), nullStr(string(e.Target.DriverID)), nullStr(string(e.Target.AttributeTypeID)),
		e.Amount.String(), e.ExpenseDate.String(), boolToInt(e.Reimbursed), nullStr(e.Description))
	return err
}

func (s *Store) UpdateOneTime(ctx context.Context, e fleet.OneTimeExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE one_time_expenses SET amount = ?, expense_date = ?, reimbursed = ?, description = ?
		WHERE id = ?`,
		e.Amount.String(), e.ExpenseDate.String(), boolToInt(e.Reimbursed), nullStr(e.Description), string(e.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &fleet.NotFoundError{Kind: "one-time expense", ID: string(e.ID)}
	}
	return nil
}

func (s *Store) DeleteOneTime(ctx context.Context, id fleet.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM one_time_expenses WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// EXPENSE STORE - categories
// =============================================================================

func (s *Store) CategoryByID(ctx context.Context, id fleet.CategoryID) (*fleet.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		c                     fleet.ExpenseCategory
		profileID, attrTypeID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, applies_to, profile_id, attribute_type_id
		FROM expense_categories WHERE id = ?`, string(id)).
		Scan(&c.ID, &c.Code, &c.Name, &c.AppliesTo, &profileID, &attrTypeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ProfileID = fleet.ProfileID(emptyIfNull(profileID))
	c.AttributeTypeID = fleet.AttributeTypeID(emptyIfNull(attrTypeID))
	return &c, nil
}

func (s *Store) InsertCategory(ctx context.Context, c fleet.ExpenseCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, code, name, applies_to, profile_id, attribute_type_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.Code, c.Name, string(c.AppliesTo),
		nullStr(string(c.ProfileID)), nullStr(string(c.AttributeTypeID)))
	return err
}

// =============================================================================
// FLEET STORE - cabs & drivers
// =============================================================================

func (s *Store) CabByID(ctx context.Context, id fleet.CabID) (*fleet.Cab, error) {
	return s.cabWhere(ctx, `id = ?`, string(id))
}

func (s *Store) CabByNumber(ctx context.Context, number string) (*fleet.Cab, error) {
	return s.cabWhere(ctx, `cab_number = ?`, number)
}

func (s *Store) cabWhere(ctx context.Context, where string, arg any) (*fleet.Cab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c fleet.Cab
	err := s.db.QueryRowContext(ctx, `SELECT id, cab_number FROM cabs WHERE `+where, arg).
		Scan(&c.ID, &c.CabNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertCab(ctx context.Context, c fleet.Cab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO cabs (id, cab_number) VALUES (?, ?)`,
		string(c.ID), c.CabNumber)
	return err
}

func scanDriver(row interface{ Scan(...any) error }) (fleet.Driver, error) {
	var (
		d       fleet.Driver
		isOwner int
	)
	err := row.Scan(&d.ID, &d.DriverNumber, &d.Name, &isOwner)
	if err != nil {
		return d, err
	}
	d.IsOwner = isOwner == 1
	return d, nil
}

func (s *Store) DriverByID(ctx context.Context, id fleet.DriverID) (*fleet.Driver, error) {
	return s.driverWhere(ctx, `id = ?`, string(id))
}

func (s *Store) DriverByNumber(ctx context.Context, number string) (*fleet.Driver, error) {
	return s.driverWhere(ctx, `driver_number = ?`, number)
}

func (s *Store) driverWhere(ctx context.Context, where string, arg any) (*fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, driver_number, name, is_owner FROM drivers WHERE `+where, arg)
	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Drivers(ctx context.Context) ([]fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, driver_number, name, is_owner FROM drivers ORDER BY driver_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) InsertDriver(ctx context.Context, d fleet.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drivers (id, driver_number, name, is_owner) VALUES (?, ?, ?, ?)`,
		string(d.ID), d.DriverNumber, d.Name, boolToInt(d.IsOwner))
	return err
}

// =============================================================================
// FLEET STORE - cab shifts
// =============================================================================

const shiftColumns = `id, cab_id, cab_number, shift_type, status, owner_id, profile_id,
	cab_type, share_type, airport_license`

func scanShift(row interface{ Scan(...any) error }) (fleet.CabShift, error) {
	var (
		cs                 fleet.CabShift
		ownerID, profileID sql.NullString
		airport            int
	)
	err := row.Scan(&cs.ID, &cs.CabID, &cs.CabNumber, &cs.ShiftType, &cs.Status,
		&ownerID, &profileID, &cs.CabType, &cs.ShareType, &airport)
	if err != nil {
		return cs, err
	}
	cs.OwnerID = fleet.DriverID(emptyIfNull(ownerID))
	cs.ProfileID = fleet.ProfileID(emptyIfNull(profileID))
	cs.AirportLicense = airport == 1
	return cs, nil
}

func (s *Store) ShiftByID(ctx context.Context, id fleet.ShiftID) (*fleet.CabShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM cab_shifts WHERE id = ?`, string(id))
	cs, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *Store) shiftsWhere(ctx context.Context, where string, args ...any) ([]fleet.CabShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM cab_shifts WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.CabShift
	for rows.Next() {
		cs, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) ShiftsByStatus(ctx context.Context, status fleet.ShiftStatus) ([]fleet.CabShift, error) {
	return s.shiftsWhere(ctx, `status = ?`, string(status))
}

func (s *Store) ShiftsByProfile(ctx context.Context, profileID fleet.ProfileID) ([]fleet.CabShift, error) {
	return s.shiftsWhere(ctx, `profile_id = ?`, string(profileID))
}

func (s *Store) ShiftsByOwner(ctx context.Context, ownerID fleet.DriverID) ([]fleet.CabShift, error) {
	return s.shiftsWhere(ctx, `owner_id = ?`, string(ownerID))
}

func (s *Store) ShiftsByCab(ctx context.Context, cabID fleet.CabID) ([]fleet.CabShift, error) {
	return s.shiftsWhere(ctx, `cab_id = ?`, string(cabID))
}

func (s *Store) InsertShift(ctx context.Context, cs fleet.CabShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cab_shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(cs.ID), string(cs.CabID), cs.CabNumber, string(cs.ShiftType), string(cs.Status),
		nullStr(string(cs.OwnerID)), nullStr(string(cs.ProfileID)),
		string(cs.CabType), string(cs.ShareType), boolToInt(cs.AirportLicense))
	return err
}

// =============================================================================
// FLEET STORE - ownership history
// =============================================================================

func scanOwnership(row interface{ Scan(...any) error }) (fleet.ShiftOwnership, error) {
	var (
		o         fleet.ShiftOwnership
		startDate string
		endDate   sql.NullString
	)
	err := row.Scan(&o.ID, &o.ShiftID, &o.DriverID, &startDate, &endDate)
	if err != nil {
		return o, err
	}
	o.StartDate = mustDate(startDate)
	o.EndDate = scanNullDate(endDate)
	return o, nil
}

func (s *Store) OwnershipAt(ctx context.Context, shiftID fleet.ShiftID, d fleet.Date) (*fleet.ShiftOwnership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, shift_id, driver_id, start_date, end_date FROM shift_ownerships
		WHERE shift_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)`,
		string(shiftID), d.String(), d.String())
	o, err := scanOwnership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) OwnershipsByOwner(ctx context.Context, ownerID fleet.DriverID, from, to fleet.Date) ([]fleet.ShiftOwnership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, driver_id, start_date, end_date FROM shift_ownerships
		WHERE driver_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date`,
		string(ownerID), to.String(), from.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.ShiftOwnership
	for rows.Next() {
		o, err := scanOwnership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) InsertOwnership(ctx context.Context, o fleet.ShiftOwnership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_ownerships (id, shift_id, driver_id, start_date, end_date)
		VALUES (?, ?, ?, ?, ?)`,
		o.ID, string(o.ShiftID), string(o.DriverID), o.StartDate.String(), nullDate(o.EndDate))
	return err
}

// =============================================================================
// FLEET STORE - driven shifts
// =============================================================================

const driverShiftColumns = `id, driver_id, driver_number, cab_number, shift_type,
	logon_at, logoff_at, total_distance, status`

func scanDriverShift(row interface{ Scan(...any) error }) (fleet.DriverShift, error) {
	var (
		ds                        fleet.DriverShift
		logon, logoff, distance   string
	)
	err := row.Scan(&ds.ID, &ds.DriverID, &ds.DriverNumber, &ds.CabNumber, &ds.ShiftType,
		&logon, &logoff, &distance, &ds.Status)
	if err != nil {
		return ds, err
	}
	ds.LogonAt, _ = time.Parse(time.RFC3339, logon)
	ds.LogoffAt, _ = time.Parse(time.RFC3339, logoff)
	ds.TotalDistance = mustDecimal(distance)
	return ds, nil
}

func (s *Store) driverShiftsWhere(ctx context.Context, where string, args ...any) ([]fleet.DriverShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+driverShiftColumns+` FROM driver_shifts WHERE `+where+` ORDER BY logon_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.DriverShift
	for rows.Next() {
		ds, err := scanDriverShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) DriverShiftsByDriver(ctx context.Context, driverNumber string, from, to fleet.Date) ([]fleet.DriverShift, error) {
	return s.driverShiftsWhere(ctx,
		`driver_number = ? AND shift_date >= ? AND shift_date <= ?`,
		driverNumber, from.String(), to.String())
}

func (s *Store) DriverShiftsByCab(ctx context.Context, cabNumber string, from, to fleet.Date) ([]fleet.DriverShift, error) {
	return s.driverShiftsWhere(ctx,
		`cab_number = ? AND shift_date >= ? AND shift_date <= ?`,
		cabNumber, from.String(), to.String())
}

func (s *Store) DriverShiftsInRange(ctx context.Context, from, to fleet.Date) ([]fleet.DriverShift, error) {
	return s.driverShiftsWhere(ctx,
		`shift_date >= ? AND shift_date <= ?`, from.String(), to.String())
}

func (s *Store) InsertDriverShift(ctx context.Context, ds fleet.DriverShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO driver_shifts (`+driverShiftColumns+`, shift_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, string(ds.DriverID), ds.DriverNumber, ds.CabNumber, string(ds.ShiftType),
		ds.LogonAt.UTC().Format(time.RFC3339), ds.LogoffAt.UTC().Format(time.RFC3339),
		ds.TotalDistance.String(), string(ds.Status), ds.ShiftDate().String())
	return err
}

// =============================================================================
// FLEET STORE - attribute values
// =============================================================================

func scanAttributeValue(row interface{ Scan(...any) error }) (fleet.CabAttributeValue, error) {
	var (
		v             fleet.CabAttributeValue
		value         sql.NullString
		effectiveFrom string
		effectiveTo   sql.NullString
		active        int
	)
	err := row.Scan(&v.ID, &v.ShiftID, &v.AttributeTypeID, &value, &effectiveFrom, &effectiveTo, &active)
	if err != nil {
		return v, err
	}
	v.Value = emptyIfNull(value)
	v.EffectiveFrom = mustDate(effectiveFrom)
	v.EffectiveTo = scanNullDate(effectiveTo)
	v.Active = active == 1
	return v, nil
}

func (s *Store) attributesWhere(ctx context.Context, where string, arg any) ([]fleet.CabAttributeValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, attribute_type_id, value, effective_from, effective_to, active
		FROM cab_attribute_values WHERE `+where+` ORDER BY effective_from`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.CabAttributeValue
	for rows.Next() {
		v, err := scanAttributeValue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) AttributeValuesByShift(ctx context.Context, shiftID fleet.ShiftID) ([]fleet.CabAttributeValue, error) {
	return s.attributesWhere(ctx, `shift_id = ?`, string(shiftID))
}

func (s *Store) AttributeValuesByType(ctx context.Context, attrTypeID fleet.AttributeTypeID) ([]fleet.CabAttributeValue, error) {
	return s.attributesWhere(ctx, `attribute_type_id = ?`, string(attrTypeID))
}

func (s *Store) InsertAttributeValue(ctx context.Context, v fleet.CabAttributeValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cab_attribute_values (id, shift_id, attribute_type_id, value, effective_from, effective_to, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, string(v.ShiftID), string(v.AttributeTypeID), nullStr(v.Value),
		v.EffectiveFrom.String(), nullDate(v.EffectiveTo), boolToInt(v.Active))
	return err
}

// =============================================================================
// LEASE STORE
// =============================================================================

func (s *Store) PlanCovering(ctx context.Context, d fleet.Date) (*fleet.LeasePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		p             fleet.LeasePlan
		active        int
		effectiveFrom string
		effectiveTo   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, effective_from, effective_to FROM lease_plans
		WHERE active = 1 AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)
		ORDER BY effective_from DESC LIMIT 1`, d.String(), d.String()).
		Scan(&p.ID, &p.Name, &active, &effectiveFrom, &effectiveTo)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Active = active == 1
	p.EffectiveFrom = mustDate(effectiveFrom)
	p.EffectiveTo = scanNullDate(effectiveTo)
	return &p, nil
}

func (s *Store) InsertPlan(ctx context.Context, p fleet.LeasePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lease_plans (id, name, active, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, boolToInt(p.Active), p.EffectiveFrom.String(), nullDate(p.EffectiveTo))
	return err
}

func (s *Store) RateLookup(ctx context.Context, planID string, key fleet.RateKey) (*fleet.LeaseRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		r                     fleet.LeaseRate
		airport, dayOfWeek    int
		baseRate, mileageRate string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, cab_type, airport_license, shift_type, day_of_week, base_rate, mileage_rate
		FROM lease_rates
		WHERE plan_id = ? AND cab_type = ? AND airport_license = ? AND shift_type = ? AND day_of_week = ?`,
		planID, string(key.CabType), boolToInt(key.AirportLicense), string(key.ShiftType), int(key.DayOfWeek)).
		Scan(&r.ID, &r.PlanID, &r.CabType, &airport, &r.ShiftType, &dayOfWeek, &baseRate, &mileageRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.AirportLicense = airport == 1
	r.DayOfWeek = time.Weekday(dayOfWeek)
	r.BaseRate = mustDecimal(baseRate)
	r.MileageRate = mustDecimal(mileageRate)
	return &r, nil
}

func (s *Store) InsertRate(ctx context.Context, r fleet.LeaseRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lease_rates (id, plan_id, cab_type, airport_license, shift_type, day_of_week, base_rate, mileage_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlanID, string(r.CabType), boolToInt(r.AirportLicense), string(r.ShiftType),
		int(r.DayOfWeek), r.BaseRate.String(), r.MileageRate.String())
	return err
}

func (s *Store) OverridesForOwner(ctx context.Context, ownerID fleet.DriverID, d fleet.Date) ([]fleet.LeaseRateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, cab_id, shift_type, day_of_week, base_rate, mileage_rate,
		       effective_from, effective_to, created_at
		FROM lease_rate_overrides
		WHERE owner_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)
		ORDER BY created_at`,
		string(ownerID), d.String(), d.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fleet.LeaseRateOverride
	for rows.Next() {
		var (
			ov                    fleet.LeaseRateOverride
			cabID, shiftType      sql.NullString
			dayOfWeek             sql.NullInt64
			baseRate, mileageRate string
			effectiveFrom         string
			effectiveTo           sql.NullString
			createdAt             string
		)
		err := rows.Scan(&ov.ID, &ov.OwnerID, &cabID, &shiftType, &dayOfWeek,
			&baseRate, &mileageRate, &effectiveFrom, &effectiveTo, &createdAt)
		if err != nil {
			return nil, err
		}
		if cabID.Valid {
			id := fleet.CabID(cabID.String)
			ov.CabID = &id
		}
		if shiftType.Valid {
			st := fleet.ShiftType(shiftType.String)
			ov.ShiftType = &st
		}
		if dayOfWeek.Valid {
			dow := time.Weekday(dayOfWeek.Int64)
			ov.DayOfWeek = &dow
		}
		ov.BaseRate = mustDecimal(baseRate)
		ov.MileageRate = mustDecimal(mileageRate)
		ov.EffectiveFrom = mustDate(effectiveFrom)
		ov.EffectiveTo = scanNullDate(effectiveTo)
		ov.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (s *Store) InsertOverride(ctx context.Context, ov fleet.LeaseRateOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cabID, shiftType any
	if ov.CabID != nil {
		cabID = string(*ov.CabID)
	}
	if ov.ShiftType != nil {
		shiftType = string(*ov.ShiftType)
	}
	var dayOfWeek any
	if ov.DayOfWeek != nil {
		dayOfWeek = int(*ov.DayOfWeek)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lease_rate_overrides
			(id, owner_id, cab_id, shift_type, day_of_week, base_rate, mileage_rate,
			 effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ov.ID, string(ov.OwnerID), cabID, shiftType, dayOfWeek,
		ov.BaseRate.String(), ov.MileageRate.String(),
		ov.EffectiveFrom.String(), nullDate(ov.EffectiveTo),
		ov.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// STATEMENT STORE - save and read only, finalized statements are immutable
// =============================================================================

func (s *Store) SaveStatement(ctx context.Context, st billing.FinalizedStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statements
			(id, person_id, person_number, from_date, to_date, lines_json,
			 total_expenses, total_revenue, net, finalized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, string(st.PersonID), st.PersonNumber, st.From.String(), st.To.String(),
		st.LinesJSON, st.TotalExpenses.String(), st.TotalRevenue.String(), st.Net.String(),
		st.FinalizedAt.UTC().Format(time.RFC3339))
	return err
}

func scanStatement(row interface{ Scan(...any) error }) (billing.FinalizedStatement, error) {
	var (
		st                                 billing.FinalizedStatement
		from, to                           string
		totalExpenses, totalRevenue, net   string
		finalizedAt                        string
	)
	err := row.Scan(&st.ID, &st.PersonID, &st.PersonNumber, &from, &to, &st.LinesJSON,
		&totalExpenses, &totalRevenue, &net, &finalizedAt)
	if err != nil {
		return st, err
	}
	st.From = mustDate(from)
	st.To = mustDate(to)
	st.TotalExpenses = mustDecimal(totalExpenses)
	st.TotalRevenue = mustDecimal(totalRevenue)
	st.Net = mustDecimal(net)
	st.FinalizedAt, _ = time.Parse(time.RFC3339, finalizedAt)
	return st, nil
}

const statementColumns = `id, person_id, person_number, from_date, to_date, lines_json,
	total_expenses, total_revenue, net, finalized_at`

func (s *Store) StatementByID(ctx context.Context, id string) (*billing.FinalizedStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = ?`, id)
	st, err := scanStatement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) StatementsByPerson(ctx context.Context, personID fleet.DriverID) ([]billing.FinalizedStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE person_id = ? ORDER BY from_date`,
		string(personID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.FinalizedStatement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// IMPORT JOB STORE
// =============================================================================

func (s *Store) SaveJob(ctx context.Context, job importer.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rowErrors, err := json.Marshal(job.RowErrors)
	if err != nil {
		return err
	}
	var endedAt any
	if job.EndedAt != nil {
		endedAt = job.EndedAt.UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, kind, status, started_at, ended_at, rows_total, rows_imported, row_errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			ended_at = excluded.ended_at,
			rows_total = excluded.rows_total,
			rows_imported = excluded.rows_imported,
			row_errors_json = excluded.row_errors_json`,
		job.ID, string(job.Kind), string(job.Status),
		job.StartedAt.UTC().Format(time.RFC3339), endedAt,
		job.RowsTotal, job.RowsImported, string(rowErrors))
	return err
}

func scanJob(row interface{ Scan(...any) error }) (importer.Job, error) {
	var (
		job       importer.Job
		startedAt string
		endedAt   sql.NullString
		rowErrors string
	)
	err := row.Scan(&job.ID, &job.Kind, &job.Status, &startedAt, &endedAt,
		&job.RowsTotal, &job.RowsImported, &rowErrors)
	if err != nil {
		return job, err
	}
	job.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		job.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(rowErrors), &job.RowErrors); err != nil {
		return job, err
	}
	return job, nil
}

const jobColumns = `id, kind, status, started_at, ended_at, rows_total, rows_imported, row_errors_json`

func (s *Store) JobByID(ctx context.Context, id string) (*importer.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) Jobs(ctx context.Context) ([]importer.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM import_jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []importer.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
