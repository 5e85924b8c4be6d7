/*
importer.go - CSV row parsing and persistence

PURPOSE:
  Parses fixed-layout CSV exports from the dispatch and card systems into
  validated rows, persists them, and records the run in the job store.

LAYOUTS (header row required):
  driver shifts: driver_number,cab_number,shift_type,logon,logoff,distance
                 logon/logoff are RFC 3339 timestamps; distance is miles.
  card charges:  driver_number,date,amount,description
                 date is 2006-01-02; a one-time SPECIFIC_PERSON expense is
                 created per row under the configured category.

FAILURE HANDLING:
  A malformed row is recorded as a RowError and skipped; the import always
  runs to the end of the file. Only I/O-level failures mark the job FAILED.
*/
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
)

type Importer struct {
	Fleet    fleet.FleetStore
	Expenses fleet.ExpenseStore
	Jobs     JobStore

	// CardCategory is the expense category card charges are booked under.
	CardCategory fleet.CategoryID
}

func New(fleetStore fleet.FleetStore, expenses fleet.ExpenseStore, jobs JobStore) *Importer {
	return &Importer{Fleet: fleetStore, Expenses: expenses, Jobs: jobs, CardCategory: "card-charge"}
}

// ImportDriverShifts reads the driver-shift CSV and persists one DriverShift
// per valid row.
func (imp *Importer) ImportDriverShifts(ctx context.Context, r io.Reader) (Job, error) {
	return imp.run(ctx, r, JobDriverShifts, []string{"driver_number", "cab_number", "shift_type", "logon", "logoff", "distance"},
		func(ctx context.Context, record []string) error {
			return imp.importDriverShift(ctx, record)
		})
}

// ImportCardCharges reads the card-charge CSV and creates one one-time
// expense per valid row.
func (imp *Importer) ImportCardCharges(ctx context.Context, r io.Reader) (Job, error) {
	return imp.run(ctx, r, JobCardCharges, []string{"driver_number", "date", "amount", "description"},
		func(ctx context.Context, record []string) error {
			return imp.importCardCharge(ctx, record)
		})
}

func (imp *Importer) run(ctx context.Context, r io.Reader, kind JobKind, header []string,
	importRow func(context.Context, []string) error) (Job, error) {

	job := newJob(kind, time.Now().UTC())
	if err := imp.Jobs.SaveJob(ctx, job); err != nil {
		return job, err
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err != nil {
		return imp.fail(ctx, job, fmt.Errorf("reading header: %w", err))
	}
	if err := checkHeader(first, header); err != nil {
		return imp.fail(ctx, job, err)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			job.RowErrors = append(job.RowErrors, RowError{Line: line, Message: err.Error()})
			continue
		}
		job.RowsTotal++
		if err := importRow(ctx, record); err != nil {
			log.Printf("importer: line %d skipped: %v", line, err)
			job.RowErrors = append(job.RowErrors, RowError{Line: line, Message: err.Error()})
			continue
		}
		job.RowsImported++
	}

	now := time.Now().UTC()
	job.Status = JobCompleted
	job.EndedAt = &now
	if err := imp.Jobs.SaveJob(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

func (imp *Importer) fail(ctx context.Context, job Job, cause error) (Job, error) {
	now := time.Now().UTC()
	job.Status = JobFailed
	job.EndedAt = &now
	job.RowErrors = append(job.RowErrors, RowError{Line: 1, Message: cause.Error()})
	if err := imp.Jobs.SaveJob(ctx, job); err != nil {
		return job, err
	}
	return job, cause
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return fmt.Errorf("expected column %q at position %d, got %q", want[i], i+1, got[i])
		}
	}
	return nil
}

func (imp *Importer) importDriverShift(ctx context.Context, record []string) error {
	driverNumber := strings.TrimSpace(record[0])
	driver, err := imp.Fleet.DriverByNumber(ctx, driverNumber)
	if err != nil {
		return err
	}
	if driver == nil {
		return &fleet.NotFoundError{Kind: "driver", ID: driverNumber}
	}

	cabNumber := strings.TrimSpace(record[1])
	cab, err := imp.Fleet.CabByNumber(ctx, cabNumber)
	if err != nil {
		return err
	}
	if cab == nil {
		return &fleet.NotFoundError{Kind: "cab", ID: cabNumber}
	}

	shiftType := fleet.ShiftType(strings.ToUpper(strings.TrimSpace(record[2])))
	if shiftType != fleet.ShiftDay && shiftType != fleet.ShiftNight {
		return &fleet.ValidationError{Field: "shift_type", Message: "must be DAY or NIGHT"}
	}

	logon, err := time.Parse(time.RFC3339, strings.TrimSpace(record[3]))
	if err != nil {
		return &fleet.ValidationError{Field: "logon", Message: err.Error()}
	}
	logoff, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
	if err != nil {
		return &fleet.ValidationError{Field: "logoff", Message: err.Error()}
	}
	if !logoff.After(logon) {
		return &fleet.ValidationError{Field: "logoff", Message: "must be after logon"}
	}

	distance, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil {
		return &fleet.ValidationError{Field: "distance", Message: err.Error()}
	}
	if distance.IsNegative() {
		return &fleet.ValidationError{Field: "distance", Message: "must not be negative"}
	}

	return imp.Fleet.InsertDriverShift(ctx, fleet.DriverShift{
		ID:            uuid.NewString(),
		DriverID:      driver.ID,
		DriverNumber:  driver.DriverNumber,
		CabNumber:     cab.CabNumber,
		ShiftType:     shiftType,
		LogonAt:       logon,
		LogoffAt:      logoff,
		TotalDistance: distance,
		Status:        fleet.DrivenCompleted,
	})
}

func (imp *Importer) importCardCharge(ctx context.Context, record []string) error {
	driverNumber := strings.TrimSpace(record[0])
	driver, err := imp.Fleet.DriverByNumber(ctx, driverNumber)
	if err != nil {
		return err
	}
	if driver == nil {
		return &fleet.NotFoundError{Kind: "driver", ID: driverNumber}
	}

	date, err := fleet.ParseDate(strings.TrimSpace(record[1]))
	if err != nil {
		return &fleet.ValidationError{Field: "date", Message: err.Error()}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return &fleet.ValidationError{Field: "amount", Message: err.Error()}
	}

	return imp.Expenses.InsertOneTime(ctx, fleet.OneTimeExpense{
		ID:          fleet.ExpenseID(uuid.NewString()),
		CategoryID:  imp.CardCategory,
		Application: fleet.AppSpecificPerson,
		Target:      fleet.TargetRef{DriverID: driver.ID},
		Amount:      amount,
		ExpenseDate: date,
		Description: strings.TrimSpace(record[3]),
	})
}
