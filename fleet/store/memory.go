// Package store provides an in-memory implementation of the fleet store
// interfaces, used by tests and the dev server.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// MEMORY STORE - Implements fleet.ExpenseStore, fleet.FleetStore,
// fleet.LeaseStore
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	recurring  map[fleet.ExpenseID]fleet.RecurringExpense
	oneTime    map[fleet.ExpenseID]fleet.OneTimeExpense
	categories map[fleet.CategoryID]fleet.ExpenseCategory

	cabs         map[fleet.CabID]fleet.Cab
	drivers      map[fleet.DriverID]fleet.Driver
	shifts       map[fleet.ShiftID]fleet.CabShift
	ownerships   []fleet.ShiftOwnership
	driverShifts []fleet.DriverShift
	attributes   []fleet.CabAttributeValue

	plans     []fleet.LeasePlan
	rates     []fleet.LeaseRate
	overrides []fleet.LeaseRateOverride
}

var (
	_ fleet.ExpenseStore = (*Memory)(nil)
	_ fleet.FleetStore   = (*Memory)(nil)
	_ fleet.LeaseStore   = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		recurring:  make(map[fleet.ExpenseID]fleet.RecurringExpense),
		oneTime:    make(map[fleet.ExpenseID]fleet.OneTimeExpense),
		categories: make(map[fleet.CategoryID]fleet.ExpenseCategory),
		cabs:       make(map[fleet.CabID]fleet.Cab),
		drivers:    make(map[fleet.DriverID]fleet.Driver),
		shifts:     make(map[fleet.ShiftID]fleet.CabShift),
	}
}

// =============================================================================
// EXPENSE STORE
// =============================================================================

func (m *Memory) RecurringByID(_ context.Context, id fleet.ExpenseID) (*fleet.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.recurring[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func overlaps(e fleet.RecurringExpense, from, to fleet.Date) bool {
	if e.EffectiveTo != nil && e.EffectiveTo.Before(from) {
		return false
	}
	return !e.EffectiveFrom.After(to)
}

func (m *Memory) recurringWhere(from, to fleet.Date, keep func(fleet.RecurringExpense) bool) []fleet.RecurringExpense {
	var out []fleet.RecurringExpense
	for _, e := range m.recurring {
		if overlaps(e, from, to) && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) RecurringByProfile(_ context.Context, profileID fleet.ProfileID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recurringWhere(from, to, func(e fleet.RecurringExpense) bool {
		return e.Application == fleet.AppShiftProfile && e.Target.ProfileID == profileID
	}), nil
}

func (m *Memory) RecurringByShift(_ context.Context, shiftID fleet.ShiftID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recurringWhere(from, to, func(e fleet.RecurringExpense) bool {
		return e.Application == fleet.AppSpecificShift && e.Target.ShiftID == shiftID
	}), nil
}

func (m *Memory) RecurringByPerson(_ context.Context, personID fleet.DriverID, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recurringWhere(from, to, func(e fleet.RecurringExpense) bool {
		return e.Application == fleet.AppSpecificPerson && e.Target.PersonID() == personID
	}), nil
}

func (m *Memory) RecurringEffectiveBetween(_ context.Context, from, to fleet.Date) ([]fleet.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recurringWhere(from, to, func(fleet.RecurringExpense) bool { return true }), nil
}

func (m *Memory) InsertRecurring(_ context.Context, e fleet.RecurringExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recurring[e.ID] = e
	return nil
}

func (m *Memory) UpdateRecurring(_ context.Context, e fleet.RecurringExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recurring[e.ID]; !ok {
		return &fleet.NotFoundError{Kind: "recurring expense", ID: string(e.ID)}
	}
	m.recurring[e.ID] = e
	return nil
}

func (m *Memory) OneTimeByID(_ context.Context, id fleet.ExpenseID) (*fleet.OneTimeExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.oneTime[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) oneTimeWhere(from, to fleet.Date, keep func(fleet.OneTimeExpense) bool) []fleet.OneTimeExpense {
	r := fleet.NewDateRange(from, to)
	var out []fleet.OneTimeExpense
	for _, e := range m.oneTime {
		if r.Contains(e.ExpenseDate) && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) OneTimeInRange(_ context.Context, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oneTimeWhere(from, to, func(fleet.OneTimeExpense) bool { return true }), nil
}

func (m *Memory) OneTimeByPerson(_ context.Context, personID fleet.DriverID, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oneTimeWhere(from, to, func(e fleet.OneTimeExpense) bool {
		return e.Application == fleet.AppSpecificPerson && e.Target.PersonID() == personID
	}), nil
}

func (m *Memory) OneTimeByShift(_ context.Context, shiftID fleet.ShiftID, from, to fleet.Date) ([]fleet.OneTimeExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oneTimeWhere(from, to, func(e fleet.OneTimeExpense) bool {
		return e.Application == fleet.AppSpecificShift && e.Target.ShiftID == shiftID
	}), nil
}

func (m *Memory) InsertOneTime(_ context.Context, e fleet.OneTimeExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneTime[e.ID] = e
	return nil
}

func (m *Memory) UpdateOneTime(_ context.Context, e fleet.OneTimeExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.oneTime[e.ID]; !ok {
		return &fleet.NotFoundError{Kind: "one-time expense", ID: string(e.ID)}
	}
	m.oneTime[e.ID] = e
	return nil
}

func (m *Memory) DeleteOneTime(_ context.Context, id fleet.ExpenseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.oneTime, id)
	return nil
}

func (m *Memory) CategoryByID(_ context.Context, id fleet.CategoryID) (*fleet.ExpenseCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) InsertCategory(_ context.Context, c fleet.ExpenseCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

// =============================================================================
// FLEET STORE
// =============================================================================

func (m *Memory) CabByID(_ context.Context, id fleet.CabID) (*fleet.Cab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cabs[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CabByNumber(_ context.Context, number string) (*fleet.Cab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cabs {
		if c.CabNumber == number {
			cab := c
			return &cab, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertCab(_ context.Context, c fleet.Cab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cabs[c.ID] = c
	return nil
}

func (m *Memory) DriverByID(_ context.Context, id fleet.DriverID) (*fleet.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.drivers[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *Memory) DriverByNumber(_ context.Context, number string) (*fleet.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.DriverNumber == number {
			driver := d
			return &driver, nil
		}
	}
	return nil, nil
}

func (m *Memory) Drivers(_ context.Context) ([]fleet.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fleet.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) InsertDriver(_ context.Context, d fleet.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

func (m *Memory) ShiftByID(_ context.Context, id fleet.ShiftID) (*fleet.CabShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.shifts[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) shiftsWhere(keep func(fleet.CabShift) bool) []fleet.CabShift {
	var out []fleet.CabShift
	for _, s := range m.shifts {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ShiftsByStatus(_ context.Context, status fleet.ShiftStatus) ([]fleet.CabShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsWhere(func(s fleet.CabShift) bool { return s.Status == status }), nil
}

func (m *Memory) ShiftsByProfile(_ context.Context, profileID fleet.ProfileID) ([]fleet.CabShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsWhere(func(s fleet.CabShift) bool { return s.ProfileID == profileID }), nil
}

func (m *Memory) ShiftsByOwner(_ context.Context, ownerID fleet.DriverID) ([]fleet.CabShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsWhere(func(s fleet.CabShift) bool { return s.OwnerID == ownerID }), nil
}

func (m *Memory) ShiftsByCab(_ context.Context, cabID fleet.CabID) ([]fleet.CabShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsWhere(func(s fleet.CabShift) bool { return s.CabID == cabID }), nil
}

func (m *Memory) InsertShift(_ context.Context, s fleet.CabShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ID] = s
	return nil
}

func (m *Memory) OwnershipAt(_ context.Context, shiftID fleet.ShiftID, d fleet.Date) (*fleet.ShiftOwnership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.ownerships {
		if o.ShiftID == shiftID && o.Covers(d) {
			ownership := o
			return &ownership, nil
		}
	}
	return nil, nil
}

func (m *Memory) OwnershipsByOwner(_ context.Context, ownerID fleet.DriverID, from, to fleet.Date) ([]fleet.ShiftOwnership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fleet.ShiftOwnership
	for _, o := range m.ownerships {
		if o.DriverID != ownerID {
			continue
		}
		if o.EndDate != nil && o.EndDate.Before(from) {
			continue
		}
		if o.StartDate.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *Memory) InsertOwnership(_ context.Context, o fleet.ShiftOwnership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ownerships {
		if m.ownerships[i].ID == o.ID {
			m.ownerships[i] = o
			return nil
		}
	}
	m.ownerships = append(m.ownerships, o)
	return nil
}

func (m *Memory) driverShiftsWhere(from, to fleet.Date, keep func(fleet.DriverShift) bool) []fleet.DriverShift {
	r := fleet.NewDateRange(from, to)
	var out []fleet.DriverShift
	for _, ds := range m.driverShifts {
		if r.Contains(ds.ShiftDate()) && keep(ds) {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogonAt.Before(out[j].LogonAt) })
	return out
}

func (m *Memory) DriverShiftsByDriver(_ context.Context, driverNumber string, from, to fleet.Date) ([]fleet.DriverShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driverShiftsWhere(from, to, func(ds fleet.DriverShift) bool { return ds.DriverNumber == driverNumber }), nil
}

func (m *Memory) DriverShiftsByCab(_ context.Context, cabNumber string, from, to fleet.Date) ([]fleet.DriverShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driverShiftsWhere(from, to, func(ds fleet.DriverShift) bool { return ds.CabNumber == cabNumber }), nil
}

func (m *Memory) DriverShiftsInRange(_ context.Context, from, to fleet.Date) ([]fleet.DriverShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driverShiftsWhere(from, to, func(fleet.DriverShift) bool { return true }), nil
}

func (m *Memory) InsertDriverShift(_ context.Context, ds fleet.DriverShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driverShifts = append(m.driverShifts, ds)
	return nil
}

func (m *Memory) AttributeValuesByShift(_ context.Context, shiftID fleet.ShiftID) ([]fleet.CabAttributeValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fleet.CabAttributeValue
	for _, v := range m.attributes {
		if v.ShiftID == shiftID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) AttributeValuesByType(_ context.Context, attrTypeID fleet.AttributeTypeID) ([]fleet.CabAttributeValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fleet.CabAttributeValue
	for _, v := range m.attributes {
		if v.AttributeTypeID == attrTypeID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) InsertAttributeValue(_ context.Context, v fleet.CabAttributeValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes = append(m.attributes, v)
	return nil
}

// =============================================================================
// LEASE STORE
// =============================================================================

func (m *Memory) PlanCovering(_ context.Context, d fleet.Date) (*fleet.LeasePlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plans {
		if p.Covers(d) {
			plan := p
			return &plan, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertPlan(_ context.Context, p fleet.LeasePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, p)
	return nil
}

func (m *Memory) RateLookup(_ context.Context, planID string, key fleet.RateKey) (*fleet.LeaseRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rates {
		if r.PlanID == planID && r.CabType == key.CabType && r.AirportLicense == key.AirportLicense &&
			r.ShiftType == key.ShiftType && r.DayOfWeek == key.DayOfWeek {
			rate := r
			return &rate, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertRate(_ context.Context, r fleet.LeaseRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = append(m.rates, r)
	return nil
}

func (m *Memory) OverridesForOwner(_ context.Context, ownerID fleet.DriverID, d fleet.Date) ([]fleet.LeaseRateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fleet.LeaseRateOverride
	for _, ov := range m.overrides {
		if ov.OwnerID == ownerID && ov.Covers(d) {
			out = append(out, ov)
		}
	}
	return out, nil
}

func (m *Memory) InsertOverride(_ context.Context, ov fleet.LeaseRateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, ov)
	return nil
}
