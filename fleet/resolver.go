/*
resolver.go - Application-type target resolution

PURPOSE:
  Given an expense (or category) and a reference date, resolve the concrete
  set of target entities it applies to. This is a single exhaustive switch
  over the closed ApplicationType enum - per-type behavior lives here and
  nowhere else.

INVARIANTS:
  - Read-only and idempotent: resolution never mutates state, so the same
    inputs always produce the same set.
  - Missing targeting fields fail with ValidationError; dangling ids fail
    with NotFoundError.

VARIANTS:
  - SHIFT_PROFILE has two callers' views: "all shifts with profile" and
    "active shifts with profile". ResolveOptions.ActiveOnly selects the
    latter (used by preview/apply operations).
  - ALL_ACTIVE_SHIFTS / ALL_OWNERS restrict to one owner's shifts when
    ResolveOptions.OwnerScope is set (owner-scoped reports); the restriction
    is checked against ShiftOwnership as of the reference date, not the
    mutable current-owner column.

EXPANSION:
  Fan-out of ALL_ACTIVE_SHIFTS / SHIFTS_WITH_ATTRIBUTE charges into one
  statement line per shift happens in billing, not here. The resolver only
  answers "which shifts".
*/
package fleet

import "context"

// =============================================================================
// TARGETS
// =============================================================================

// Target is one resolved entity. Exactly one of the fields is set.
type Target struct {
	Shift  *CabShift
	Cab    *Cab
	Driver *Driver
}

// ResolveOptions tune variant behavior; the zero value is the common case.
type ResolveOptions struct {
	// ActiveOnly restricts SHIFT_PROFILE resolution to ACTIVE shifts.
	ActiveOnly bool

	// OwnerScope restricts fleet-wide shift resolution to shifts owned by
	// this driver as of the reference date.
	OwnerScope DriverID
}

// =============================================================================
// RESOLVER
// =============================================================================

type Resolver struct {
	Fleet FleetStore
}

func NewResolver(fleet FleetStore) *Resolver { return &Resolver{Fleet: fleet} }

// ResolveTargets resolves the application type to its concrete targets as of
// the reference date.
func (r *Resolver) ResolveTargets(ctx context.Context, app ApplicationType, target TargetRef,
	asOf Date, opts ResolveOptions) ([]Target, error) {

	if err := target.Validate(app); err != nil {
		return nil, err
	}

	switch app {
	case AppSpecificCab:
		return r.specificCab(ctx, target.CabID)
	case AppSpecificShift:
		return r.specificShift(ctx, target.ShiftID)
	case AppShiftProfile:
		return r.shiftsWithProfile(ctx, target.ProfileID, opts.ActiveOnly)
	case AppShiftsWithAttribute:
		return r.shiftsWithAttribute(ctx, target.AttributeTypeID, asOf, opts.OwnerScope)
	case AppAllActiveShifts, AppAllOwners:
		return r.allActiveShifts(ctx, asOf, opts.OwnerScope)
	case AppAllDrivers:
		return r.allNonOwnerDrivers(ctx)
	case AppSpecificPerson:
		return r.specificPerson(ctx, target.PersonID())
	default:
		return nil, &ValidationError{Field: "application_type", Message: "unknown application type " + string(app)}
	}
}

func (r *Resolver) specificCab(ctx context.Context, id CabID) ([]Target, error) {
	cab, err := r.Fleet.CabByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cab == nil {
		return nil, &NotFoundError{Kind: "cab", ID: string(id)}
	}
	return []Target{{Cab: cab}}, nil
}

func (r *Resolver) specificShift(ctx context.Context, id ShiftID) ([]Target, error) {
	shift, err := r.Fleet.ShiftByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, &NotFoundError{Kind: "shift", ID: string(id)}
	}
	return []Target{{Shift: shift}}, nil
}

func (r *Resolver) shiftsWithProfile(ctx context.Context, profileID ProfileID, activeOnly bool) ([]Target, error) {
	shifts, err := r.Fleet.ShiftsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	var targets []Target
	for i := range shifts {
		if activeOnly && !ShiftIsActive(shifts[i]) {
			continue
		}
		targets = append(targets, Target{Shift: &shifts[i]})
	}
	return targets, nil
}

func (r *Resolver) shiftsWithAttribute(ctx context.Context, attrTypeID AttributeTypeID,
	asOf Date, ownerScope DriverID) ([]Target, error) {

	values, err := r.Fleet.AttributeValuesByType(ctx, attrTypeID)
	if err != nil {
		return nil, err
	}
	var targets []Target
	seen := make(map[ShiftID]bool)
	for _, v := range values {
		if !AttributeActiveOn(v, asOf) || seen[v.ShiftID] {
			continue
		}
		shift, err := r.Fleet.ShiftByID(ctx, v.ShiftID)
		if err != nil {
			return nil, err
		}
		if shift == nil {
			continue // attribute row outlived its shift; skip, don't fail the set
		}
		if ownerScope != "" {
			owned, err := r.ownedBy(ctx, shift.ID, ownerScope, asOf)
			if err != nil {
				return nil, err
			}
			if !owned {
				continue
			}
		}
		seen[v.ShiftID] = true
		targets = append(targets, Target{Shift: shift})
	}
	return targets, nil
}

func (r *Resolver) allActiveShifts(ctx context.Context, asOf Date, ownerScope DriverID) ([]Target, error) {
	shifts, err := r.Fleet.ShiftsByStatus(ctx, ShiftActive)
	if err != nil {
		return nil, err
	}
	var targets []Target
	for i := range shifts {
		if ownerScope != "" {
			owned, err := r.ownedBy(ctx, shifts[i].ID, ownerScope, asOf)
			if err != nil {
				return nil, err
			}
			if !owned {
				continue
			}
		}
		targets = append(targets, Target{Shift: &shifts[i]})
	}
	return targets, nil
}

func (r *Resolver) allNonOwnerDrivers(ctx context.Context) ([]Target, error) {
	drivers, err := r.Fleet.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	var targets []Target
	for i := range drivers {
		if drivers[i].IsOwner {
			continue
		}
		targets = append(targets, Target{Driver: &drivers[i]})
	}
	return targets, nil
}

func (r *Resolver) specificPerson(ctx context.Context, id DriverID) ([]Target, error) {
	driver, err := r.Fleet.DriverByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, &NotFoundError{Kind: "driver", ID: string(id)}
	}
	return []Target{{Driver: driver}}, nil
}

// ownedBy checks ownership via the ShiftOwnership history, not the mutable
// current-owner column, so resolution stays correct for past reference dates.
func (r *Resolver) ownedBy(ctx context.Context, shiftID ShiftID, ownerID DriverID, asOf Date) (bool, error) {
	o, err := r.Fleet.OwnershipAt(ctx, shiftID, asOf)
	if err != nil {
		return false, err
	}
	return o != nil && o.DriverID == ownerID, nil
}
