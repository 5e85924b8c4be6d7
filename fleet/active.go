package fleet

// Shared activity predicates. The resolver and the lease engine must agree on
// what "active" means or the revenue/expense reconciliation drifts, so both
// go through these.

// ShiftIsActive reports whether a cab shift slot is currently active.
func ShiftIsActive(s CabShift) bool { return s.Status == ShiftActive }

// AttributeActiveOn reports whether an attribute value row is in force on a
// date. Attribute rows are versioned like expenses: the row's own effective
// range decides, the Active flag only marks the current version.
func AttributeActiveOn(v CabAttributeValue, d Date) bool {
	if d.Before(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || d.BeforeOrEqual(*v.EffectiveTo)
}

// DrivenShiftCounts reports whether a driven shift participates in lease and
// per-shift expense calculation. Voided imports do not.
func DrivenShiftCounts(ds DriverShift) bool { return ds.Status != DrivenVoided }
