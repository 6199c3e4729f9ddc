package appointment

import "time"

// LateThreshold is how far past its scheduled time a programme appointment
// may run before the agenda shows it as retard, when no threshold is
// configured.
const LateThreshold = 15 * time.Minute

// IsLate reports whether a should be displayed as retard at instant now.
// Only programme appointments are ever reclassified; an unparseable
// schedule is never late. A threshold of zero or less falls back to
// LateThreshold.
func IsLate(a *Appointment, now time.Time, threshold time.Duration) bool {
	if a.Statut != StatusProgramme {
		return false
	}
	if threshold <= 0 {
		threshold = LateThreshold
	}
	scheduled, err := a.ScheduledAt(now.Location())
	if err != nil {
		return false
	}
	return now.Sub(scheduled) > threshold
}

// DisplayStatus is the status agenda views present: the stored statut,
// except that an overdue programme appointment reads as retard. The stored
// value is never touched here.
func DisplayStatus(a *Appointment, now time.Time, threshold time.Duration) Status {
	if IsLate(a, now, threshold) {
		return StatusRetard
	}
	return a.Statut
}
