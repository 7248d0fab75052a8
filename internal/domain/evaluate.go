package domain

import "time"

// Decision is the outcome of evaluating one profile at one instant.
type Decision struct {
	Rollover    bool
	ReminderDue bool

	LocalNow   time.Time // the instant in the profile's (or default) zone
	LocalDate  string
	TZFellBack bool // profile TZ did not resolve; default zone was used
}

// ResolveLocation resolves an IANA timezone id, falling back to def when the
// id is empty or does not resolve. The bool reports whether the fallback was
// taken; the caller logs it, the user flow never sees it.
func ResolveLocation(tz string, def *time.Location) (*time.Location, bool) {
	if tz == "" {
		return def, true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return def, true
	}
	return loc, false
}

// Evaluate decides what a tick at instant now means for p.
//
// Dormant and paused profiles always get the zero Decision: nothing is ever
// advanced before configuration, and a pause freezes scheduling state as-is
// until the user resumes. The reminder check uses absolute elapsed duration,
// not local wall-clock time, so DST shifts between reminders cannot produce
// an early or late fire. Rollover only moves the date forward; a timezone
// reconfiguration that makes "today" earlier than LastResetDate is ignored
// until the local date catches up.
func Evaluate(p *Profile, now time.Time, def *time.Location) Decision {
	if p.Paused || !p.Configured() {
		return Decision{}
	}

	loc, fell := ResolveLocation(p.TZ, def)
	localNow := now.In(loc)

	d := Decision{
		LocalNow:   localNow,
		LocalDate:  DateOf(localNow),
		TZFellBack: fell,
	}
	d.Rollover = p.LastResetDate == "" || d.LocalDate > p.LastResetDate

	cadence := time.Duration(*p.CadenceMinutes) * time.Minute
	d.ReminderDue = p.LastReminderAt == nil || now.Sub(*p.LastReminderAt) >= cadence
	return d
}
