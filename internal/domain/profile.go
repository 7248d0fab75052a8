package domain

import "time"

// Unit is the volume unit a profile logs intake in.
type Unit string

const (
	UnitML Unit = "ml"
	UnitOZ Unit = "oz"
)

// Mode selects how the per-reminder quantity is determined.
type Mode string

const (
	// ModeFixed adds Increment on every reminder.
	ModeFixed Mode = "fixed"
	// ModeGoal derives the quantity from DailyGoal and the cadence.
	ModeGoal Mode = "goal"
)

// EventKind tags how an intake event originated.
type EventKind string

const (
	EventManual   EventKind = "manual"
	EventReminder EventKind = "reminder"
)

// Destination is an opaque delivery target (a chat ID). The zero value is a
// sentinel: for reminders it means "directly to the user", for log and coach
// targets it means "not configured".
type Destination int64

const DirectToUser Destination = 0

// Or resolves the destination against the owning user's chat ID.
func (d Destination) Or(userID int64) int64 {
	if d == DirectToUser {
		return userID
	}
	return int64(d)
}

// DateLayout is the calendar-date key used for the accumulator day, the
// archive and the event log. Local dates only; instants stay absolute UTC.
const DateLayout = "2006-01-02"

// DateOf returns t's calendar date in t's location.
func DateOf(t time.Time) string { return t.Format(DateLayout) }

// IntakeEvent is one logged intake, bucketed under a local calendar date.
type IntakeEvent struct {
	At     time.Time // UTC
	Amount int
	Unit   Unit
	Kind   EventKind
	Dest   Destination
}

// Profile holds one user's hydration settings and scheduling state.
//
// Configuration fields are written by the command layer; scheduling state
// (Accumulator, LastResetDate, LastReminderAt, Archive, Events) is advanced
// by the tick driver and the manual-log flow. No other writer exists.
type Profile struct {
	UserID int64

	// Configuration.
	Mode             Mode
	Increment        *int // per-reminder quantity (ModeFixed); nil until set
	DailyGoal        *int // daily target (ModeGoal); nil until set
	Unit             Unit
	CadenceMinutes   *int   // minutes between reminders; nil until set
	TZ               string // IANA id; resolved lazily with a default fallback
	ReminderTarget   Destination
	LogTarget        Destination
	CoachTarget      Destination
	SelfMention      bool
	CoachNotifyOnLog bool
	Paused           bool // user-requested stop; scheduling skips the profile until resumed

	// Scheduling state.
	Accumulator    int
	LastResetDate  string     // local date the accumulator is valid for; empty until first tick
	LastReminderAt *time.Time // UTC, nullable; nil means "never fired, due now"

	Archive map[string]int           // date -> archived total, append-only
	Events  map[string][]IntakeEvent // date -> ordered intakes, append-only per date

	CreatedAt time.Time // UTC
}

// Configured reports whether scheduling has everything it needs: a cadence
// plus the active mode's quantity source. Anything else is dormant and is
// never touched by the tick driver.
func (p *Profile) Configured() bool {
	if p.CadenceMinutes == nil || *p.CadenceMinutes <= 0 {
		return false
	}
	switch p.Mode {
	case ModeGoal:
		return p.DailyGoal != nil && *p.DailyGoal > 0
	default:
		return p.Increment != nil && *p.Increment > 0
	}
}

// Clone returns a deep copy, so stores and tests never alias live state.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.Increment != nil {
		v := *p.Increment
		cp.Increment = &v
	}
	if p.DailyGoal != nil {
		v := *p.DailyGoal
		cp.DailyGoal = &v
	}
	if p.CadenceMinutes != nil {
		v := *p.CadenceMinutes
		cp.CadenceMinutes = &v
	}
	if p.LastReminderAt != nil {
		v := *p.LastReminderAt
		cp.LastReminderAt = &v
	}
	if p.Archive != nil {
		cp.Archive = make(map[string]int, len(p.Archive))
		for d, t := range p.Archive {
			cp.Archive[d] = t
		}
	}
	if p.Events != nil {
		cp.Events = make(map[string][]IntakeEvent, len(p.Events))
		for d, evs := range p.Events {
			cp.Events[d] = append([]IntakeEvent(nil), evs...)
		}
	}
	return &cp
}
