package domain

import "time"

// WakingMinutes is the assumed active period per day, used to derive the
// per-reminder quantity in ModeGoal.
const WakingMinutes = 16 * 60

// SummaryEvent reports a completed day: emitted on rollover, sent to the
// log target when one is configured, silently dropped otherwise.
type SummaryEvent struct {
	UserID int64
	Date   string
	Total  int
	Goal   *int
	Unit   Unit
	Dest   Destination // log target; zero means "drop"
}

// ReminderEvent is a fired reminder awaiting delivery.
type ReminderEvent struct {
	UserID      int64
	Amount      int
	Unit        Unit
	Total       int // accumulator after the add
	Goal        *int
	SelfMention bool
	Dest        Destination // reminder target; zero means "directly to user"
}

// LogEchoEvent mirrors an intake (manual or reminder) to the log target.
type LogEchoEvent struct {
	UserID int64
	Amount int
	Unit   Unit
	Total  int
	Kind   EventKind
	Dest   Destination // log target; zero means "drop"
}

// ReminderQuantity returns the amount one reminder adds for p.
//
// ModeGoal spreads DailyGoal over the reminders that fit the waking period,
// rounding up and clamping to at least 1 so progress is made even when the
// cadence is huge relative to the goal. Callers must ensure p is Configured.
func ReminderQuantity(p *Profile) int {
	if p.Mode == ModeGoal {
		perDay := WakingMinutes / *p.CadenceMinutes
		if perDay < 1 {
			perDay = 1
		}
		q := (*p.DailyGoal + perDay - 1) / perDay
		if q < 1 {
			q = 1
		}
		return q
	}
	return *p.Increment
}

// ApplyRollover moves p onto localDate.
//
// The prior day's total is archived and a summary event returned; the
// initialization case (no prior LastResetDate) just anchors the date and
// returns nil. A localDate at or behind LastResetDate is a no-op, which
// keeps the date monotonic and makes a crash-restart re-invocation for an
// already-rolled date harmless.
func ApplyRollover(p *Profile, localDate string) *SummaryEvent {
	if p.LastResetDate == "" {
		p.LastResetDate = localDate
		p.Accumulator = 0
		return nil
	}
	if localDate <= p.LastResetDate {
		return nil
	}

	closed := p.LastResetDate
	total := p.Accumulator
	if p.Archive == nil {
		p.Archive = make(map[string]int)
	}
	p.Archive[closed] = total

	p.Accumulator = 0
	p.LastReminderAt = nil
	p.LastResetDate = localDate

	return &SummaryEvent{
		UserID: p.UserID,
		Date:   closed,
		Total:  total,
		Goal:   p.DailyGoal,
		Unit:   p.Unit,
		Dest:   p.LogTarget,
	}
}

// ApplyReminder fires a reminder for p at instant now.
//
// LastReminderAt is stamped here, before any delivery is attempted, so a
// slow or failing notifier cannot cause a second fire on the next tick.
// The intake is bucketed under LastResetDate: the driver applies rollover
// first, so that is always the current local date.
func ApplyReminder(p *Profile, now time.Time) (ReminderEvent, *LogEchoEvent) {
	amount := ReminderQuantity(p)
	ts := now.UTC()

	appendEvent(p, IntakeEvent{
		At:     ts,
		Amount: amount,
		Unit:   p.Unit,
		Kind:   EventReminder,
		Dest:   p.ReminderTarget,
	})
	p.Accumulator += amount
	p.LastReminderAt = &ts

	ev := ReminderEvent{
		UserID:      p.UserID,
		Amount:      amount,
		Unit:        p.Unit,
		Total:       p.Accumulator,
		Goal:        p.DailyGoal,
		SelfMention: p.SelfMention,
		Dest:        p.ReminderTarget,
	}

	var echo *LogEchoEvent
	if p.LogTarget != DirectToUser {
		echo = &LogEchoEvent{
			UserID: p.UserID,
			Amount: amount,
			Unit:   p.Unit,
			Total:  p.Accumulator,
			Kind:   EventReminder,
			Dest:   p.LogTarget,
		}
	}
	return ev, echo
}

// ApplyManual records a user-initiated intake of amount at instant now.
// Callers roll the day first (ApplyRollover) when the local date has moved.
func ApplyManual(p *Profile, now time.Time, amount int) *LogEchoEvent {
	appendEvent(p, IntakeEvent{
		At:     now.UTC(),
		Amount: amount,
		Unit:   p.Unit,
		Kind:   EventManual,
		Dest:   p.LogTarget,
	})
	p.Accumulator += amount

	if p.LogTarget == DirectToUser {
		return nil
	}
	return &LogEchoEvent{
		UserID: p.UserID,
		Amount: amount,
		Unit:   p.Unit,
		Total:  p.Accumulator,
		Kind:   EventManual,
		Dest:   p.LogTarget,
	}
}

func appendEvent(p *Profile, ev IntakeEvent) {
	if p.Events == nil {
		p.Events = make(map[string][]IntakeEvent)
	}
	p.Events[p.LastResetDate] = append(p.Events[p.LastResetDate], ev)
}
