package domain

import (
	"testing"
	"time"
)

func TestApplyRollover_ArchivesPriorDay(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-01"
	p.Accumulator = 500
	last := time.Date(2024, time.January, 1, 22, 0, 0, 0, time.UTC)
	p.LastReminderAt = &last
	p.LogTarget = Destination(42)

	ev := ApplyRollover(p, "2024-01-02")
	if ev == nil {
		t.Fatalf("want summary event")
	}
	if ev.Date != "2024-01-01" || ev.Total != 500 || ev.Dest != Destination(42) {
		t.Fatalf("bad summary: %+v", ev)
	}
	if p.Archive["2024-01-01"] != 500 {
		t.Fatalf("archive: want 500, got %d", p.Archive["2024-01-01"])
	}
	if p.Accumulator != 0 || p.LastReminderAt != nil {
		t.Fatalf("accumulator/reminder not reset: %d %v", p.Accumulator, p.LastReminderAt)
	}
	if p.LastResetDate != "2024-01-02" {
		t.Fatalf("date not advanced: %s", p.LastResetDate)
	}
	if _, ok := p.Archive["2024-01-02"]; ok {
		t.Fatalf("archive must never hold the current date")
	}
}

func TestApplyRollover_InitializationEmitsNoSummary(t *testing.T) {
	p := configuredProfile("UTC")

	if ev := ApplyRollover(p, "2024-01-02"); ev != nil {
		t.Fatalf("initialization must not emit a summary, got %+v", ev)
	}
	if p.LastResetDate != "2024-01-02" || p.Accumulator != 0 {
		t.Fatalf("initialization did not anchor the date: %+v", p)
	}
	if len(p.Archive) != 0 {
		t.Fatalf("initialization must not archive anything")
	}
}

func TestApplyRollover_SameOrEarlierDateIsNoop(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-02"
	p.Accumulator = 300

	if ev := ApplyRollover(p, "2024-01-02"); ev != nil {
		t.Fatalf("same date must be a no-op")
	}
	if ev := ApplyRollover(p, "2024-01-01"); ev != nil {
		t.Fatalf("earlier date must be a no-op")
	}
	if p.Accumulator != 300 || p.LastResetDate != "2024-01-02" {
		t.Fatalf("no-op mutated the profile: %+v", p)
	}
}

func TestReminderQuantity_Fixed(t *testing.T) {
	p := configuredProfile("UTC")
	if q := ReminderQuantity(p); q != 250 {
		t.Fatalf("want 250, got %d", q)
	}
}

func TestReminderQuantity_GoalDerived(t *testing.T) {
	cases := []struct {
		goal, cadence, want int
	}{
		{2000, 120, 250}, // 8 reminders over 16h waking
		{1000, 90, 100},  // floor(960/90)=10 reminders
		{2000, 60, 125},  // 16 reminders
		{5, 1440, 5},     // cadence longer than waking period -> one reminder
		{3, 60, 1},       // tiny goal still makes >= 1 progress
	}
	for _, c := range cases {
		p := &Profile{
			Mode:           ModeGoal,
			DailyGoal:      intp(c.goal),
			CadenceMinutes: intp(c.cadence),
		}
		if q := ReminderQuantity(p); q != c.want {
			t.Fatalf("goal=%d cadence=%d: want %d, got %d", c.goal, c.cadence, c.want, q)
		}
		if q := ReminderQuantity(p); q < 1 {
			t.Fatalf("quantity must never drop below 1")
		}
	}
}

func TestApplyReminder_AdvancesStateBeforeDispatch(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-02"
	now := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)

	ev, echo := ApplyReminder(p, now)
	if p.Accumulator != 250 {
		t.Fatalf("accumulator: want 250, got %d", p.Accumulator)
	}
	if p.LastReminderAt == nil || !p.LastReminderAt.Equal(now) {
		t.Fatalf("LastReminderAt must be stamped with the tick instant")
	}
	if ev.Amount != 250 || ev.Total != 250 || ev.UserID != 1 {
		t.Fatalf("bad reminder event: %+v", ev)
	}
	if echo != nil {
		t.Fatalf("no log target, want no echo")
	}

	events := p.Events["2024-01-02"]
	if len(events) != 1 || events[0].Kind != EventReminder || events[0].Amount != 250 {
		t.Fatalf("bad event log: %+v", events)
	}
}

func TestApplyReminder_EchoesToLogTarget(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-02"
	p.LogTarget = Destination(99)
	now := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)

	_, echo := ApplyReminder(p, now)
	if echo == nil || echo.Dest != Destination(99) || echo.Kind != EventReminder {
		t.Fatalf("bad echo: %+v", echo)
	}
}

func TestApplyManual_AppendsAndAccumulates(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-02"
	p.Accumulator = 250
	now := time.Date(2024, time.January, 2, 12, 0, 0, 0, time.UTC)

	echo := ApplyManual(p, now, 330)
	if p.Accumulator != 580 {
		t.Fatalf("accumulator: want 580, got %d", p.Accumulator)
	}
	if echo != nil {
		t.Fatalf("no log target, want no echo")
	}
	events := p.Events["2024-01-02"]
	if len(events) != 1 || events[0].Kind != EventManual {
		t.Fatalf("bad event log: %+v", events)
	}
	if p.LastReminderAt != nil {
		t.Fatalf("manual log must not touch the reminder timestamp")
	}
}

func TestAtMostOneFirePerWindow(t *testing.T) {
	p := configuredProfile("UTC")
	p.LastResetDate = "2024-01-02"
	start := time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)

	// Simulate a minute-resolution tick over four hours.
	fires := 0
	for m := 0; m <= 240; m++ {
		now := start.Add(time.Duration(m) * time.Minute)
		d := Evaluate(p, now, time.UTC)
		if d.ReminderDue {
			ApplyReminder(p, now)
			fires++
		}
	}
	// First fire at 08:00, then 09:00, 10:00, 11:00, 12:00.
	if fires != 5 {
		t.Fatalf("60m cadence over 4h: want 5 fires, got %d", fires)
	}

	events := p.Events["2024-01-02"]
	for i := 1; i < len(events); i++ {
		if gap := events[i].At.Sub(events[i-1].At); gap < 60*time.Minute {
			t.Fatalf("fires %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestMonotonicLastResetDate(t *testing.T) {
	p := configuredProfile("UTC")
	dates := []string{"2024-01-01", "2024-01-03", "2024-01-02", "2024-01-03", "2024-01-05"}
	prev := ""
	for _, d := range dates {
		ApplyRollover(p, d)
		if p.LastResetDate < prev {
			t.Fatalf("LastResetDate moved backwards: %s -> %s", prev, p.LastResetDate)
		}
		prev = p.LastResetDate
	}
	if p.LastResetDate != "2024-01-05" {
		t.Fatalf("want 2024-01-05, got %s", p.LastResetDate)
	}
}
