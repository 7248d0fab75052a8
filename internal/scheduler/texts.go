package scheduler

import (
	"fmt"

	"github.com/Puettse/Bumpy/internal/domain"
)

// Rendered notification texts. Messages are sent with HTML parse mode; no
// user-controlled text appears here, only amounts and unit names. Exported
// because the command layer renders the same events for manual logs.

// ReminderText renders a fired reminder.
func ReminderText(ev domain.ReminderEvent) string {
	lead := "💧 Time to drink!"
	if ev.SelfMention {
		lead = fmt.Sprintf(`<a href="tg://user?id=%d">💧</a> Time to drink!`, ev.UserID)
	}
	body := fmt.Sprintf("%s +%d %s logged — %d %s today", lead, ev.Amount, ev.Unit, ev.Total, ev.Unit)
	if ev.Goal != nil && *ev.Goal > 0 {
		body += fmt.Sprintf(" of %d goal", *ev.Goal)
	}
	return body
}

// SummaryText renders a closed day's total.
func SummaryText(ev domain.SummaryEvent) string {
	body := fmt.Sprintf("📊 %s closed: %d %s", ev.Date, ev.Total, ev.Unit)
	if ev.Goal != nil && *ev.Goal > 0 {
		if ev.Total >= *ev.Goal {
			body += fmt.Sprintf(" — goal of %d reached 🎉", *ev.Goal)
		} else {
			body += fmt.Sprintf(" of %d goal", *ev.Goal)
		}
	}
	return body
}

// LogEchoText renders an intake echoed to the log target.
func LogEchoText(ev domain.LogEchoEvent) string {
	icon := "📝"
	if ev.Kind == domain.EventReminder {
		icon = "⏰"
	}
	return fmt.Sprintf("%s +%d %s — %d %s today", icon, ev.Amount, ev.Unit, ev.Total, ev.Unit)
}
