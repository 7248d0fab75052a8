package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Puettse/Bumpy/internal/domain"
	"github.com/Puettse/Bumpy/internal/scheduler"
	"github.com/Puettse/Bumpy/internal/store"
)

// newProfile builds the implicit "Unconfigured" profile created on first
// reference. No increment or cadence: the scheduler leaves it dormant until
// the wizard fills those in.
func (r *Router) newProfile(chatID int64) *domain.Profile {
	return &domain.Profile{
		UserID:    chatID,
		Mode:      domain.ModeFixed,
		Unit:      domain.UnitML,
		TZ:        r.defaultTZ,
		CreatedAt: time.Now().UTC(),
	}
}

// withProfile runs fn against the user's profile under the per-user lock and
// persists the result. The profile is created as dormant if absent.
func (r *Router) withProfile(ctx context.Context, chatID int64, fn func(*domain.Profile) error) error {
	r.locks.Lock(chatID)
	defer r.locks.Unlock(chatID)

	p, err := r.repo.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		p = r.newProfile(chatID)
	} else if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return r.repo.Upsert(ctx, p)
}

// ensureProfile makes sure a profile exists and returns a snapshot of it.
func (r *Router) ensureProfile(ctx context.Context, chatID int64) (*domain.Profile, error) {
	var snap *domain.Profile
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		snap = p.Clone()
		return nil
	})
	return snap, err
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	p, err := r.ensureProfile(ctx, chatID)
	if err != nil {
		r.log.Error("ensureProfile failed", zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard(p.Paused)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	p, err := r.ensureProfile(ctx, chatID)
	if err != nil {
		r.log.Error("ensureProfile failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	amount := "—"
	if p.Mode == domain.ModeGoal && p.DailyGoal != nil {
		amount = fmt.Sprintf("goal-based (%d %s/day)", *p.DailyGoal, p.Unit)
	} else if p.Increment != nil {
		amount = fmt.Sprintf("%d %s", *p.Increment, p.Unit)
	}
	cadence := "—"
	if p.CadenceMinutes != nil {
		cadence = (time.Duration(*p.CadenceMinutes) * time.Minute).String()
	}
	state := "💤 Dormant (finish setup in /settings)"
	switch {
	case p.Paused:
		state = "⏸ Paused (/resume to continue)"
	case p.Configured():
		state = "✅ Active"
	}

	body := fmt.Sprintf("%s\n\n"+statusFmt,
		statusTitle,
		amount,
		cadence,
		p.TZ,
		state,
		p.Accumulator, p.Unit,
		targetName(p.ReminderTarget), targetName(p.LogTarget),
	)

	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = mainMenuKeyboard(p.Paused)
	_, _ = r.bot.Send(msg)
}

// handlePause freezes scheduling for the user. Nothing is lost: the
// accumulator, archive and reminder state sit untouched until /resume.
func (r *Router) handlePause(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.Paused = true
		return nil
	})
	if err != nil {
		r.log.Error("pause failed", zap.Error(err))
		r.sendText(chatID, "Could not pause.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "⏸ Reminders paused. /resume when you want me back.")
	msg.ReplyMarkup = mainMenuKeyboard(true)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleResume(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.Paused = false
		return nil
	})
	if err != nil {
		r.log.Error("resume failed", zap.Error(err))
		r.sendText(chatID, "Could not resume.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "▶️ Reminders resumed.")
	msg.ReplyMarkup = mainMenuKeyboard(false)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	if _, err := r.ensureProfile(ctx, chatID); err != nil {
		r.log.Error("ensureProfile failed", zap.Error(err))
		r.sendText(chatID, "Error opening settings.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "What do you want to configure?")
	msg.ReplyMarkup = settingsInlineKeyboard()
	_, _ = r.bot.Send(msg)
}

// --- Amount flow ---

func (r *Router) askAmountPresets(_ context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "How much is one serving? (or Custom to enter your own):")
	msg.ReplyMarkup = amountPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleAmountCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "amount:custom" {
		r.sendText(chatID, "Enter an amount, e.g.: 250, 330ml, 8oz")
		r.setPending(chatID, pendingAmount)
		return
	}
	r.applyAmount(ctx, chatID, strings.TrimPrefix(data, "amount:"))
}

func (r *Router) applyAmount(ctx context.Context, chatID int64, raw string) {
	amount, unit, err := domain.ParseAmount(raw)
	if err != nil {
		r.sendText(chatID, "Invalid amount. Examples: 250, 330ml, 8oz.")
		return
	}
	var saved string
	err = r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		if unit != "" {
			p.Unit = unit
		}
		p.Increment = &amount
		p.Mode = domain.ModeFixed
		saved = fmt.Sprintf("%d %s", amount, p.Unit)
		return nil
	})
	if err != nil {
		r.log.Error("save amount failed", zap.Error(err))
		r.sendText(chatID, "Could not save amount.")
		return
	}
	r.sendText(chatID, "Serving updated: "+saved)
}

// --- Unit flow ---

func (r *Router) askUnitPresets(_ context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Pick your unit:")
	msg.ReplyMarkup = unitPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleUnitCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	unit := domain.Unit(strings.TrimPrefix(data, "unit:"))
	if unit != domain.UnitML && unit != domain.UnitOZ {
		return
	}
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		if p.Unit == unit {
			return nil
		}
		// Re-express the configured quantities so the serving stays the same
		// physical volume.
		if p.Increment != nil {
			v := domain.ConvertAmount(*p.Increment, p.Unit, unit)
			p.Increment = &v
		}
		if p.DailyGoal != nil {
			v := domain.ConvertAmount(*p.DailyGoal, p.Unit, unit)
			p.DailyGoal = &v
		}
		p.Unit = unit
		return nil
	})
	if err != nil {
		r.log.Error("save unit failed", zap.Error(err))
		r.sendText(chatID, "Could not save unit.")
		return
	}
	r.sendText(chatID, "Unit updated: "+string(unit))
}

// --- Cadence flow ---

func (r *Router) askCadencePresets(_ context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "How often should I remind you? (or Custom):")
	msg.ReplyMarkup = cadencePresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleCadenceCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "cadence:custom" {
		r.sendText(chatID, "Enter a cadence, e.g.: 30m, 1h, 1h30m, 90m")
		r.setPending(chatID, pendingCadence)
		return
	}
	r.applyCadence(ctx, chatID, strings.TrimPrefix(data, "cadence:"))
}

func (r *Router) applyCadence(ctx context.Context, chatID int64, raw string) {
	dur, err := domain.ParseCadence(raw)
	if err != nil {
		r.sendText(chatID, "Invalid cadence. Examples: 30m, 1h, 1h30m.")
		return
	}
	mins := int(dur / time.Minute)
	err = r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.CadenceMinutes = &mins
		return nil
	})
	if err != nil {
		r.log.Error("save cadence failed", zap.Error(err))
		r.sendText(chatID, "Could not save cadence.")
		return
	}
	r.sendText(chatID, "Cadence updated: "+dur.String())
}

// --- Timezone flow ---

func (r *Router) askTZPresets(_ context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
	msg.ReplyMarkup = tzPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "tz:custom" {
		r.sendText(chatID, "Enter timezone (e.g., Europe/Berlin):")
		r.setPending(chatID, pendingTZ)
		return
	}
	r.applyTZ(ctx, chatID, strings.TrimPrefix(data, "tz:"))
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, raw string) {
	tz, err := domain.ValidateTZ(raw)
	if err != nil {
		r.sendText(chatID, "Invalid timezone. Example: Europe/Berlin")
		return
	}
	err = r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.TZ = tz
		return nil
	})
	if err != nil {
		r.log.Error("save timezone failed", zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+tz)
}

// --- Goal flow ---

func (r *Router) askGoalPresets(_ context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Set a daily goal (servings are then derived from it), or switch back to fixed servings:")
	msg.ReplyMarkup = goalPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleGoalCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	val := strings.TrimPrefix(data, "goal:")
	switch val {
	case "custom":
		r.sendText(chatID, "Enter your daily goal, e.g.: 2000, 2500ml, 64oz")
		r.setPending(chatID, pendingGoal)
	case "off":
		err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
			p.Mode = domain.ModeFixed
			return nil
		})
		if err != nil {
			r.log.Error("save mode failed", zap.Error(err))
			r.sendText(chatID, "Could not switch modes.")
			return
		}
		r.sendText(chatID, "Back to fixed servings.")
	default:
		r.applyGoal(ctx, chatID, val)
	}
}

func (r *Router) applyGoal(ctx context.Context, chatID int64, raw string) {
	goal, unit, err := domain.ParseAmount(raw)
	if err != nil {
		r.sendText(chatID, "Invalid goal. Examples: 2000, 2500ml, 64oz.")
		return
	}
	var saved string
	err = r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		if unit != "" {
			goal = domain.ConvertAmount(goal, unit, p.Unit)
		}
		p.DailyGoal = &goal
		p.Mode = domain.ModeGoal
		saved = fmt.Sprintf("%d %s/day", goal, p.Unit)
		return nil
	})
	if err != nil {
		r.log.Error("save goal failed", zap.Error(err))
		r.sendText(chatID, "Could not save goal.")
		return
	}
	r.sendText(chatID, "Daily goal updated: "+saved)
}

// --- Mention toggle ---

func (r *Router) handleMentionToggle(ctx context.Context, chatID int64, cbID string) {
	var mention bool
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.SelfMention = !p.SelfMention
		mention = p.SelfMention
		return nil
	})
	if err != nil {
		_ = r.answerCallback(cbID, "Could not save.")
		r.log.Error("toggle mention failed", zap.Error(err))
		return
	}
	if mention {
		_ = r.answerCallback(cbID, "Reminders will @-mention you.")
	} else {
		_ = r.answerCallback(cbID, "Mentions off.")
	}
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingAmount:
		r.clearPending(chatID)
		r.applyAmount(ctx, chatID, text)
	case pendingCadence:
		r.clearPending(chatID)
		r.applyCadence(ctx, chatID, text)
	case pendingTZ:
		r.clearPending(chatID)
		r.applyTZ(ctx, chatID, text)
	case pendingGoal:
		r.clearPending(chatID)
		r.applyGoal(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}

// --- Manual logging ---

// handleLog records a user-initiated intake. The day is rolled first when the
// local date already moved past LastResetDate, so the accumulator only ever
// reflects the current date; the tick driver uses the exact same mutators.
func (r *Router) handleLog(ctx context.Context, chatID int64, args string) {
	amount, unit, err := domain.ParseAmount(args)
	if err != nil {
		r.sendText(chatID, "Usage: /log <amount>, e.g. /log 250 or /log 8oz")
		return
	}

	var (
		summary *domain.SummaryEvent
		echo    *domain.LogEchoEvent
		snap    *domain.Profile
	)
	now := time.Now().UTC()
	err = r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		if unit != "" {
			amount = domain.ConvertAmount(amount, unit, p.Unit)
		}
		loc, _ := domain.ResolveLocation(p.TZ, r.defaultLoc)
		summary = domain.ApplyRollover(p, domain.DateOf(now.In(loc)))
		echo = domain.ApplyManual(p, now, amount)
		snap = p.Clone()
		return nil
	})
	if err != nil {
		r.log.Error("manual log failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save your intake.")
		return
	}

	r.sendText(chatID, fmt.Sprintf("Logged +%d %s — %d %s today.", amount, snap.Unit, snap.Accumulator, snap.Unit))

	// Secondary notifications go out only after the persist above.
	if summary != nil && summary.Dest != domain.DirectToUser {
		if err := r.notifier.Deliver(summary.Dest.Or(chatID), scheduler.SummaryText(*summary)); err != nil {
			r.log.Error("summary delivery failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
	}
	if echo != nil {
		if err := r.notifier.Deliver(echo.Dest.Or(chatID), scheduler.LogEchoText(*echo)); err != nil {
			r.log.Error("log echo delivery failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
	}
	if snap.CoachNotifyOnLog && snap.CoachTarget != domain.DirectToUser {
		text := fmt.Sprintf("👀 Your athlete logged +%d %s (%d %s today).", amount, snap.Unit, snap.Accumulator, snap.Unit)
		if err := r.notifier.Deliver(int64(snap.CoachTarget), text); err != nil {
			r.log.Error("coach notify failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
	}
}

// --- History ---

func (r *Router) handleToday(ctx context.Context, chatID int64) {
	p, err := r.ensureProfile(ctx, chatID)
	if err != nil {
		r.log.Error("ensureProfile failed", zap.Error(err))
		r.sendText(chatID, "Error reading your log.")
		return
	}
	events := p.Events[p.LastResetDate]
	if len(events) == 0 {
		r.sendText(chatID, "Nothing logged today yet. Use /log <amount>.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💧 Today (%s): %d %s\n", p.LastResetDate, p.Accumulator, p.Unit)
	for _, ev := range events {
		when, lerr := domain.LocalizeTime(ev.At, p.TZ)
		if lerr != nil {
			when = ev.At.In(r.defaultLoc).Format("15:04")
		}
		fmt.Fprintf(&b, "• %s — +%d %s (%s)\n", when, ev.Amount, ev.Unit, ev.Kind)
	}
	r.sendText(chatID, b.String())
}

func (r *Router) handleHistory(ctx context.Context, chatID int64) {
	p, err := r.ensureProfile(ctx, chatID)
	if err != nil {
		r.log.Error("ensureProfile failed", zap.Error(err))
		r.sendText(chatID, "Error reading your history.")
		return
	}
	if len(p.Archive) == 0 {
		r.sendText(chatID, "No completed days yet.")
		return
	}

	days := make([]string, 0, len(p.Archive))
	for d := range p.Archive {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > 7 {
		days = days[:7]
	}

	var b strings.Builder
	b.WriteString("📊 Recent days:\n")
	for _, d := range days {
		fmt.Fprintf(&b, "• %s — %d %s\n", d, p.Archive[d], p.Unit)
	}
	r.sendText(chatID, b.String())
}

// --- Targets ---

func (r *Router) handleRemindHere(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.ReminderTarget = domain.Destination(chatID)
		return nil
	})
	if err != nil {
		r.log.Error("save reminder target failed", zap.Error(err))
		r.sendText(chatID, "Could not set the reminder target.")
		return
	}
	r.sendText(chatID, "Reminders will be sent to this chat.")
}

func (r *Router) handleLogHere(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.LogTarget = domain.Destination(chatID)
		return nil
	})
	if err != nil {
		r.log.Error("save log target failed", zap.Error(err))
		r.sendText(chatID, "Could not set the log target.")
		return
	}
	r.sendText(chatID, "Intake logs and daily summaries will be sent to this chat.")
}

func (r *Router) handleCoachHere(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.CoachTarget = domain.Destination(chatID)
		p.CoachNotifyOnLog = true
		return nil
	})
	if err != nil {
		r.log.Error("save coach target failed", zap.Error(err))
		r.sendText(chatID, "Could not set the coach target.")
		return
	}
	r.sendText(chatID, "This chat now gets a ping on every logged intake.")
}

func (r *Router) handleCoachOff(ctx context.Context, chatID int64) {
	err := r.withProfile(ctx, chatID, func(p *domain.Profile) error {
		p.CoachTarget = domain.DirectToUser
		p.CoachNotifyOnLog = false
		return nil
	})
	if err != nil {
		r.log.Error("clear coach target failed", zap.Error(err))
		r.sendText(chatID, "Could not clear the coach target.")
		return
	}
	r.sendText(chatID, "Coach pings disabled.")
}

func targetName(d domain.Destination) string {
	if d == domain.DirectToUser {
		return "direct"
	}
	return fmt.Sprintf("chat %d", int64(d))
}
