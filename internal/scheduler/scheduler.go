package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Puettse/Bumpy/internal/domain"
	"github.com/Puettse/Bumpy/internal/store"
)

// Notifier is the minimal delivery capability the scheduler needs.
// telegram.Notifier implements it. Failures are reported, never fatal.
type Notifier interface {
	Deliver(chatID int64, text string) error
}

// Scheduler is the tick driver: every interval it evaluates all profiles,
// applies rollover and reminder mutations, persists each mutated profile as
// one unit, and only then dispatches the resulting notifications.
type Scheduler struct {
	repo       store.Repo
	log        *zap.Logger
	notifier   Notifier
	locks      *store.KeyedMutex
	defaultLoc *time.Location
	interval   time.Duration

	// now is swapped out by tests to drive virtual time.
	now func() time.Time
}

// New creates a Scheduler. The locks instance must be the same one the
// command layer uses, so per-user writes from both sides are serialized.
func New(repo store.Repo, log *zap.Logger, notifier Notifier, locks *store.KeyedMutex, defaultLoc *time.Location, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Scheduler{
		repo:       repo,
		log:        log,
		notifier:   notifier,
		locks:      locks,
		defaultLoc: defaultLoc,
		interval:   interval,
		now:        time.Now,
	}
}

// Run executes ticks until ctx is canceled. Ticks run synchronously on this
// goroutine, so they can never overlap and an in-flight tick always finishes
// (including its persists) before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling cycle across all profiles. A failure for one
// profile is logged and skipped; the rest of the batch still makes progress.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	profiles, err := s.repo.ListAll(ctx)
	if err != nil {
		s.log.Error("list profiles failed", zap.Error(err))
		return
	}

	for i := range profiles {
		if ctx.Err() != nil {
			return
		}
		s.tickProfile(ctx, profiles[i].UserID, now)
	}
}

// tickProfile evaluates and mutates one profile under its per-user lock.
// The ListAll snapshot is only a roster: it was taken before this lock, so a
// command-layer write (a manual log, a settings change) may have landed since.
// The profile is re-read under the lock and only that fresh state is mutated
// and persisted. Order matters: rollover before reminder (so a due reminder
// lands on the freshly reset accumulator), persist before dispatch (so a
// crash between the two loses the notification rather than duplicating it).
func (s *Scheduler) tickProfile(ctx context.Context, userID int64, now time.Time) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error("load profile failed", zap.Error(err), zap.Int64("userID", userID))
		return
	}

	d := domain.Evaluate(p, now, s.defaultLoc)
	if d.TZFellBack && p.Configured() {
		s.log.Warn("timezone did not resolve, using default zone",
			zap.Int64("userID", p.UserID), zap.String("tz", p.TZ))
	}
	if !d.Rollover && !d.ReminderDue {
		return
	}

	var summary *domain.SummaryEvent
	if d.Rollover {
		summary = domain.ApplyRollover(p, d.LocalDate)
	}

	var reminder *domain.ReminderEvent
	var echo *domain.LogEchoEvent
	if d.ReminderDue {
		ev, e := domain.ApplyReminder(p, now)
		reminder, echo = &ev, e
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		// Unpersisted mutations are recomputed from the same stored state
		// on the next tick; nothing is dispatched for this one.
		s.log.Error("persist failed, will retry next tick",
			zap.Error(err), zap.Int64("userID", p.UserID))
		return
	}

	if summary != nil && summary.Dest != domain.DirectToUser {
		if err := s.notifier.Deliver(summary.Dest.Or(p.UserID), SummaryText(*summary)); err != nil {
			s.log.Error("summary delivery failed", zap.Error(err), zap.Int64("userID", p.UserID))
		}
	}
	if reminder != nil {
		s.deliverReminder(*reminder)
	}
	if echo != nil {
		if err := s.notifier.Deliver(echo.Dest.Or(p.UserID), LogEchoText(*echo)); err != nil {
			s.log.Error("log echo delivery failed", zap.Error(err), zap.Int64("userID", p.UserID))
		}
	}
}

// deliverReminder sends a fired reminder to its target. If a channel target
// is unreachable (deleted chat, kicked bot) the reminder falls back to a
// direct message instead of being dropped. No retry beyond that: the fire is
// already persisted, so redelivery later could shadow the next due reminder.
func (s *Scheduler) deliverReminder(ev domain.ReminderEvent) {
	text := ReminderText(ev)

	err := s.notifier.Deliver(ev.Dest.Or(ev.UserID), text)
	if err == nil {
		return
	}
	if ev.Dest != domain.DirectToUser {
		s.log.Warn("reminder target unreachable, falling back to direct message",
			zap.Error(err), zap.Int64("userID", ev.UserID), zap.Int64("target", int64(ev.Dest)))
		if err = s.notifier.Deliver(ev.UserID, text); err == nil {
			return
		}
	}
	s.log.Error("reminder delivery failed", zap.Error(err), zap.Int64("userID", ev.UserID))
}
