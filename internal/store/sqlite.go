package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Puettse/Bumpy/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// Profiles carry a sliding window of their history, not all of it: reads
// attach the most recent archive days and event days per user, and writes
// touch only the rows inside that window. Older rows stay in place untouched,
// so the per-tick persist cost stays flat as history accumulates.
const (
	recentArchiveDays = 60
	recentEventDays   = 7
)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Upsert persists the profile in one transaction: settings and scheduling
// state in the profiles row, archive totals upserted per day, event rows
// re-written per day present in the in-memory map. Totals are never removed
// and events are append-only, so rows for days outside the loaded window are
// left alone. One transaction per user gives the per-user atomicity the tick
// driver relies on (a rollover and its archive entry can never be split by a
// crash).
func (r *SQLiteRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	if p == nil {
		return errors.New("nil profile")
	}

	now := time.Now().UTC().Unix()
	created := p.CreatedAt.UTC().Unix()
	if p.CreatedAt.IsZero() {
		created = now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (
			user_id, created_at, mode, increment, daily_goal, unit,
			cadence_minutes, tz, reminder_target, log_target, coach_target,
			self_mention, coach_notify_on_log, paused,
			accumulator, last_reset_date, last_reminder_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			mode                = excluded.mode,
			increment           = excluded.increment,
			daily_goal          = excluded.daily_goal,
			unit                = excluded.unit,
			cadence_minutes     = excluded.cadence_minutes,
			tz                  = excluded.tz,
			reminder_target     = excluded.reminder_target,
			log_target          = excluded.log_target,
			coach_target        = excluded.coach_target,
			self_mention        = excluded.self_mention,
			coach_notify_on_log = excluded.coach_notify_on_log,
			paused              = excluded.paused,
			accumulator         = excluded.accumulator,
			last_reset_date     = excluded.last_reset_date,
			last_reminder_at    = excluded.last_reminder_at`,
		p.UserID, created, string(p.Mode), toNullInt(p.Increment), toNullInt(p.DailyGoal),
		string(p.Unit), toNullInt(p.CadenceMinutes), p.TZ,
		int64(p.ReminderTarget), int64(p.LogTarget), int64(p.CoachTarget),
		boolToInt(p.SelfMention), boolToInt(p.CoachNotifyOnLog), boolToInt(p.Paused),
		p.Accumulator, p.LastResetDate, toNullInt64(p.LastReminderAt),
	)
	if err != nil {
		return err
	}

	days := make([]string, 0, len(p.Archive))
	for d := range p.Archive {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_totals (user_id, day, total) VALUES (?, ?, ?)
			ON CONFLICT(user_id, day) DO UPDATE SET total = excluded.total`,
			p.UserID, d, p.Archive[d],
		); err != nil {
			return err
		}
	}

	days = days[:0]
	for d := range p.Events {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM intake_events WHERE user_id = ? AND day = ?`, p.UserID, d,
		); err != nil {
			return err
		}
		for _, ev := range p.Events[d] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO intake_events (user_id, day, at, amount, unit, kind, dest)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.UserID, d, ev.At.UTC().Unix(), ev.Amount, string(ev.Unit), string(ev.Kind), int64(ev.Dest),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Get returns a user's profile or ErrNotFound.
func (r *SQLiteRepo) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, mode, increment, daily_goal, unit,
		       cadence_minutes, tz, reminder_target, log_target, coach_target,
		       self_mention, coach_notify_on_log, paused,
		       accumulator, last_reset_date, last_reminder_at
		FROM profiles
		WHERE user_id = ?`,
		userID,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.loadArchive(ctx, p); err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListAll returns every stored profile ordered by user id, each with its
// recent archive and event windows attached.
func (r *SQLiteRepo) ListAll(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, created_at, mode, increment, daily_goal, unit,
		       cadence_minutes, tz, reminder_target, log_target, coach_target,
		       self_mention, coach_notify_on_log, paused,
		       accumulator, last_reset_date, last_reminder_at
		FROM profiles
		ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUser := make(map[int64]*domain.Profile)
	var order []int64
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		byUser[p.UserID] = p
		order = append(order, p.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachArchives(ctx, byUser); err != nil {
		return nil, err
	}
	if err := r.attachEvents(ctx, byUser); err != nil {
		return nil, err
	}

	res := make([]domain.Profile, 0, len(order))
	for _, id := range order {
		res = append(res, *byUser[id])
	}
	return res, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		userID        int64
		createdAt     int64
		mode          string
		increment     sql.NullInt64
		dailyGoal     sql.NullInt64
		unit          string
		cadence       sql.NullInt64
		tz            string
		reminderTgt   int64
		logTgt        int64
		coachTgt      int64
		selfMention   int
		coachNotify   int
		paused        int
		accumulator   int
		lastResetDate string
		lastReminder  sql.NullInt64
	)
	if err := row.Scan(
		&userID, &createdAt, &mode, &increment, &dailyGoal, &unit,
		&cadence, &tz, &reminderTgt, &logTgt, &coachTgt,
		&selfMention, &coachNotify, &paused,
		&accumulator, &lastResetDate, &lastReminder,
	); err != nil {
		return nil, err
	}

	return &domain.Profile{
		UserID:           userID,
		Mode:             domain.Mode(mode),
		Increment:        fromNullInt(increment),
		DailyGoal:        fromNullInt(dailyGoal),
		Unit:             domain.Unit(unit),
		CadenceMinutes:   fromNullInt(cadence),
		TZ:               tz,
		ReminderTarget:   domain.Destination(reminderTgt),
		LogTarget:        domain.Destination(logTgt),
		CoachTarget:      domain.Destination(coachTgt),
		SelfMention:      selfMention != 0,
		CoachNotifyOnLog: coachNotify != 0,
		Paused:           paused != 0,
		Accumulator:      accumulator,
		LastResetDate:    lastResetDate,
		LastReminderAt:   fromNullInt64(lastReminder),
		CreatedAt:        time.Unix(createdAt, 0).UTC(),
	}, nil
}

func (r *SQLiteRepo) loadArchive(ctx context.Context, p *domain.Profile) error {
	return r.attachArchivesWhere(ctx, map[int64]*domain.Profile{p.UserID: p}, `WHERE user_id = ?`, p.UserID)
}

func (r *SQLiteRepo) loadEvents(ctx context.Context, p *domain.Profile) error {
	return r.attachEventsWhere(ctx, map[int64]*domain.Profile{p.UserID: p}, `WHERE user_id = ?`, p.UserID)
}

func (r *SQLiteRepo) attachArchives(ctx context.Context, byUser map[int64]*domain.Profile) error {
	return r.attachArchivesWhere(ctx, byUser, ``)
}

func (r *SQLiteRepo) attachEvents(ctx context.Context, byUser map[int64]*domain.Profile) error {
	return r.attachEventsWhere(ctx, byUser, ``)
}

func (r *SQLiteRepo) attachArchivesWhere(ctx context.Context, byUser map[int64]*domain.Profile, where string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, day, total FROM (
			SELECT user_id, day, total,
			       ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY day DESC) AS rn
			FROM daily_totals `+where+`
		) WHERE rn <= `+fmt.Sprint(recentArchiveDays)+`
		ORDER BY day ASC`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			day    string
			total  int
		)
		if err := rows.Scan(&userID, &day, &total); err != nil {
			return err
		}
		p, ok := byUser[userID]
		if !ok {
			continue
		}
		if p.Archive == nil {
			p.Archive = make(map[string]int)
		}
		p.Archive[day] = total
	}
	return rows.Err()
}

func (r *SQLiteRepo) attachEventsWhere(ctx context.Context, byUser map[int64]*domain.Profile, where string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, day, at, amount, unit, kind, dest FROM (
			SELECT id, user_id, day, at, amount, unit, kind, dest,
			       DENSE_RANK() OVER (PARTITION BY user_id ORDER BY day DESC) AS rk
			FROM intake_events `+where+`
		) WHERE rk <= `+fmt.Sprint(recentEventDays)+`
		ORDER BY day ASC, at ASC, id ASC`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			day    string
			at     int64
			amount int
			unit   string
			kind   string
			dest   int64
		)
		if err := rows.Scan(&userID, &day, &at, &amount, &unit, &kind, &dest); err != nil {
			return err
		}
		p, ok := byUser[userID]
		if !ok {
			continue
		}
		if p.Events == nil {
			p.Events = make(map[string][]domain.IntakeEvent)
		}
		p.Events[day] = append(p.Events[day], domain.IntakeEvent{
			At:     time.Unix(at, 0).UTC(),
			Amount: amount,
			Unit:   domain.Unit(unit),
			Kind:   domain.EventKind(kind),
			Dest:   domain.Destination(dest),
		})
	}
	return rows.Err()
}
