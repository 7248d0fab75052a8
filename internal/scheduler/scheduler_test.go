package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Puettse/Bumpy/internal/domain"
	"github.com/Puettse/Bumpy/internal/store"
)

type sentMsg struct {
	chatID int64
	text   string
}

// fakeNotifier records deliveries and can be told to fail specific chats.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[int64]bool
}

func (f *fakeNotifier) Deliver(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("chat unreachable")
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text})
	return nil
}

func (f *fakeNotifier) sentTo(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.chatID == chatID {
			n++
		}
	}
	return n
}

// failingRepo injects Upsert failures on top of a real repo.
type failingRepo struct {
	store.Repo
	upsertErr error
	onUpsert  func()
}

func (f *failingRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	if f.onUpsert != nil {
		f.onUpsert()
	}
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Repo.Upsert(ctx, p)
}

// listHookRepo runs a callback right after ListAll returns its snapshot,
// standing in for a command-layer write racing the tick.
type listHookRepo struct {
	store.Repo
	afterList func()
}

func (r *listHookRepo) ListAll(ctx context.Context) ([]domain.Profile, error) {
	all, err := r.Repo.ListAll(ctx)
	if r.afterList != nil {
		r.afterList()
		r.afterList = nil
	}
	return all, err
}

func intp(v int) *int { return &v }

func newTestScheduler(repo store.Repo, n Notifier) *Scheduler {
	return New(repo, zap.NewNop(), n, store.NewKeyedMutex(), time.UTC, time.Minute)
}

func seedProfile(t *testing.T, repo store.Repo, p *domain.Profile) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), p))
}

func configuredProfile(userID int64) *domain.Profile {
	return &domain.Profile{
		UserID:         userID,
		Mode:           domain.ModeFixed,
		Unit:           domain.UnitML,
		Increment:      intp(250),
		CadenceMinutes: intp(60),
		TZ:             "UTC",
		CreatedAt:      time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTick_FiresReminderAtMostOncePerWindow(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	seedProfile(t, repo, configuredProfile(1))

	t0 := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	s.Tick(context.Background())

	require.Equal(t, 1, notifier.sentTo(1), "first tick fires immediately")

	p, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 250, p.Accumulator)
	require.NotNil(t, p.LastReminderAt)
	require.True(t, p.LastReminderAt.Equal(t0))
	require.Equal(t, "2024-01-02", p.LastResetDate)
	require.Len(t, p.Events["2024-01-02"], 1)

	// 30 minutes later: inside the 60m window, nothing fires.
	s.now = func() time.Time { return t0.Add(30 * time.Minute) }
	s.Tick(context.Background())
	require.Equal(t, 1, notifier.sentTo(1))

	// 60 minutes later: next window, fires again.
	s.now = func() time.Time { return t0.Add(60 * time.Minute) }
	s.Tick(context.Background())
	require.Equal(t, 2, notifier.sentTo(1))
}

func TestTick_RolloverArchivesAndSummarizes(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	p := configuredProfile(1)
	p.LastResetDate = "2024-01-01"
	p.Accumulator = 500
	p.LogTarget = domain.Destination(999)
	recent := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	p.LastReminderAt = &recent // not due, isolates the rollover
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 0, 10, 0, 0, time.UTC) }
	s.Tick(context.Background())

	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 500, got.Archive["2024-01-01"])
	require.Equal(t, 0, got.Accumulator)
	require.Equal(t, "2024-01-02", got.LastResetDate)
	require.Nil(t, got.LastReminderAt)

	require.Equal(t, 1, notifier.sentTo(999), "summary goes to the log target")
	require.Equal(t, 0, notifier.sentTo(1))
}

func TestTick_RolloverWithoutLogTargetDropsSummary(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	p := configuredProfile(1)
	p.LastResetDate = "2024-01-01"
	p.Accumulator = 500
	recent := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	p.LastReminderAt = &recent
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 0, 10, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Empty(t, notifier.sent, "no log target: summary silently dropped")
	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 500, got.Archive["2024-01-01"], "archive still written")
}

func TestTick_RolloverThenReminderSameTick(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	p := configuredProfile(1)
	p.LastResetDate = "2024-01-01"
	p.Accumulator = 500
	old := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)
	p.LastReminderAt = &old
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	// Rollover first, then the reminder lands on the fresh accumulator.
	require.Equal(t, 500, got.Archive["2024-01-01"])
	require.Equal(t, 250, got.Accumulator)
	require.Len(t, got.Events["2024-01-02"], 1)
	require.Empty(t, got.Events["2024-01-01"])
}

func TestTick_DormantProfileNeverTouched(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	p := &domain.Profile{UserID: 5, Mode: domain.ModeFixed, Unit: domain.UnitML, TZ: "UTC"}
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Empty(t, notifier.sent)
	got, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "", got.LastResetDate)
	require.Equal(t, 0, got.Accumulator)
	require.Nil(t, got.LastReminderAt)
}

func TestTick_ManualLogDuringTickIsNotLost(t *testing.T) {
	mem := store.NewMemory()
	notifier := &fakeNotifier{}

	t0 := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	p := configuredProfile(1)
	p.LastResetDate = "2024-01-02"
	seedProfile(t, mem, p)

	// A /log 330 lands after the tick takes its snapshot but before it
	// reaches this user. The tick must work on the stored state, not the
	// snapshot, or the intake is silently erased by its whole-profile persist.
	hooked := &listHookRepo{Repo: mem, afterList: func() {
		cur, err := mem.Get(context.Background(), 1)
		require.NoError(t, err)
		domain.ApplyManual(cur, t0, 330)
		require.NoError(t, mem.Upsert(context.Background(), cur))
	}}

	s := newTestScheduler(hooked, notifier)
	s.now = func() time.Time { return t0 }
	s.Tick(context.Background())

	got, err := mem.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 580, got.Accumulator, "manual intake and reminder both counted")
	require.Len(t, got.Events["2024-01-02"], 2)
}

func TestTick_PausedProfileNeverTouched(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{}
	s := newTestScheduler(repo, notifier)

	p := configuredProfile(1)
	p.Paused = true
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Empty(t, notifier.sent)
	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "", got.LastResetDate)
	require.Nil(t, got.LastReminderAt)

	// Resume: the next tick picks scheduling back up.
	got.Paused = false
	seedProfile(t, repo, got)
	s.Tick(context.Background())
	require.Equal(t, 1, notifier.sentTo(1))
}

func TestTick_PersistFailureSkipsDispatchAndRetries(t *testing.T) {
	mem := store.NewMemory()
	notifier := &fakeNotifier{}

	seedProfile(t, mem, configuredProfile(1))
	failing := &failingRepo{Repo: mem, upsertErr: errors.New("disk full")}
	s := newTestScheduler(failing, notifier)

	t0 := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	s.Tick(context.Background())

	require.Empty(t, notifier.sent, "nothing dispatched when the persist failed")
	got, err := mem.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, got.LastReminderAt, "stored state unchanged")

	// Store recovers: the same mutation is recomputed and now goes through.
	failing.upsertErr = nil
	s.Tick(context.Background())
	require.Equal(t, 1, notifier.sentTo(1))
}

func TestTick_PersistHappensBeforeDispatch(t *testing.T) {
	mem := store.NewMemory()
	var order []string
	var mu sync.Mutex

	notifier := &orderedNotifier{record: func() {
		mu.Lock()
		order = append(order, "deliver")
		mu.Unlock()
	}}
	wrapped := &failingRepo{Repo: mem, onUpsert: func() {
		mu.Lock()
		order = append(order, "persist")
		mu.Unlock()
	}}

	seedProfile(t, mem, configuredProfile(1))
	s := newTestScheduler(wrapped, notifier)
	s.now = func() time.Time { return time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Equal(t, []string{"persist", "deliver"}, order)
}

type orderedNotifier struct{ record func() }

func (o *orderedNotifier) Deliver(int64, string) error {
	o.record()
	return nil
}

func TestTick_ChannelFailureFallsBackToDirect(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{fail: map[int64]bool{777: true}}
	s := newTestScheduler(repo, notifier)

	p := configuredProfile(1)
	p.ReminderTarget = domain.Destination(777)
	seedProfile(t, repo, p)

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Equal(t, 0, notifier.sentTo(777))
	require.Equal(t, 1, notifier.sentTo(1), "reminder falls back to a direct message")

	got, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got.LastReminderAt, "fire is persisted regardless of delivery")
}

func TestTick_OneBadProfileDoesNotBlockOthers(t *testing.T) {
	repo := store.NewMemory()
	notifier := &fakeNotifier{fail: map[int64]bool{1: true}}
	s := newTestScheduler(repo, notifier)

	seedProfile(t, repo, configuredProfile(1))
	seedProfile(t, repo, configuredProfile(2))

	s.now = func() time.Time { return time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC) }
	s.Tick(context.Background())

	require.Equal(t, 1, notifier.sentTo(2), "healthy profile still progresses")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := store.NewMemory()
	s := newTestScheduler(repo, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}
