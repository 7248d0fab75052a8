package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Puettse/Bumpy/internal/config"
	"github.com/Puettse/Bumpy/internal/domain"
	"github.com/Puettse/Bumpy/internal/scheduler"
	"github.com/Puettse/Bumpy/internal/store"
	"github.com/Puettse/Bumpy/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting bumpy",
		zap.Int("tickSec", a.cfg.TickIntervalSec),
		zap.String("http", a.cfg.HTTPAddr),
	)

	// The default zone backs every profile whose timezone doesn't resolve.
	defaultLoc, fell := domain.ResolveLocation(a.cfg.DefaultTZ, time.UTC)
	if fell && a.cfg.DefaultTZ != "" {
		a.log.Warn("DEFAULT_TZ did not resolve, using UTC", zap.String("tz", a.cfg.DefaultTZ))
	}

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	// One keyed mutex shared by the router and the scheduler, so a tick and
	// a command can never interleave writes for the same user.
	locks := store.NewKeyedMutex()
	notifier := telegram.NewNotifier(a.bot)
	a.router = telegram.NewRouter(a.bot, a.log, repo, locks, notifier, a.cfg.DefaultTZ, defaultLoc)

	sched := scheduler.New(repo, a.log, notifier, locks, defaultLoc,
		time.Duration(a.cfg.TickIntervalSec)*time.Second)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			// Let the in-flight tick finish its persists before the store goes away.
			<-schedDone
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
