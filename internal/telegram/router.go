package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Puettse/Bumpy/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingAmount  = "await_amount_text"
	pendingCadence = "await_cadence_text"
	pendingTZ      = "await_tz_text"
	pendingGoal    = "await_goal_text"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
// It is the configuration collaborator: it owns the settings half of the
// profile, while the scheduler owns the scheduling half. Both sides share
// the same keyed mutex, so per-user writes never interleave.
type Router struct {
	bot        *tgbotapi.BotAPI
	log        *zap.Logger
	repo       store.Repo
	locks      *store.KeyedMutex
	notifier   *Notifier
	defaultTZ  string
	defaultLoc *time.Location

	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, locks *store.KeyedMutex, notifier *Notifier, defaultTZ string, defaultLoc *time.Location) *Router {
	return &Router{
		bot:        bot,
		log:        log,
		repo:       repo,
		locks:      locks,
		notifier:   notifier,
		defaultTZ:  defaultTZ,
		defaultLoc: defaultLoc,
		state:      make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/status"):
			r.handleStatus(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/loghere"):
			// Checked before /log: shared prefix.
			r.handleLogHere(ctx, chatID)
		case strings.HasPrefix(text, "/log"):
			r.handleLog(ctx, chatID, strings.TrimSpace(strings.TrimPrefix(text, "/log")))
		case strings.HasPrefix(text, "/today"):
			r.handleToday(ctx, chatID)
		case strings.HasPrefix(text, "/history"):
			r.handleHistory(ctx, chatID)
		case strings.HasPrefix(text, "/pause"):
			r.handlePause(ctx, chatID)
		case strings.HasPrefix(text, "/resume"):
			r.handleResume(ctx, chatID)
		case strings.HasPrefix(text, "/remindhere"):
			r.handleRemindHere(ctx, chatID)
		case strings.HasPrefix(text, "/coachhere"):
			r.handleCoachHere(ctx, chatID)
		case strings.HasPrefix(text, "/coachoff"):
			r.handleCoachOff(ctx, chatID)
		default:
			// Free-form text used in "Custom" flows (amount/cadence/tz/goal)
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case data == "set_amount":
			r.askAmountPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "amount:"):
			r.handleAmountCallback(ctx, chatID, data, cb.ID)

		case data == "set_unit":
			r.askUnitPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "unit:"):
			r.handleUnitCallback(ctx, chatID, data, cb.ID)

		case data == "set_cadence":
			r.askCadencePresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "cadence:"):
			r.handleCadenceCallback(ctx, chatID, data, cb.ID)

		case data == "set_tz":
			r.askTZPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, data, cb.ID)

		case data == "set_goal":
			r.askGoalPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "goal:"):
			r.handleGoalCallback(ctx, chatID, data, cb.ID)

		case data == "toggle_mention":
			r.handleMentionToggle(ctx, chatID, cb.ID)

		default:
			// Unknown callback — ignore silently
		}
		return
	}
}
