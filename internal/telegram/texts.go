package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// UI texts in English
const (
	startText = "👋 I am Bumpy, your hydration coach.\n\n" +
		"Set a serving size, a reminder cadence and your timezone in /settings — " +
		"I will remind you to drink and keep a daily tally.\n\n" +
		"Log extra glasses any time with /log <amount>, take a break with /pause. " +
		"Use /remindhere or /loghere in a group to route reminders and summaries there."
	statusTitle = "🧾 Your current settings:"
	statusFmt   = "• Serving: %s\n• Cadence: %s\n• TZ: %s\n• State: %s\n• Today: %d %s\n• Reminders: %s\n• Log: %s\n"
)

// mainMenuKeyboard builds the persistent reply keyboard. The last row
// offers whichever of pause/resume applies.
func mainMenuKeyboard(paused bool) tgbotapi.ReplyKeyboardMarkup {
	toggle := "/pause"
	if paused {
		toggle = "/resume"
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/status"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/today"),
			tgbotapi.NewKeyboardButton("/history"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(toggle),
		),
	)
}

// Inline keyboards
func settingsInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💧 Serving", "set_amount"),
			tgbotapi.NewInlineKeyboardButtonData("⚖️ Unit", "set_unit"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏲️ Cadence", "set_cadence"),
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "set_tz"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Daily goal", "set_goal"),
			tgbotapi.NewInlineKeyboardButtonData("📣 @-mention me", "toggle_mention"),
		),
	)
}

func amountPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("150 ml", "amount:150ml"),
			tgbotapi.NewInlineKeyboardButtonData("250 ml", "amount:250ml"),
			tgbotapi.NewInlineKeyboardButtonData("330 ml", "amount:330ml"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("500 ml", "amount:500ml"),
			tgbotapi.NewInlineKeyboardButtonData("8 oz", "amount:8oz"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "amount:custom"),
		),
	)
}

func unitPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Milliliters", "unit:ml"),
			tgbotapi.NewInlineKeyboardButtonData("Fluid ounces", "unit:oz"),
		),
	)
}

func cadencePresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("30m", "cadence:30m"),
			tgbotapi.NewInlineKeyboardButtonData("1h", "cadence:1h"),
			tgbotapi.NewInlineKeyboardButtonData("90m", "cadence:90m"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("2h", "cadence:2h"),
			tgbotapi.NewInlineKeyboardButtonData("3h", "cadence:3h"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "cadence:custom"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Berlin", "tz:Europe/Berlin"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/London", "tz:Europe/London"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("America/New_York", "tz:America/New_York"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}

func goalPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1.5 L", "goal:1500ml"),
			tgbotapi.NewInlineKeyboardButtonData("2 L", "goal:2000ml"),
			tgbotapi.NewInlineKeyboardButtonData("3 L", "goal:3000ml"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "goal:custom"),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Fixed serving", "goal:off"),
		),
	)
}
