// Package testutil provides testing utilities for scorebot.
package testutil

// Obviously fake credentials for tests. Real-looking Telegram tokens
// (digits, colon, 35 base64 characters) trip secret scanners.
const (
	// FakeTelegramBotToken has the "<bot id>:<secret>" shape of a Bot API token.
	FakeTelegramBotToken = "123456:test-telegram-bot-token"

	// FakeScoringToken is sent with write requests to the scoring API.
	FakeScoringToken = "test-scoring-token"
)
