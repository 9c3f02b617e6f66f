// Package outbound describes the chat channel the bot writes to.
package outbound

import "context"

// Button is an inline keyboard button carrying a callback key.
type Button struct {
	Text string
	Data string
}

// Message is an outbound text with optional inline keyboard rows.
type Message struct {
	Text    string
	Buttons [][]Button
	// Markdown marks Text as MarkdownV2 with user content already escaped.
	Markdown bool
}

// Handle refers to a sent message so it can be edited later.
type Handle struct {
	ChatID    int64
	MessageID int
}

// Channel sends and edits chat messages. Calls block until the platform
// confirms the operation, so consecutive calls land in order.
type Channel interface {
	Send(ctx context.Context, chatID int64, msg Message) (Handle, error)
	Edit(ctx context.Context, h Handle, text string) error
}
