package wa

import "context"

// UserInfo describes the account the session is paired with.
type UserInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Session is the send-side primitive consumed by the scheduler and
// dispatcher. Implementations must be safe for concurrent use; SendText
// calls are independent per invocation and must not serialize globally.
type Session interface {
	IsConnected() bool
	SendText(ctx context.Context, jid, text string) error
}

// Gateway extends Session with the lifecycle operations the HTTP
// surface exposes.
type Gateway interface {
	Session

	// UserInfo returns the paired account, or nil while disconnected.
	UserInfo() *UserInfo

	// QR returns the current pairing code, or "" when none is pending.
	QR() string

	// Logout tears down the session and clears credentials on the
	// session owner's side.
	Logout(ctx context.Context) error
}

// StatusHandler receives connection open/closed signals.
type StatusHandler func(connected bool, reason string)

// MessageHandler receives inbound plain-text messages.
type MessageHandler func(senderJID, body string)
