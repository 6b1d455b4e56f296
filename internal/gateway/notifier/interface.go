package notifier

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards every message. Used in tests and when notifications are
// disabled.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
