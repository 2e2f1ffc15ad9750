package watch

import "log/slog"

// Level is the severity of a user notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient message shown to the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(Notification)

func (f NotifyFunc) Notify(n Notification) { f(n) }

// logNotifier is used when no notifier is configured.
type logNotifier struct{ log *slog.Logger }

func (l logNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		l.log.Warn(n.Message)
		return
	}
	l.log.Info(n.Message)
}

// Confirmer asks the user a yes/no question and blocks until answered.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm accepts every prompt.
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })
