package utils

// Notifier is the user-facing notification sink. Collection-level operations
// report failures here instead of returning them; the UI layer decides how to
// surface the message.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// LogNotifier routes notifications to the logger. Default sink for headless use.
type LogNotifier struct {
	Logger *Logger
}

func (n *LogNotifier) Info(message string) {
	n.Logger.Info("notify: %s", message)
}

func (n *LogNotifier) Error(message string) {
	n.Logger.Error("notify: %s", message)
}
