package authstate

import "context"

// Notifier delivers the user-visible notifications the auth flows emit
// (login success/failure, logout, admin-operation errors). The HTTP layer
// backs it with flash messages; headless callers get the noop default.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
	Info(ctx context.Context, message string)
}

type noopNotifier struct{}

func (noopNotifier) Success(context.Context, string) {}
func (noopNotifier) Error(context.Context, string)   {}
func (noopNotifier) Info(context.Context, string)    {}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LoggerNotifier routes notifications to a Logger. Useful for CLIs and
// tests where no flash transport exists.
type LoggerNotifier struct {
	Logger Logger
}

func (n LoggerNotifier) logger() Logger {
	if n.Logger == nil {
		return defLogger{}
	}
	return n.Logger
}

func (n LoggerNotifier) Success(_ context.Context, message string) {
	n.logger().Info("notify success: %s", message)
}

func (n LoggerNotifier) Error(_ context.Context, message string) {
	n.logger().Warn("notify error: %s", message)
}

func (n LoggerNotifier) Info(_ context.Context, message string) {
	n.logger().Info("notify info: %s", message)
}
