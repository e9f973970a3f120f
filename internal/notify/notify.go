// Package notify delivers best-effort run notifications.
package notify

import "context"

// Notifier emits one event per pipeline invocation. Delivery is best-effort:
// implementations log failures and never return them, so a lost notification
// cannot change a run's outcome.
type Notifier interface {
	BackupSucceeded(ctx context.Context, host, database string)
	BackupFailed(ctx context.Context, host, database string, err error)
	RestoreSucceeded(ctx context.Context, host, database string)
	RestoreFailed(ctx context.Context, host, database string, err error)
}

// Nop discards all events.
type Nop struct{}

func (Nop) BackupSucceeded(context.Context, string, string)      {}
func (Nop) BackupFailed(context.Context, string, string, error)  {}
func (Nop) RestoreSucceeded(context.Context, string, string)     {}
func (Nop) RestoreFailed(context.Context, string, string, error) {}
