package client

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// maxNotificationLen bounds the body shown in a desktop notification
const maxNotificationLen = 100

// DesktopNotifier shows server notices as desktop notifications.
// Notifications are best-effort: failures are logged, never returned.
type DesktopNotifier struct {
	IconPath string
	Disabled bool
	Logger   *zap.Logger

	notify func(title, body string, icon any) error
}

// NewDesktopNotifier returns a notifier backed by the OS notification service
func NewDesktopNotifier(iconPath string, logger *zap.Logger) *DesktopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesktopNotifier{
		IconPath: iconPath,
		Logger:   logger,
		notify: func(title, body string, icon any) error {
			return beeep.Notify(title, body, icon)
		},
	}
}

// Notify shows title and body, truncating long bodies
func (n *DesktopNotifier) Notify(title, body string) {
	if n == nil || n.Disabled || n.notify == nil {
		return
	}
	if r := []rune(body); len(r) > maxNotificationLen {
		body = string(r[:maxNotificationLen-3]) + "..."
	}
	if err := n.notify(title, body, n.IconPath); err != nil {
		n.Logger.Warn("failed to send desktop notification", zap.Error(err))
	}
}
