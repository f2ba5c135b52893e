package platform

import (
	"fmt"
	"strings"
)

// Notification names an accessibility event kind.
type Notification string

const (
	NotificationFocusedWindowChanged   Notification = "AXFocusedWindowChanged"
	NotificationMainWindowChanged      Notification = "AXMainWindowChanged"
	NotificationWindowCreated          Notification = "AXWindowCreated"
	NotificationApplicationActivated   Notification = "AXApplicationActivated"
	NotificationApplicationDeactivated Notification = "AXApplicationDeactivated"
	NotificationApplicationHidden      Notification = "AXApplicationHidden"
	NotificationApplicationShown       Notification = "AXApplicationShown"
	NotificationWindowMiniaturized     Notification = "AXWindowMiniaturized"
	NotificationWindowDeminiaturized   Notification = "AXWindowDeminiaturized"
	NotificationWindowMoved            Notification = "AXWindowMoved"
	NotificationWindowResized          Notification = "AXWindowResized"
	NotificationTitleChanged           Notification = "AXTitleChanged"
	NotificationUIElementDestroyed     Notification = "AXUIElementDestroyed"
	NotificationApplicationLaunched    Notification = "ApplicationLaunched"
	NotificationApplicationTerminated  Notification = "ApplicationTerminated"
)

// AXNotifications lists the per-application accessibility notifications.
var AXNotifications = []Notification{
	NotificationFocusedWindowChanged,
	NotificationMainWindowChanged,
	NotificationWindowCreated,
	NotificationApplicationActivated,
	NotificationApplicationDeactivated,
	NotificationApplicationHidden,
	NotificationApplicationShown,
	NotificationWindowMiniaturized,
	NotificationWindowDeminiaturized,
	NotificationWindowMoved,
	NotificationWindowResized,
	NotificationTitleChanged,
	NotificationUIElementDestroyed,
}

// IsWorkspace reports whether n is an application lifecycle notification that
// is delivered without a subscription.
func (n Notification) IsWorkspace() bool {
	return n == NotificationApplicationLaunched || n == NotificationApplicationTerminated
}

func isAXNotification(n Notification) bool {
	for _, ax := range AXNotifications {
		if ax == n {
			return true
		}
	}
	return false
}

// ParseNotification accepts either the full AX name ("AXWindowMoved") or the
// short form without prefix ("WindowMoved", "window-moved").
func ParseNotification(s string) (Notification, error) {
	want := normalizeNotification(s)
	for _, n := range AXNotifications {
		if normalizeNotification(string(n)) == want {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown notification %q", s)
}

func normalizeNotification(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return strings.TrimPrefix(s, "ax")
}
