package ax

import (
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
)

const (
	// EventNotification is the notify.Center name accessibility events are
	// reposted under.
	EventNotification = "AX_EVENT_NOTIFICATION"
	// EventNotificationData is the user-info key holding a NotificationData.
	EventNotificationData = "AX_EVENT_NOTIFICATION_DATA"
)

// NotificationData pairs an accessibility notification with the element it
// concerns.
type NotificationData struct {
	Notification platform.Notification
	Element      *Element
}

// Handler receives the element an accessibility notification pertains to:
// either the application itself or an element it owns.
type Handler func(element *Element)

// PostHandler returns a Handler that reposts n on center under
// EventNotification.
func PostHandler(center *notify.Center, n platform.Notification) Handler {
	return func(element *Element) {
		center.Post(EventNotification, map[string]any{
			EventNotificationData: NotificationData{Notification: n, Element: element},
		})
	}
}

// DataFrom extracts the NotificationData carried by an EventNotification.
func DataFrom(n notify.Notification) (NotificationData, bool) {
	if n.Name != EventNotification {
		return NotificationData{}, false
	}
	data, ok := n.UserInfo[EventNotificationData].(NotificationData)
	if !ok || data.Element == nil {
		return NotificationData{}, false
	}
	return data, true
}
