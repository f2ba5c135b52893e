//go:build linux

package platform

import (
	"sort"

	"github.com/1broseidon/axwatch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// windowEvent is a notification derived from an X11 state change.
type windowEvent struct {
	n   Notification
	ref Ref
}

func windowRef(pid PID, win xproto.Window) Ref {
	return Ref{PID: pid, ID: ElementID(win)}
}

// clientListEvents derives notifications from a _NET_CLIENT_LIST change.
// before and after map the tracked windows to their pid. A pid that gains its
// first window is launched before its windows are created; a pid that loses
// its last window terminates after its windows are destroyed.
func clientListEvents(before, after map[xproto.Window]PID) []windowEvent {
	pidsBefore := make(map[PID]bool, len(before))
	for _, pid := range before {
		pidsBefore[pid] = true
	}
	pidsAfter := make(map[PID]bool, len(after))
	for _, pid := range after {
		pidsAfter[pid] = true
	}

	var events []windowEvent
	launched := make(map[PID]bool)
	for _, win := range sortedWindows(after) {
		if _, ok := before[win]; ok {
			continue
		}
		pid := after[win]
		if !pidsBefore[pid] && !launched[pid] {
			launched[pid] = true
			events = append(events, windowEvent{NotificationApplicationLaunched, AppRef(pid)})
		}
		events = append(events, windowEvent{NotificationWindowCreated, windowRef(pid, win)})
	}

	var terminated []PID
	seen := make(map[PID]bool)
	for _, win := range sortedWindows(before) {
		if _, ok := after[win]; ok {
			continue
		}
		pid := before[win]
		events = append(events, windowEvent{NotificationUIElementDestroyed, windowRef(pid, win)})
		if !pidsAfter[pid] && !seen[pid] {
			seen[pid] = true
			terminated = append(terminated, pid)
		}
	}
	for _, pid := range terminated {
		events = append(events, windowEvent{NotificationApplicationTerminated, AppRef(pid)})
	}
	return events
}

func sortedWindows(m map[xproto.Window]PID) []xproto.Window {
	wins := make([]xproto.Window, 0, len(m))
	for win := range m {
		wins = append(wins, win)
	}
	sort.Slice(wins, func(i, j int) bool { return wins[i] < wins[j] })
	return wins
}

// geometryEvents derives moved and resized notifications from a
// ConfigureNotify.
func geometryEvents(ref Ref, prev, cur x11.Geometry) []windowEvent {
	var events []windowEvent
	if cur.X != prev.X || cur.Y != prev.Y {
		events = append(events, windowEvent{NotificationWindowMoved, ref})
	}
	if cur.Width != prev.Width || cur.Height != prev.Height {
		events = append(events, windowEvent{NotificationWindowResized, ref})
	}
	return events
}

// activationEvents derives notifications from a _NET_ACTIVE_WINDOW change.
func activationEvents(prev xproto.Window, prevPID PID, active xproto.Window, pid PID) []windowEvent {
	if active == prev {
		return nil
	}
	var events []windowEvent
	if pid != prevPID {
		if prevPID != 0 {
			events = append(events, windowEvent{NotificationApplicationDeactivated, AppRef(prevPID)})
		}
		if pid != 0 {
			events = append(events, windowEvent{NotificationApplicationActivated, AppRef(pid)})
		}
	}
	if pid != 0 && active != 0 {
		ref := windowRef(pid, active)
		events = append(events,
			windowEvent{NotificationFocusedWindowChanged, ref},
			windowEvent{NotificationMainWindowChanged, ref},
		)
	}
	return events
}

// minimizeEvent maps an iconic state transition to its notification.
func minimizeEvent(ref Ref, wasHidden, hidden bool) (windowEvent, bool) {
	if wasHidden == hidden {
		return windowEvent{}, false
	}
	if hidden {
		return windowEvent{NotificationWindowMiniaturized, ref}, true
	}
	return windowEvent{NotificationWindowDeminiaturized, ref}, true
}

// appHiddenEvent reports AXApplicationHidden when the last visible window of
// pid is iconified and AXApplicationShown when the first one is restored.
func appHiddenEvent(pid PID, wasHidden, allHidden bool) (windowEvent, bool) {
	if wasHidden == allHidden {
		return windowEvent{}, false
	}
	if allHidden {
		return windowEvent{NotificationApplicationHidden, AppRef(pid)}, true
	}
	return windowEvent{NotificationApplicationShown, AppRef(pid)}, true
}
