//go:build darwin && cgo

package platform

/*
#cgo CFLAGS: -x objective-c -mmacosx-version-min=10.13
#cgo LDFLAGS: -framework Cocoa -framework ApplicationServices -framework CoreFoundation

#import <Cocoa/Cocoa.h>
#import <ApplicationServices/ApplicationServices.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

// Private but stable since 10.6; maps a window element to its CGWindowID.
extern AXError _AXUIElementGetWindow(AXUIElementRef element, CGWindowID *identifier);

extern void goAXObserverCallback(int pid, uint32_t wid, char *notification);

typedef struct {
	int pid;
	char *name;
	char *bundleID;
	int hidden;
	int active;
} AXWAppInfo;

typedef struct {
	uint32_t id;
	char *title;
	char *role;
	char *subrole;
	double x, y, w, h;
	int minimized;
	int main;
} AXWWindowInfo;

typedef struct {
	uint32_t id;
	char *name;
	double bx, by, bw, bh;
	double ux, uy, uw, uh;
} AXWDisplay;

static CFRunLoopRef axw_runloop = NULL;
static dispatch_semaphore_t axw_ready = NULL;
static NSMutableDictionary *axw_observers = nil;

static char *axw_strdup(NSString *s) {
	if (s == nil) {
		return strdup("");
	}
	const char *utf8 = [s UTF8String];
	return strdup(utf8 ? utf8 : "");
}

static NSString *axw_copy_string(AXUIElementRef element, CFStringRef attribute) {
	CFTypeRef value = NULL;
	if (AXUIElementCopyAttributeValue(element, attribute, &value) != kAXErrorSuccess || value == NULL) {
		return nil;
	}
	if (CFGetTypeID(value) != CFStringGetTypeID()) {
		CFRelease(value);
		return nil;
	}
	return [(NSString *)value autorelease];
}

static int axw_copy_bool(AXUIElementRef element, CFStringRef attribute) {
	CFTypeRef value = NULL;
	if (AXUIElementCopyAttributeValue(element, attribute, &value) != kAXErrorSuccess || value == NULL) {
		return 0;
	}
	int result = 0;
	if (CFGetTypeID(value) == CFBooleanGetTypeID()) {
		result = CFBooleanGetValue((CFBooleanRef)value) ? 1 : 0;
	}
	CFRelease(value);
	return result;
}

static int axw_copy_frame(AXUIElementRef element, CGPoint *origin, CGSize *size) {
	CFTypeRef pos = NULL, sz = NULL;
	int ok = 0;
	if (AXUIElementCopyAttributeValue(element, kAXPositionAttribute, &pos) == kAXErrorSuccess &&
		AXUIElementCopyAttributeValue(element, kAXSizeAttribute, &sz) == kAXErrorSuccess) {
		ok = AXValueGetValue((AXValueRef)pos, kAXValueCGPointType, origin) &&
			AXValueGetValue((AXValueRef)sz, kAXValueCGSizeType, size);
	}
	if (pos) CFRelease(pos);
	if (sz) CFRelease(sz);
	return ok;
}

static uint32_t axw_window_id(AXUIElementRef element) {
	CGWindowID wid = 0;
	if (_AXUIElementGetWindow(element, &wid) != kAXErrorSuccess) {
		return 0;
	}
	return (uint32_t)wid;
}

static CFArrayRef axw_copy_windows(int pid) {
	AXUIElementRef app = AXUIElementCreateApplication((pid_t)pid);
	CFTypeRef windows = NULL;
	AXError err = AXUIElementCopyAttributeValue(app, kAXWindowsAttribute, &windows);
	CFRelease(app);
	if (err != kAXErrorSuccess || windows == NULL) {
		return NULL;
	}
	return (CFArrayRef)windows;
}

// axw_copy_window returns a retained window element, or NULL.
static AXUIElementRef axw_copy_window(int pid, uint32_t wid) {
	CFArrayRef windows = axw_copy_windows(pid);
	if (windows == NULL) {
		return NULL;
	}
	AXUIElementRef found = NULL;
	for (CFIndex i = 0; i < CFArrayGetCount(windows); i++) {
		AXUIElementRef w = (AXUIElementRef)CFArrayGetValueAtIndex(windows, i);
		if (axw_window_id(w) == wid) {
			found = (AXUIElementRef)CFRetain(w);
			break;
		}
	}
	CFRelease(windows);
	return found;
}

static AXUIElementRef axw_copy_element(int pid, uint32_t wid) {
	if (wid == 0) {
		return AXUIElementCreateApplication((pid_t)pid);
	}
	return axw_copy_window(pid, wid);
}

static uint32_t axw_copy_window_attr_id(int pid, CFStringRef attribute) {
	AXUIElementRef app = AXUIElementCreateApplication((pid_t)pid);
	CFTypeRef value = NULL;
	uint32_t wid = 0;
	if (AXUIElementCopyAttributeValue(app, attribute, &value) == kAXErrorSuccess && value != NULL) {
		wid = axw_window_id((AXUIElementRef)value);
		CFRelease(value);
	}
	CFRelease(app);
	return wid;
}

static void axw_fill_window(AXUIElementRef w, uint32_t mainID, AXWWindowInfo *out) {
	@autoreleasepool {
		CGPoint origin = CGPointZero;
		CGSize size = CGSizeZero;
		axw_copy_frame(w, &origin, &size);
		out->id = axw_window_id(w);
		out->title = axw_strdup(axw_copy_string(w, kAXTitleAttribute));
		out->role = axw_strdup(axw_copy_string(w, kAXRoleAttribute));
		out->subrole = axw_strdup(axw_copy_string(w, kAXSubroleAttribute));
		out->x = origin.x;
		out->y = origin.y;
		out->w = size.width;
		out->h = size.height;
		out->minimized = axw_copy_bool(w, kAXMinimizedAttribute);
		out->main = out->id != 0 && out->id == mainID;
	}
}

int axw_trusted(int prompt) {
	NSDictionary *opts = @{(id)kAXTrustedCheckOptionPrompt: prompt ? @YES : @NO};
	return AXIsProcessTrustedWithOptions((CFDictionaryRef)opts) ? 1 : 0;
}

int axw_running_apps(AXWAppInfo **out) {
	@autoreleasepool {
		NSArray<NSRunningApplication *> *apps = [[NSWorkspace sharedWorkspace] runningApplications];
		int n = 0;
		AXWAppInfo *infos = calloc([apps count] ? [apps count] : 1, sizeof(AXWAppInfo));
		for (NSRunningApplication *app in apps) {
			if ([app activationPolicy] != NSApplicationActivationPolicyRegular) {
				continue;
			}
			infos[n].pid = (int)[app processIdentifier];
			infos[n].name = axw_strdup([app localizedName]);
			infos[n].bundleID = axw_strdup([app bundleIdentifier]);
			infos[n].hidden = [app isHidden] ? 1 : 0;
			infos[n].active = [app isActive] ? 1 : 0;
			n++;
		}
		*out = infos;
		return n;
	}
}

void axw_free_apps(AXWAppInfo *apps, int n) {
	for (int i = 0; i < n; i++) {
		free(apps[i].name);
		free(apps[i].bundleID);
	}
	free(apps);
}

int axw_frontmost_pid(void) {
	@autoreleasepool {
		NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
		return app ? (int)[app processIdentifier] : 0;
	}
}

int axw_set_hidden(int pid, int hidden) {
	@autoreleasepool {
		NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
		if (app == nil) {
			return -1;
		}
		BOOL ok = hidden ? [app hide] : [app unhide];
		return ok ? 0 : -2;
	}
}

int axw_windows(int pid, AXWWindowInfo **out) {
	CFArrayRef windows = axw_copy_windows(pid);
	if (windows == NULL) {
		*out = NULL;
		return -1;
	}
	uint32_t mainID = axw_copy_window_attr_id(pid, kAXMainWindowAttribute);
	CFIndex count = CFArrayGetCount(windows);
	AXWWindowInfo *infos = calloc(count ? count : 1, sizeof(AXWWindowInfo));
	for (CFIndex i = 0; i < count; i++) {
		axw_fill_window((AXUIElementRef)CFArrayGetValueAtIndex(windows, i), mainID, &infos[i]);
	}
	CFRelease(windows);
	*out = infos;
	return (int)count;
}

int axw_window(int pid, uint32_t wid, AXWWindowInfo *out) {
	AXUIElementRef w = axw_copy_window(pid, wid);
	if (w == NULL) {
		return -1;
	}
	axw_fill_window(w, axw_copy_window_attr_id(pid, kAXMainWindowAttribute), out);
	CFRelease(w);
	return 0;
}

void axw_free_window(AXWWindowInfo *w) {
	free(w->title);
	free(w->role);
	free(w->subrole);
}

void axw_free_windows(AXWWindowInfo *windows, int n) {
	for (int i = 0; i < n; i++) {
		axw_free_window(&windows[i]);
	}
	free(windows);
}

uint32_t axw_focused_window(int pid) {
	return axw_copy_window_attr_id(pid, kAXFocusedWindowAttribute);
}

int axw_set_frame(int pid, uint32_t wid, double x, double y, double w, double h) {
	AXUIElementRef win = axw_copy_window(pid, wid);
	if (win == NULL) {
		return kAXErrorInvalidUIElement;
	}
	CGPoint origin = CGPointMake(x, y);
	CGSize size = CGSizeMake(w, h);
	AXValueRef pos = AXValueCreate(kAXValueCGPointType, &origin);
	AXValueRef sz = AXValueCreate(kAXValueCGSizeType, &size);
	// Size first so the move isn't clamped by the old size at screen edges,
	// then size again once the window sits at its new origin.
	AXUIElementSetAttributeValue(win, kAXSizeAttribute, sz);
	AXError err = AXUIElementSetAttributeValue(win, kAXPositionAttribute, pos);
	if (err == kAXErrorSuccess) {
		err = AXUIElementSetAttributeValue(win, kAXSizeAttribute, sz);
	}
	CFRelease(pos);
	CFRelease(sz);
	CFRelease(win);
	return (int)err;
}

int axw_set_minimized(int pid, uint32_t wid, int minimized) {
	AXUIElementRef win = axw_copy_window(pid, wid);
	if (win == NULL) {
		return kAXErrorInvalidUIElement;
	}
	AXError err = AXUIElementSetAttributeValue(win, kAXMinimizedAttribute, minimized ? kCFBooleanTrue : kCFBooleanFalse);
	CFRelease(win);
	return (int)err;
}

int axw_focus(int pid, uint32_t wid) {
	AXUIElementRef win = axw_copy_window(pid, wid);
	if (win == NULL) {
		return kAXErrorInvalidUIElement;
	}
	AXError err = AXUIElementPerformAction(win, kAXRaiseAction);
	if (err == kAXErrorSuccess) {
		AXUIElementRef app = AXUIElementCreateApplication((pid_t)pid);
		AXUIElementSetAttributeValue(app, kAXFrontmostAttribute, kCFBooleanTrue);
		AXUIElementSetAttributeValue(app, kAXFocusedWindowAttribute, win);
		CFRelease(app);
	}
	CFRelease(win);
	return (int)err;
}

int axw_close(int pid, uint32_t wid) {
	AXUIElementRef win = axw_copy_window(pid, wid);
	if (win == NULL) {
		return kAXErrorInvalidUIElement;
	}
	CFTypeRef button = NULL;
	AXError err = AXUIElementCopyAttributeValue(win, kAXCloseButtonAttribute, &button);
	if (err == kAXErrorSuccess && button != NULL) {
		err = AXUIElementPerformAction((AXUIElementRef)button, kAXPressAction);
		CFRelease(button);
	}
	CFRelease(win);
	return (int)err;
}

int axw_displays(AXWDisplay **out) {
	@autoreleasepool {
		NSArray<NSScreen *> *screens = [NSScreen screens];
		int n = (int)[screens count];
		AXWDisplay *displays = calloc(n ? n : 1, sizeof(AXWDisplay));
		// Cocoa uses a bottom-left origin anchored at the primary screen;
		// accessibility coordinates are top-left.
		CGFloat primaryHeight = n > 0 ? NSMaxY([screens[0] frame]) : 0;
		for (int i = 0; i < n; i++) {
			NSScreen *screen = screens[i];
			NSRect frame = [screen frame];
			NSRect visible = [screen visibleFrame];
			NSNumber *number = [screen deviceDescription][@"NSScreenNumber"];
			displays[i].id = [number unsignedIntValue];
			if (@available(macOS 10.15, *)) {
				displays[i].name = axw_strdup([screen localizedName]);
			} else {
				displays[i].name = axw_strdup([NSString stringWithFormat:@"Display%d", i]);
			}
			displays[i].bx = frame.origin.x;
			displays[i].by = primaryHeight - NSMaxY(frame);
			displays[i].bw = frame.size.width;
			displays[i].bh = frame.size.height;
			displays[i].ux = visible.origin.x;
			displays[i].uy = primaryHeight - NSMaxY(visible);
			displays[i].uw = visible.size.width;
			displays[i].uh = visible.size.height;
		}
		*out = displays;
		return n;
	}
}

void axw_free_displays(AXWDisplay *displays, int n) {
	for (int i = 0; i < n; i++) {
		free(displays[i].name);
	}
	free(displays);
}

static void axw_callback(AXObserverRef observer, AXUIElementRef element, CFStringRef notification, void *refcon) {
	@autoreleasepool {
		int pid = (int)(intptr_t)refcon;
		uint32_t wid = 0;
		CFStringRef role = NULL;
		if (AXUIElementCopyAttributeValue(element, kAXRoleAttribute, (CFTypeRef *)&role) == kAXErrorSuccess && role != NULL) {
			if (CFEqual(role, kAXWindowRole)) {
				wid = axw_window_id(element);
			}
			CFRelease(role);
		} else {
			// Destroyed elements no longer answer attribute queries.
			wid = axw_window_id(element);
		}
		char *name = axw_strdup((NSString *)notification);
		goAXObserverCallback(pid, wid, name);
		free(name);
	}
}

static void axw_keepalive(CFRunLoopTimerRef timer, void *info) {}

void axw_run_loop_start(void) {
	axw_runloop = CFRunLoopGetCurrent();
	CFRetain(axw_runloop);
	// CFRunLoopRun returns immediately without sources; a distant timer keeps it alive.
	CFRunLoopTimerRef timer = CFRunLoopTimerCreate(NULL, CFAbsoluteTimeGetCurrent() + 1e10, 1e10, 0, 0, axw_keepalive, NULL);
	CFRunLoopAddTimer(axw_runloop, timer, kCFRunLoopDefaultMode);
	CFRelease(timer);
	dispatch_semaphore_signal(axw_ready);
	CFRunLoopRun();
}

void axw_init(void) {
	if (axw_ready == NULL) {
		axw_ready = dispatch_semaphore_create(0);
		axw_observers = [[NSMutableDictionary alloc] init];
	}
}

void axw_wait_ready(void) {
	dispatch_semaphore_wait(axw_ready, DISPATCH_TIME_FOREVER);
}

void axw_run_loop_stop(void) {
	if (axw_runloop != NULL) {
		CFRunLoopStop(axw_runloop);
	}
}

static AXObserverRef axw_observer(int pid) {
	NSNumber *key = @(pid);
	id existing = axw_observers[key];
	if (existing != nil) {
		return (AXObserverRef)existing;
	}
	AXObserverRef observer = NULL;
	if (AXObserverCreate((pid_t)pid, axw_callback, &observer) != kAXErrorSuccess) {
		return NULL;
	}
	axw_observers[key] = (id)observer;
	CFRelease(observer);
	if (axw_runloop != NULL) {
		CFRunLoopAddSource(axw_runloop, AXObserverGetRunLoopSource(observer), kCFRunLoopDefaultMode);
	}
	return observer;
}

int axw_observe(int pid, uint32_t wid, const char *notification) {
	@autoreleasepool {
		@synchronized (axw_observers) {
			AXObserverRef observer = axw_observer(pid);
			if (observer == NULL) {
				return kAXErrorCannotComplete;
			}
			AXUIElementRef element = axw_copy_element(pid, wid);
			if (element == NULL) {
				return kAXErrorInvalidUIElement;
			}
			CFStringRef name = CFStringCreateWithCString(NULL, notification, kCFStringEncodingUTF8);
			AXError err = AXObserverAddNotification(observer, element, name, (void *)(intptr_t)pid);
			CFRelease(name);
			CFRelease(element);
			if (err == kAXErrorNotificationAlreadyRegistered) {
				err = kAXErrorSuccess;
			}
			return (int)err;
		}
	}
}

int axw_unobserve(int pid, uint32_t wid, const char *notification) {
	@autoreleasepool {
		@synchronized (axw_observers) {
			id existing = axw_observers[@(pid)];
			if (existing == nil) {
				return kAXErrorSuccess;
			}
			AXUIElementRef element = axw_copy_element(pid, wid);
			if (element == NULL) {
				return kAXErrorSuccess;
			}
			CFStringRef name = CFStringCreateWithCString(NULL, notification, kCFStringEncodingUTF8);
			AXError err = AXObserverRemoveNotification((AXObserverRef)existing, element, name);
			CFRelease(name);
			CFRelease(element);
			return (int)err;
		}
	}
}

void axw_forget(int pid) {
	@autoreleasepool {
		@synchronized (axw_observers) {
			NSNumber *key = @(pid);
			id existing = axw_observers[key];
			if (existing == nil) {
				return;
			}
			if (axw_runloop != NULL) {
				CFRunLoopRemoveSource(axw_runloop, AXObserverGetRunLoopSource((AXObserverRef)existing), kCFRunLoopDefaultMode);
			}
			[axw_observers removeObjectForKey:key];
		}
	}
}
*/
import "C"
