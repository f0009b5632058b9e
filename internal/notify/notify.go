// Package notify shows moodify updates as desktop notifications over the
// org.freedesktop.Notifications D-Bus interface.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/moodify/internal/playback"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"

	appName = "moodify"
)

// Level indicates the urgency of a notification.
type Level int

const (
	// LevelInfo is for informational messages (low urgency).
	LevelInfo Level = iota
	// LevelWarning is for warnings (normal urgency).
	LevelWarning
	// LevelError is for errors (critical urgency).
	LevelError
)

// Urgency returns the freedesktop urgency byte for the level.
func (l Level) Urgency() byte {
	switch l {
	case LevelInfo:
		return 0
	case LevelError:
		return 2
	default:
		return 1
	}
}

// Icon returns the themed icon name for the level.
func (l Level) Icon() string {
	switch l {
	case LevelInfo:
		return "dialog-information"
	case LevelError:
		return "dialog-error"
	default:
		return "dialog-warning"
	}
}

// Notification holds the parameters of a Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Sender delivers notifications to a notification server.
type Sender interface {
	Notify(n *Notification) (uint32, error)
	CloseNotification(id uint32) error
}

// BusSender sends notifications over the session bus.
type BusSender struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// DialSessionBus connects to the session bus.
func DialSessionBus() (*BusSender, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &BusSender{
		conn: conn,
		obj:  conn.Object(DBusInterface, dbus.ObjectPath(DBusPath)),
	}, nil
}

// Notify calls org.freedesktop.Notifications.Notify and returns the server id.
func (s *BusSender) Notify(n *Notification) (uint32, error) {
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}

	var id uint32
	call := s.obj.Call(DBusInterface+".Notify", 0,
		n.AppName, n.ReplacesID, n.AppIcon, n.Summary, n.Body,
		actions, hints, n.ExpireTimeout)
	if call.Err != nil {
		return 0, fmt.Errorf("notify: %w", call.Err)
	}
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

// CloseNotification asks the server to close the notification.
func (s *BusSender) CloseNotification(id uint32) error {
	if err := s.obj.Call(DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification: %w", err)
	}
	return nil
}

// Close releases the bus connection.
func (s *BusSender) Close() error {
	return s.conn.Close()
}

// Notifier keeps one persistent mood indicator notification up to date and
// sends rate-limited transient notifications for session problems.
type Notifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	sender Sender

	indicatorID uint32

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewNotifier creates a notifier using sender.
func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:         logger,
		sender:         sender,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    30 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetEnabled enables or disables all notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications with the same key.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// ShowNowPlaying replaces the mood indicator with the presented mood.
func (n *Notifier) ShowNowPlaying(np playback.NowPlaying) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return
	}

	body := np.Title() + " (" + np.Label() + ")"
	if np.Quote != "" {
		body += "\n" + np.Quote
	}

	id, err := n.sender.Notify(&Notification{
		AppName:    appName,
		ReplacesID: n.indicatorID,
		AppIcon:    "audio-x-generic",
		Summary:    np.Indicator(),
		Body:       body,
		Hints: map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(LevelInfo.Urgency()),
			"category":      dbus.MakeVariant("x-moodify.mood"),
			"resident":      dbus.MakeVariant(true),
			"desktop-entry": dbus.MakeVariant(appName),
		},
		ExpireTimeout: 0,
	})
	if err != nil {
		n.logger.Debug("mood indicator not shown", "error", err)
		return
	}
	n.indicatorID = id
}

// Notify sends a transient notification unless one with the same key was
// sent within the minimum interval.
func (n *Notifier) Notify(key, summary, body string, level Level) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.logger.Debug("notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now

	_, err := n.sender.Notify(&Notification{
		AppName: appName,
		AppIcon: level.Icon(),
		Summary: summary,
		Body:    body,
		Hints: map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(level.Urgency()),
			"transient":     dbus.MakeVariant(true),
			"desktop-entry": dbus.MakeVariant(appName),
		},
		ExpireTimeout: 5000,
	})
	if err != nil {
		n.logger.Debug("notification not sent", "key", key, "error", err)
	}
}

// NotifyStatus raises a notification for status texts that report a
// problem. Other statuses are ignored.
func (n *Notifier) NotifyStatus(status string) {
	switch {
	case strings.HasPrefix(status, "camera error"):
		n.Notify("camera", "Camera unavailable", status, LevelWarning)
	case strings.HasPrefix(status, "models not found"), strings.HasPrefix(status, "model load failed"):
		n.Notify("models", "Detection unavailable", status, LevelError)
	case strings.HasPrefix(status, "detection paused"):
		n.Notify("paused", "Detection paused", status, LevelInfo)
	}
}

// NotifyQuotesReloaded reports a quotes file reload.
func (n *Notifier) NotifyQuotesReloaded(err error) {
	if err != nil {
		n.Notify("quotes-error", "Quotes Error", "Failed to reload quotes: "+err.Error(), LevelWarning)
		return
	}
	n.Notify("quotes-reload", "Quotes Reloaded", "The quotes file has been reloaded.", LevelInfo)
}

// Close removes the mood indicator.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.indicatorID == 0 {
		return
	}
	if err := n.sender.CloseNotification(n.indicatorID); err != nil {
		n.logger.Debug("failed to close mood indicator", "error", err)
	}
	n.indicatorID = 0
}
