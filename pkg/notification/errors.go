package notification

import "errors"

var (
	// ErrUnsupported is returned when no display capability is available
	ErrUnsupported = errors.New("notifications not supported")
	// ErrPermissionNotGranted is returned when the user has not granted permission
	ErrPermissionNotGranted = errors.New("notification permission not granted")
	// ErrDisabled is returned when notifications are turned off in settings
	ErrDisabled = errors.New("notifications disabled")
	// ErrDesktopDisabled is returned when desktop notifications are turned off in settings
	ErrDesktopDisabled = errors.New("desktop notifications disabled")
	// ErrQuietHours is returned inside the configured quiet hours
	ErrQuietHours = errors.New("quiet hours")
	// ErrWindowVisible is returned when the application is in the foreground
	ErrWindowVisible = errors.New("application window visible")
	// ErrInvalidClock is returned for a time of day not in HH:MM form
	ErrInvalidClock = errors.New("invalid time of day")
	// ErrNotificationNotConfigured is returned when a forwarder has no target
	ErrNotificationNotConfigured = errors.New("notification not configured")
)
