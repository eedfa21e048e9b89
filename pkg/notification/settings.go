package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietHours is a daily window during which notifications are suppressed.
// Start and End are "HH:MM"; a Start later than End wraps past midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Settings are the user's persisted notification preferences
type Settings struct {
	Enabled     bool       `json:"enabled"`
	Sound       bool       `json:"sound"`
	Desktop     bool       `json:"desktop"`
	ShowPreview bool       `json:"showPreview"`
	QuietHours  QuietHours `json:"quietHours"`
}

// DefaultSettings is used when nothing is stored or the store fails
func DefaultSettings() Settings {
	return Settings{
		Enabled:     true,
		Sound:       true,
		Desktop:     true,
		ShowPreview: true,
		QuietHours: QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
	}
}

// Validate checks the quiet hours clock values
func (s Settings) Validate() error {
	return s.QuietHours.Validate()
}

// Validate checks both ends of the window
func (q QuietHours) Validate() error {
	if _, err := parseClock(q.Start); err != nil {
		return fmt.Errorf("quiet hours start: %w", err)
	}
	if _, err := parseClock(q.End); err != nil {
		return fmt.Errorf("quiet hours end: %w", err)
	}
	return nil
}

// Active reports whether quiet hours are enabled and t falls inside them
func (q QuietHours) Active(t time.Time) bool {
	return q.Enabled && q.Contains(t)
}

// Contains reports whether the time of day of t falls inside the window,
// regardless of Enabled. Start is inclusive, End exclusive, and an equal
// Start and End describe an empty window. Malformed values never match.
func (q QuietHours) Contains(t time.Time) bool {
	start, err := parseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(q.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()

	switch {
	case start == end:
		return false
	case start < end:
		return now >= start && now < end
	default:
		return now >= start || now < end
	}
}

// parseClock turns "HH:MM" into minutes after midnight
func parseClock(v string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	return h*60 + m, nil
}
