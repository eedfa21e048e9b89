package notification

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func minuteOfDay() *rapid.Generator[int] {
	return rapid.IntRange(0, 24*60-1)
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func TestQuietHours_ContainsProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := minuteOfDay().Draw(t, "start")
		end := minuteOfDay().Draw(t, "end")
		now := minuteOfDay().Draw(t, "now")

		q := QuietHours{Enabled: true, Start: formatClock(start), End: formatClock(end)}
		moment := time.Date(2024, 5, 1, now/60, now%60, 0, 0, time.Local)
		got := q.Contains(moment)

		if start == end && got {
			t.Fatalf("empty window %s-%s contains %s", q.Start, q.End, formatClock(now))
		}
		if start != end && now == start && !got {
			t.Fatalf("window %s-%s misses its start", q.Start, q.End)
		}
		if start != end && now == end && got {
			t.Fatalf("window %s-%s contains its end", q.Start, q.End)
		}

		// the swapped window covers exactly the rest of the day
		if start != end {
			inverse := QuietHours{Enabled: true, Start: q.End, End: q.Start}
			if inverse.Contains(moment) == got {
				t.Fatalf("window %s-%s and its inverse agree at %s", q.Start, q.End, formatClock(now))
			}
		}

		disabled := q
		disabled.Enabled = false
		if disabled.Active(moment) {
			t.Fatalf("disabled quiet hours are active")
		}
	})
}
