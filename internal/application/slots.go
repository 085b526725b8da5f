package application

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format for booking dates.
	DateLayout = "2006-01-02"

	slotStartLayout = "2006-01-02 15:04"
)

// Slots builds the configured hourly slot ranges, e.g. 9 and 17 yield
// "09:00-10:00" through "16:00-17:00".
func Slots(startHour, endHour int) []string {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil
	}
	slots := make([]string, 0, endHour-startHour)
	for hour := startHour; hour < endHour; hour++ {
		slots = append(slots, fmt.Sprintf("%02d:00-%02d:00", hour, hour+1))
	}
	return slots
}

// SlotStart resolves the wall-clock start of a slot on a date in the interview
// timezone.
func SlotStart(date, slot string, loc *time.Location) (time.Time, error) {
	if len(slot) < 5 {
		return time.Time{}, fmt.Errorf("malformed time slot %q", slot)
	}
	start, err := time.ParseInLocation(slotStartLayout, date+" "+slot[:5], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed slot start: %w", err)
	}
	return start, nil
}

// AvailableDates returns the next n weekdays starting from today in the
// interview timezone.
func AvailableDates(now time.Time, n int) []string {
	dates := make([]string, 0, n)
	day := now
	for len(dates) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day.Format(DateLayout))
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}
