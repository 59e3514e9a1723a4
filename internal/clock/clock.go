// Package clock resolves "now" and calendar boundaries in the club's fixed
// local offset, so day and month bucketing does not depend on the server
// timezone.
package clock

import (
	"fmt"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Mock is a settable clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

const DateLayout = "2006-01-02"

// Calendar performs day arithmetic in a fixed UTC offset.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(offsetHours int) *Calendar {
	name := fmt.Sprintf("UTC%+03d:00", offsetHours)
	return &Calendar{loc: time.FixedZone(name, offsetHours*60*60)}
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) In(t time.Time) time.Time { return t.In(c.loc) }

// StartOfDay returns local midnight of the day containing t.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	l := t.In(c.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, c.loc)
}

// MonthBounds returns [first local midnight of the month, first of next month).
func (c *Calendar) MonthBounds(t time.Time) (time.Time, time.Time) {
	l := t.In(c.loc)
	start := time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 1, 0)
}

// DayBounds parses a YYYY-MM-DD date and returns [00:00, next 00:00) local.
func (c *Calendar) DayBounds(date string) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return d, d.AddDate(0, 0, 1), nil
}

// SlotStart builds the local timestamp of an hourly slot.
func (c *Calendar) SlotStart(date string, hour int) (time.Time, error) {
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("hour %d out of range 0-23", hour)
	}
	d, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(hour) * time.Hour), nil
}

// DaysBetween counts whole local calendar days from the day of `from` to the
// day of `to`. It never returns a negative number.
func (c *Calendar) DaysBetween(from, to time.Time) int {
	d := c.StartOfDay(to).Sub(c.StartOfDay(from))
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

// Format renders t as ISO-8601 with the explicit local offset.
func (c *Calendar) Format(t time.Time) string {
	return t.In(c.loc).Format(time.RFC3339)
}

// FormatDate renders the local date of t.
func (c *Calendar) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}
