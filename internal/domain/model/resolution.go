package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResolutionUnit is the calendar unit of a chart resolution.
type ResolutionUnit int

const (
	UnitMinute ResolutionUnit = iota
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
)

// Resolution is a parsed chart resolution such as "1", "1h", "1D", "1W", "1M".
type Resolution struct {
	Raw   string
	Count int
	Unit  ResolutionUnit
}

// ParseResolution accepts N (minutes), Nh, ND, NW and NM. N defaults to 1.
func ParseResolution(s string) (Resolution, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Resolution{}, fmt.Errorf("%w: empty", ErrUnknownResolution)
	}

	unit := UnitMinute
	num := raw
	switch raw[len(raw)-1] {
	case 'h', 'H':
		unit, num = UnitHour, raw[:len(raw)-1]
	case 'D', 'd':
		unit, num = UnitDay, raw[:len(raw)-1]
	case 'W', 'w':
		unit, num = UnitWeek, raw[:len(raw)-1]
	case 'M':
		unit, num = UnitMonth, raw[:len(raw)-1]
	}

	count := 1
	if num != "" {
		n, err := strconv.Atoi(num)
		if err != nil || n <= 0 {
			return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
		}
		count = n
	}
	return Resolution{Raw: raw, Count: count, Unit: unit}, nil
}

// Align returns the start (epoch seconds, UTC) of the bucket containing ts.
func (r Resolution) Align(ts int64) int64 {
	switch r.Unit {
	case UnitMinute:
		return floorTo(ts, int64(r.Count)*60)
	case UnitHour:
		return floorTo(ts, int64(r.Count)*3600)
	case UnitDay:
		return floorTo(ts, int64(r.Count)*86400)
	case UnitWeek:
		t := time.Unix(ts, 0).UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset).Unix()
	case UnitMonth:
		t := time.Unix(ts, 0).UTC()
		months := t.Year()*12 + int(t.Month()) - 1
		months -= months % r.Count
		return time.Date(months/12, time.Month(months%12+1), 1, 0, 0, 0, 0, time.UTC).Unix()
	}
	return ts
}

func floorTo(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}
