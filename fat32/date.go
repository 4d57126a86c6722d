package fat32

import (
	"time"
)

// ParseDate reads a FAT date stamp:
//
//	Bits 0–4: Day of month, valid value range 1-31 inclusive.
//	Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//	Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive (1980–2107).
//
// The result always has a time of 00:00:00 UTC.
// Day or month 0 are invalid, in that case time.Time{} is returned so
// time.Time.IsZero() can be used.
//
// Note that monthOfYear may be bigger than 12 which is unspecified. In this case the year gets incremented by one.
func ParseDate(input uint16) time.Time {
	dayOfMonth := input & 0x1F
	monthOfYear := input & 0x1E0 >> 5
	yearSince1980 := input & 0xFE00 >> 9

	if dayOfMonth == 0 || monthOfYear == 0 {
		return time.Time{}
	}

	return time.Date(1980+int(yearSince1980), time.Month(monthOfYear), int(dayOfMonth), 0, 0, 0, 0, time.UTC)
}

// ParseTime reads a FAT time stamp with a granularity of 2 seconds:
//
//	Bits 0–4: 2-second count, valid value range 0–29 inclusive (0 – 58 seconds).
//	Bits 5–10: Minutes, valid value range 0–59 inclusive.
//	Bits 11–15: Hours, valid value range 0–23 inclusive.
//
// The result is always on January 1, year 1. Out of range values are clamped to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := input & 0x7E0 >> 5
	hours := input & 0xF800 >> 11

	result := time.Date(1, 1, 1, int(hours), int(minutes), seconds, 0, time.UTC)

	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// ParseDateTime combines a date and time stamp. tenths is the 10 ms unit count
// stored for creation times (0-199), pass 0 where none exists.
func ParseDateTime(date, clock uint16, tenths uint8) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}

	t := ParseTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).
		Add(time.Duration(tenths) * 10 * time.Millisecond)
}

// FormatDate encodes t as FAT date stamp. Dates outside of 1980-2107 are clamped.
func FormatDate(t time.Time) uint16 {
	t = t.UTC()
	year := t.Year() - 1980
	switch {
	case year < 0:
		return 1<<5 | 1
	case year > 127:
		return 127<<9 | 12<<5 | 31
	}
	return uint16(year)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
}

// FormatTime encodes t as FAT time stamp, odd seconds are rounded down.
func FormatTime(t time.Time) uint16 {
	t = t.UTC()
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// formatTenths returns the 10 ms units lost by FormatTime.
func formatTenths(t time.Time) uint8 {
	t = t.UTC()
	return uint8((t.Second()%2)*100 + t.Nanosecond()/int(10*time.Millisecond))
}
