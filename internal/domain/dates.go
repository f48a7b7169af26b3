package domain

import "time"

// DateKeyOf encodes a calendar date as YYYYMMDD.
func DateKeyOf(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DateFromKey decodes a YYYYMMDD key. ok is false for keys that are not real dates.
func DateFromKey(key int) (time.Time, bool) {
	if key < 10000101 || key > 99991231 {
		return time.Time{}, false
	}
	y, m, d := key/10000, (key/100)%100, key%100
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// TruncateDay returns midnight UTC of the calendar date of t.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
