package datekey

import "time"

var weekdayNames = [7]string{
	"domingo",
	"lunes",
	"martes",
	"miércoles",
	"jueves",
	"viernes",
	"sábado",
}

// WeekdayNames lists the names indexed by time.Weekday.
func WeekdayNames() [7]string { return weekdayNames }

// WeekdayOf returns the Spanish weekday name of the key's calendar day, or "" for a
// malformed key. The day is built from its calendar fields, never parsed as a UTC instant.
func WeekdayOf(k Key) string {
	y, m, d, ok := k.Date()
	if !ok {
		return ""
	}
	return weekdayNames[time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Weekday()]
}
