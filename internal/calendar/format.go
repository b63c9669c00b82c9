package calendar

import (
	"fmt"
	"time"

	"regattacal/internal/model"
)

// Ordinal returns n with its English suffix: 1st, 2nd, 3rd, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// FormatOrdinal renders an ISO date as "12th July 2026". Input that is not an
// ISO date is returned unchanged.
func FormatOrdinal(iso string) string {
	t, err := time.Parse(model.ISODate, iso)
	if err != nil {
		return iso
	}
	return fmt.Sprintf("%s %s %d", Ordinal(t.Day()), t.Month(), t.Year())
}
