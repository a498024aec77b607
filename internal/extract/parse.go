package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flightdeals/internal/flight"
)

var (
	colonDurationRe = regexp.MustCompile(`^(\d+):(\d+)$`)
	spacedHMRe      = regexp.MustCompile(`(?i)(\d+)\s*h\s+(\d+)(?:\s*m)?\s*$`)
	compactHMRe     = regexp.MustCompile(`(?i)(\d+)\s*h\s*(\d+)\s*m`)
	hoursRe         = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe       = regexp.MustCompile(`(?i)(\d+)\s*m`)
	leadingIntRe    = regexp.MustCompile(`^\d+`)

	priceRe = regexp.MustCompile(`\d[\d.,]*\d|\d`)
	clockRe = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?::\d{2})?\s*([ap]\.?m\.?)?`)
	dateRe  = regexp.MustCompile(`(?i)(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})`)
	isoRe   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	iataRe  = regexp.MustCompile(`^\s*([A-Z]{3})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDuration converts free-text durations ("3h 30m", "3h30m", "3:30", "195m", "195") to minutes.
// Unrecognised text yields 0.
func ParseDuration(text string) int {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	if m := colonDurationRe.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}
	if m := spacedHMRe.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}
	if m := compactHMRe.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}

	h := hoursRe.FindStringSubmatch(s)
	m := minutesRe.FindStringSubmatch(s)
	if h != nil || m != nil {
		total := 0
		if h != nil {
			total += atoi(h[1]) * 60
		}
		if m != nil {
			total += atoi(m[1])
		}
		return total
	}

	if n := leadingIntRe.FindString(s); n != "" {
		return atoi(n)
	}
	return 0
}

// ParseConnectionTime converts layover text ("7h 50", "2h 30m", "45m") to minutes.
// Empty or unparseable text, and non-positive totals, yield nil.
func ParseConnectionTime(text string) *int {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	total := 0
	if loc := hoursRe.FindStringSubmatchIndex(s); loc != nil {
		total = atoi(s[loc[2]:loc[3]]) * 60
		rest := s[loc[1]:]
		if m := minutesRe.FindStringSubmatch(rest); m != nil {
			total += atoi(m[1])
		} else if n := leadingIntRe.FindString(strings.TrimSpace(rest)); n != "" {
			// "7h 50": a bare number after the hours is minutes
			total += atoi(n)
		}
	} else if m := minutesRe.FindStringSubmatch(s); m != nil {
		total = atoi(m[1])
	} else if n := leadingIntRe.FindString(s); n != "" {
		total = atoi(n)
	}

	if total <= 0 {
		return nil
	}
	return &total
}

// ParsePrice extracts the first amount in text, ignoring currency symbols and thousands separators.
// The last separator is the decimal point when one or two digits follow it. Three digits mark thousands.
func ParsePrice(text string) (float64, bool) {
	raw := priceRe.FindString(text)
	if raw == "" {
		return 0, false
	}

	whole, fraction := raw, ""
	if i := strings.LastIndexAny(raw, ".,"); i >= 0 {
		if n := len(raw) - i - 1; n == 1 || n == 2 {
			whole, fraction = raw[:i], raw[i+1:]
		}
	}
	whole = strings.NewReplacer(",", "", ".", "").Replace(whole)
	if fraction != "" {
		whole += "." + fraction
	}

	value, err := strconv.ParseFloat(whole, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// ParseClock normalises "9:05", "09:05:00" or "9:05 PM" to 24-hour "HH:MM".
func ParseClock(text string) (string, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	hour, minute := atoi(m[1]), atoi(m[2])
	if suffix := strings.ToLower(strings.ReplaceAll(m[3], ".", "")); suffix != "" {
		if hour < 1 || hour > 12 {
			return "", false
		}
		switch {
		case suffix == "pm" && hour != 12:
			hour += 12
		case suffix == "am" && hour == 12:
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// ParseDate finds a calendar date such as "Mon, 15 Jan 2024" or "2024-01-15" in text.
func ParseDate(text string) (time.Time, bool) {
	if m := dateRe.FindStringSubmatch(text); m != nil {
		month := months[strings.ToLower(m[2])]
		return civil(atoi(m[3]), month, atoi(m[1]))
	}
	if m := isoRe.FindStringSubmatch(text); m != nil {
		return civil(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	return time.Time{}, false
}

// AirportCode returns the leading three-letter airport code of text.
func AirportCode(text string) (string, bool) {
	m := iataRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ArrivalDate dates an arrival clock time relative to its departure: an arrival earlier than the
// departure lands on the following day.
func ArrivalDate(departureDate time.Time, departureTime, arrivalTime string) time.Time {
	if arrivalTime < departureTime {
		return departureDate.AddDate(0, 0, 1)
	}
	return departureDate
}

func civil(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func formatDate(t time.Time) string {
	return t.Format(flight.DateLayout)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
