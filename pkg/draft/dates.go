package draft

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultShippingLead is applied when a requested date cannot be understood.
const defaultShippingLead = 14 * 24 * time.Hour

var (
	relativeIT = regexp.MustCompile(`tra\s+(\d+)\s+(giorn|settiman|mes)`)
	relativeEN = regexp.MustCompile(`in\s+(\d+)\s+(day|week|month)`)
	dmySlash   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// ParseShippingTime turns natural-language shipping requests, in Italian or
// English, into a concrete time. Supported forms include relative offsets
// ("tra 2 settimane", "in 3 days"), day words (domani, tomorrow, dopodomani),
// next week/month, ISO dates and DD/MM/YYYY. Anything unrecognized falls back
// to now plus two weeks.
func ParseShippingTime(input string, now time.Time) time.Time {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return now.Add(defaultShippingLead)
	}

	if m := relativeIT.FindStringSubmatch(s); m != nil {
		return addUnits(now, m[1], m[2])
	}
	if m := relativeEN.FindStringSubmatch(s); m != nil {
		return addUnits(now, m[1], m[2])
	}

	switch {
	case strings.Contains(s, "dopodomani"):
		return now.AddDate(0, 0, 2)
	case strings.Contains(s, "domani"), strings.Contains(s, "tomorrow"):
		return now.AddDate(0, 0, 1)
	case strings.Contains(s, "prossima settimana"), strings.Contains(s, "next week"):
		return now.AddDate(0, 0, 7)
	case strings.Contains(s, "prossimo mese"), strings.Contains(s, "next month"):
		return now.AddDate(0, 1, 0)
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t
	}
	if m := dmySlash.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}

	return now.Add(defaultShippingLead)
}

func addUnits(now time.Time, count, unit string) time.Time {
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return now.Add(defaultShippingLead)
	}
	switch {
	case strings.HasPrefix(unit, "giorn"), strings.HasPrefix(unit, "day"):
		return now.AddDate(0, 0, n)
	case strings.HasPrefix(unit, "settiman"), strings.HasPrefix(unit, "week"):
		return now.AddDate(0, 0, 7*n)
	case strings.HasPrefix(unit, "mes"), strings.HasPrefix(unit, "month"):
		return now.AddDate(0, n, 0)
	}
	return now.Add(defaultShippingLead)
}
