package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseShippingTime(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"italian relative weeks", "tra 2 settimane", now.AddDate(0, 0, 14)},
		{"italian relative days", "tra 3 giorni", now.AddDate(0, 0, 3)},
		{"italian relative months", "tra 1 mese", now.AddDate(0, 1, 0)},
		{"english relative weeks", "in 2 weeks", now.AddDate(0, 0, 14)},
		{"english relative days", "in 5 days", now.AddDate(0, 0, 5)},
		{"tomorrow it", "domani", now.AddDate(0, 0, 1)},
		{"day after tomorrow it", "dopodomani", now.AddDate(0, 0, 2)},
		{"tomorrow en", "tomorrow", now.AddDate(0, 0, 1)},
		{"next week it", "la prossima settimana", now.AddDate(0, 0, 7)},
		{"next month en", "next month", now.AddDate(0, 1, 0)},
		{"iso date", "2026-02-01", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"dmy slash", "01/02/2026", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"dmy dash", "01-02-2026", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"unparseable falls back two weeks", "whenever works", now.AddDate(0, 0, 14)},
		{"empty falls back two weeks", "", now.AddDate(0, 0, 14)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseShippingTime(tt.input, now)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseShippingTimeNeverZero(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"asap", "tra zero giorni", "in 0 days", "???"} {
		got := ParseShippingTime(in, now)
		assert.True(t, got.After(now), "input %q produced %s", in, got)
	}
}
