package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/vetbox/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"Singular second":  {time: now.Add(-1 * time.Second), expected: "1 second ago (UTC)"},
		"Plural seconds":   {time: now.Add(-30 * time.Second), expected: "30 seconds ago (UTC)"},
		"Singular minute":  {time: now.Add(-1 * time.Minute), expected: "1 minute ago (UTC)"},
		"Plural minutes":   {time: now.Add(-45 * time.Minute), expected: "45 minutes ago (UTC)"},
		"Singular hour":    {time: now.Add(-1 * time.Hour), expected: "1 hour ago (UTC)"},
		"Plural hours":     {time: now.Add(-12 * time.Hour), expected: "12 hours ago (UTC)"},
		"Singular day":     {time: now.Add(-24 * time.Hour), expected: "1 day ago (UTC)"},
		"Plural days":      {time: now.Add(-7 * 24 * time.Hour), expected: "7 days ago (UTC)"},
		"Future timestamp": {time: now.Add(5 * time.Minute), expected: "in the future (UTC)"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeAgo(test.time))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-15 10:30:00 UTC", printer.FormatTimestamp(ts))

	// Non-UTC times get converted.
	offset := time.FixedZone("CET", 3600)
	assert.Equal(t, "2025-03-15 09:30:00 UTC", printer.FormatTimestamp(ts.In(offset)))
}
