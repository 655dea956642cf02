package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zagreb(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)
	return loc
}

func TestParseCronExpression_Errors(t *testing.T) {
	tests := []string{
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"1,,2 * * * *",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCronExpression(expr, time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestCronExpression_WeeklyClose(t *testing.T) {
	loc := zagreb(t)
	ce := MustParseCronExpression("59 23 * * 0", loc)

	// Wednesday noon.
	next := ce.Next(time.Date(2024, 6, 12, 12, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 6, 16, 23, 59, 0, 0, loc), next)
	assert.Equal(t, time.Sunday, next.Weekday())

	// Exactly at the firing minute moves to the following week.
	again := ce.Next(next)
	assert.Equal(t, time.Date(2024, 6, 23, 23, 59, 0, 0, loc), again)
}

func TestCronExpression_EvaluatesInItsLocation(t *testing.T) {
	loc := zagreb(t)
	ce := MustParseCronExpression("0 9 * * *", loc)

	// 06:30 UTC is 08:30 in Zagreb during summer time.
	next := ce.Next(time.Date(2024, 6, 10, 6, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC), next.UTC())
}

func TestCronExpression_Fields(t *testing.T) {
	tests := []struct {
		expr  string
		after time.Time
		want  time.Time
	}{
		{"*/15 * * * *", time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC), time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)},
		{"0 */6 * * *", time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"30 8 1 * *", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)},
		{"0 0 * * 7", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},
		{"0 12 * * 1-5", time.Date(2024, 6, 14, 13, 0, 0, 0, time.UTC), time.Date(2024, 6, 17, 12, 0, 0, 0, time.UTC)},
		{"10,20 * * * *", time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), time.Date(2024, 1, 1, 10, 20, 0, 0, time.UTC)},
		// Day-of-month and weekday both restricted: either matches.
		{"0 0 13 * 5", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(tt.after))
		})
	}
}

func TestCronExpression_Impossible(t *testing.T) {
	ce := MustParseCronExpression("0 0 30 2 *", time.UTC)
	assert.True(t, ce.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
}
