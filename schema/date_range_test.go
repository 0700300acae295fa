package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDateRangeDefaults(t *testing.T) {
	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	from, to, err := ResolveDateRange(nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), from)
	assert.Equal(t, now, to)

	// Empty strings behave like absent bounds.
	empty := ""
	from, to, err = ResolveDateRange(&empty, &empty, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), from)
	assert.Equal(t, now, to)
}

func TestResolveDateRangeRelativeBounds(t *testing.T) {
	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		dateFrom string
		expected time.Time
	}{
		{dateFrom: "-24h", expected: now.Add(-24 * time.Hour)},
		{dateFrom: "-3d", expected: now.AddDate(0, 0, -3)},
		{dateFrom: "-2w", expected: now.AddDate(0, 0, -14)},
		{dateFrom: "-1m", expected: now.AddDate(0, -1, 0)},
		{dateFrom: "-1y", expected: now.AddDate(-1, 0, 0)},
	}
	for _, testCase := range testCases {
		t.Run(testCase.dateFrom, func(t *testing.T) {
			from, to, err := ResolveDateRange(&testCase.dateFrom, nil, now)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, from)
			assert.Equal(t, now, to)
		})
	}
}

func TestResolveDateRangeAbsoluteBounds(t *testing.T) {
	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	dateFrom := "2023-06-01"
	dateTo := "2023-06-10T08:30:00Z"
	from, to, err := ResolveDateRange(&dateFrom, &dateTo, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, time.June, 10, 8, 30, 0, 0, time.UTC), to)
}

func TestResolveDateRangeInvalidBound(t *testing.T) {
	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

	for _, invalid := range []string{"-3x", "3d", "next tuesday", "2023/06/01"} {
		bound := invalid
		_, _, err := ResolveDateRange(&bound, nil, now)
		assert.Error(t, err, "bound %q should be rejected", invalid)
	}
}
