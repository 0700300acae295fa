package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Relative date strings as sent by the frontend: "-3d", "-24h", "-2w", "-1m", "-1y".
var relativeDatePattern = regexp.MustCompile(`^-(\d+)([hdwmy])$`)

// Resolves a date range with relative ("-3d") or absolute ("2023-01-01",
// RFC 3339) bounds into concrete timestamps. A nil/empty dateFrom defaults to 7 days
// before now, a nil/empty dateTo to now.
func ResolveDateRange(dateFrom *string, dateTo *string, now time.Time) (from time.Time, to time.Time, err error) {
	from = now.AddDate(0, 0, -7)
	if dateFrom != nil && *dateFrom != "" {
		from, err = resolveDateBound(*dateFrom, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	to = now
	if dateTo != nil && *dateTo != "" {
		to, err = resolveDateBound(*dateTo, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	return from, to, nil
}

func resolveDateBound(bound string, now time.Time) (time.Time, error) {
	if match := relativeDatePattern.FindStringSubmatch(bound); match != nil {
		amount, err := strconv.Atoi(match[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative date '%s'", bound)
		}

		switch match[2] {
		case "h":
			return now.Add(-time.Duration(amount) * time.Hour), nil
		case "d":
			return now.AddDate(0, 0, -amount), nil
		case "w":
			return now.AddDate(0, 0, -7*amount), nil
		case "m":
			return now.AddDate(0, -amount, 0), nil
		case "y":
			return now.AddDate(-amount, 0, 0), nil
		}
	}

	if date, err := time.Parse(time.DateOnly, bound); err == nil {
		return date, nil
	}
	if date, err := time.Parse(time.RFC3339, bound); err == nil {
		return date, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date bound '%s'", bound)
}
