// Package duration converts between human readable durations such as
// "3 days 2 hours" and whole minutes.
package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDuration is returned when a string does not add up to a positive
// number of minutes.
var ErrInvalidDuration = errors.New("invalid duration")

const (
	Minute = 1
	Hour   = 60 * Minute
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 30 * Day
)

var units = map[string]int{
	"month":   Month,
	"months":  Month,
	"week":    Week,
	"weeks":   Week,
	"day":     Day,
	"days":    Day,
	"hour":    Hour,
	"hours":   Hour,
	"minute":  Minute,
	"minutes": Minute,
}

// Format renders minutes largest unit first, skipping zero parts. Weeks are
// never emitted. Zero formats as "0 minutes".
func Format(minutes int) string {
	if minutes <= 0 {
		return "0 minutes"
	}
	parts := make([]string, 0, 4)
	for _, u := range []struct {
		name string
		size int
	}{
		{"month", Month},
		{"day", Day},
		{"hour", Hour},
		{"minute", Minute},
	} {
		n := minutes / u.size
		minutes %= u.size
		if n == 0 {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}
	return strings.Join(parts, " ")
}

// Parse reads "<n> <unit>" and "<unit> <n>" pairs in any mix and returns the
// total in minutes. Unknown tokens are ignored.
func Parse(text string) (int, error) {
	tokens := strings.Fields(strings.ToLower(text))
	total := 0
	for i := 0; i < len(tokens); {
		if n, err := strconv.Atoi(tokens[i]); err == nil {
			if i+1 < len(tokens) {
				if size, ok := units[tokens[i+1]]; ok {
					total += n * size
					i += 2
					continue
				}
			}
			i++
			continue
		}
		if size, ok := units[tokens[i]]; ok && i+1 < len(tokens) {
			if n, err := strconv.Atoi(tokens[i+1]); err == nil {
				total += n * size
				i += 2
				continue
			}
		}
		i++
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive duration", ErrInvalidDuration, text)
	}
	return total, nil
}
