// Package weekday encodes sets of week days into a 7-bit mask.
//
// The mapping follows time.Weekday: Sunday is bit 0, Monday bit 1 ... Saturday bit 6.
// Decoded names are always returned in that canonical order, whatever the input order was.
package weekday

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxMask is the mask of a 7 days week.
const MaxMask = 1<<7 - 1

var (
	// errors
	ErrInvalidDayName    = errors.New("invalid day name")
	ErrOutOfRangeBitmask = errors.New("bitmask must be in range [0, 127]")

	days = [7]time.Weekday{
		time.Sunday,
		time.Monday,
		time.Tuesday,
		time.Wednesday,
		time.Thursday,
		time.Friday,
		time.Saturday,
	}
	dayIndex = func() map[string]time.Weekday {
		m := make(map[string]time.Weekday, len(days))
		for _, d := range days {
			m[strings.ToLower(d.String())] = d
		}
		return m
	}()
)

// Parse returns the time.Weekday of a case-insensitive day name.
func Parse(name string) (time.Weekday, error) {
	d, ok := dayIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidDayName, "%q", name)
	}
	return d, nil
}

// Encode converts day names into a bitmask. Duplicates collapse.
func Encode(names ...string) (int, error) {
	var mask int
	for _, name := range names {
		d, err := Parse(name)
		if err != nil {
			return 0, err
		}
		mask |= Bit(d)
	}
	return mask, nil
}

// Decode converts a bitmask into day names, Sunday first.
func Decode(mask int) ([]string, error) {
	if err := Validate(mask); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		if mask&Bit(d) != 0 {
			names = append(names, d.String())
		}
	}
	return names, nil
}

// Validate checks that mask is a valid week days mask.
func Validate(mask int) error {
	if mask < 0 || mask > MaxMask {
		return errors.Wrapf(ErrOutOfRangeBitmask, "got %d", mask)
	}
	return nil
}

// Bit returns the mask bit of the given week day.
func Bit(d time.Weekday) int {
	return 1 << uint(d)
}

// Contains reports whether d is set in mask.
func Contains(mask int, d time.Weekday) bool {
	return mask&Bit(d) != 0
}

// Count returns the number of days set in mask.
func Count(mask int) int {
	var n int
	for _, d := range days {
		if Contains(mask, d) {
			n++
		}
	}
	return n
}
