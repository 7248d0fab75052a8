package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDuration   = errors.New("empty duration")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrTooSmall        = errors.New("duration too small")
	ErrTooLarge        = errors.New("duration too large")

	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseCadence parses human-friendly cadences like "30m", "1h30m", "90m",
// "2h", or a plain number of minutes. Constraints: 10m <= d <= 24h.
func ParseCadence(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyDuration
	}
	var total time.Duration

	// Plain number means minutes (e.g., "90").
	if isAllDigits(s) {
		mins, _ := strconv.Atoi(s)
		total = time.Duration(mins) * time.Minute
	} else {
		re := regexp.MustCompile(`(?i)(\d+)\s*h`)
		mh := re.FindStringSubmatch(s)
		if len(mh) == 2 {
			h, _ := strconv.Atoi(mh[1])
			total += time.Duration(h) * time.Hour
		}
		re = regexp.MustCompile(`(?i)(\d+)\s*m`)
		mm := re.FindStringSubmatch(s)
		if len(mm) == 2 {
			m, _ := strconv.Atoi(mm[1])
			total += time.Duration(m) * time.Minute
		}
		if total == 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
	}

	if total < 10*time.Minute {
		return 0, fmt.Errorf("%w: min 10m", ErrTooSmall)
	}
	if total > 24*time.Hour {
		return 0, fmt.Errorf("%w: max 24h", ErrTooLarge)
	}
	return total, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseAmount parses an intake amount like "250", "250ml", "8 oz".
// The returned Unit is empty when no unit was given.
func ParseAmount(s string) (int, Unit, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, "", fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	var unit Unit
	switch {
	case strings.HasSuffix(s, "ml"):
		unit = UnitML
		s = strings.TrimSpace(strings.TrimSuffix(s, "ml"))
	case strings.HasSuffix(s, "oz"):
		unit = UnitOZ
		s = strings.TrimSpace(strings.TrimSuffix(s, "oz"))
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, "", fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if n > 100000 {
		return 0, "", fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return n, unit, nil
}

// mlPerOz is the fluid-ounce conversion factor.
const mlPerOz = 29.5735

// ConvertAmount converts amount between volume units, rounding to the
// nearest whole unit but never below 1.
func ConvertAmount(amount int, from, to Unit) int {
	if from == to || from == "" || to == "" {
		return amount
	}
	var out float64
	switch {
	case from == UnitOZ && to == UnitML:
		out = float64(amount) * mlPerOz
	case from == UnitML && to == UnitOZ:
		out = float64(amount) / mlPerOz
	default:
		return amount
	}
	n := int(math.Round(out))
	if n < 1 {
		n = 1
	}
	return n
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// LocalizeTime formats t in the given timezone as HH:MM.
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("15:04"), nil
}
