// Package clock converts between 12-hour clock labels ("09:30 AM") and minutes
// since midnight. Labels are canonically rendered with a two-digit hour.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

var (
	ErrParse           = errors.New("malformed time label")
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
)

// ParseError describes why a label could not be parsed.
type ParseError struct {
	Label  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse time label %q: %s", e.Label, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// ToMinutes parses "H:MM AM" or "HH:MM PM". Surrounding space, a one-digit
// hour and a lower-case meridiem are accepted, so only canonical labels (as
// rendered by ToLabel) survive ToLabel(ToMinutes(label)) unchanged; use
// Normalize to get the canonical form.
func ToMinutes(label string) (int, error) {
	s := strings.TrimSpace(label)
	clockPart, meridiem, ok := strings.Cut(s, " ")
	if !ok {
		return 0, &ParseError{Label: label, Reason: "missing meridiem"}
	}
	meridiem = strings.ToUpper(strings.TrimSpace(meridiem))
	if meridiem != "AM" && meridiem != "PM" {
		return 0, &ParseError{Label: label, Reason: "meridiem must be AM or PM"}
	}

	hourPart, minutePart, ok := strings.Cut(clockPart, ":")
	if !ok {
		return 0, &ParseError{Label: label, Reason: "missing ':' separator"}
	}
	if len(hourPart) < 1 || len(hourPart) > 2 || !digits(hourPart) {
		return 0, &ParseError{Label: label, Reason: "hour must be 1 or 2 digits"}
	}
	if len(minutePart) != 2 || !digits(minutePart) {
		return 0, &ParseError{Label: label, Reason: "minute must be 2 digits"}
	}
	hour, _ := strconv.Atoi(hourPart)
	minute, _ := strconv.Atoi(minutePart)
	if hour < 1 || hour > 12 {
		return 0, &ParseError{Label: label, Reason: "hour outside 1-12"}
	}
	if minute > 59 {
		return 0, &ParseError{Label: label, Reason: "minute outside 0-59"}
	}

	hour24 := hour % 12
	if meridiem == "PM" {
		hour24 += 12
	}
	return hour24*60 + minute, nil
}

// ToLabel renders minutes since midnight, wrapping any integer into the day first.
func ToLabel(minutes int) string {
	m := minutes % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	hour24, minute := m/60, m%60
	meridiem := "AM"
	if hour24 >= 12 {
		meridiem = "PM"
	}
	hour := hour24 % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minute, meridiem)
}

// AddDuration returns the label durationMinutes after start, wrapping past midnight.
func AddDuration(start string, durationMinutes int) (string, error) {
	if durationMinutes <= 0 {
		return "", fmt.Errorf("%w (got %d)", ErrInvalidDuration, durationMinutes)
	}
	m, err := ToMinutes(start)
	if err != nil {
		return "", err
	}
	return ToLabel(m + durationMinutes), nil
}

// Normalize returns the canonical rendering of a parseable label.
func Normalize(label string) (string, error) {
	m, err := ToMinutes(label)
	if err != nil {
		return "", err
	}
	return ToLabel(m), nil
}

// Hour returns the 24-hour clock hour of label.
func Hour(label string) (int, error) {
	m, err := ToMinutes(label)
	if err != nil {
		return 0, err
	}
	return m / 60, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
