package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RelativeDateModifier applies relative modifiers such as "+1 day",
// "-2 weeks" or "+1 month -1 day" to stored dates.
type RelativeDateModifier struct {
	now func() time.Time
}

func NewRelativeDateModifier() *RelativeDateModifier {
	return &RelativeDateModifier{now: time.Now}
}

var (
	modifierTokenRegex = regexp.MustCompile(`(?i)([+-]?\s*\d+)\s*(seconds?|secs?|minutes?|mins?|hours?|days?|weeks?|fortnights?|months?|years?)`)

	inputLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
)

// ApplyModifier parses value, applies modifier and formats with layout.
func (m *RelativeDateModifier) ApplyModifier(value, modifier, layout string) (string, error) {
	t, err := parseDateValue(value)
	if err != nil {
		return "", err
	}
	t, err = m.apply(t, strings.TrimSpace(modifier))
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

func parseDateValue(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func (m *RelativeDateModifier) apply(t time.Time, modifier string) (time.Time, error) {
	switch strings.ToLower(modifier) {
	case "":
		return t, nil
	case "now":
		return m.now().In(t.Location()), nil
	case "today", "midnight":
		return truncateDay(m.now().In(t.Location())), nil
	case "tomorrow":
		return truncateDay(m.now().In(t.Location())).AddDate(0, 0, 1), nil
	case "yesterday":
		return truncateDay(m.now().In(t.Location())).AddDate(0, 0, -1), nil
	}

	matches := modifierTokenRegex.FindAllStringSubmatchIndex(modifier, -1)
	if len(matches) == 0 {
		return time.Time{}, fmt.Errorf("unrecognized date modifier %q", modifier)
	}
	for _, idx := range matches {
		amount, err := strconv.Atoi(strings.ReplaceAll(modifier[idx[2]:idx[3]], " ", ""))
		if err != nil {
			return time.Time{}, fmt.Errorf("date modifier amount: %w", err)
		}
		t = shift(t, amount, strings.ToLower(modifier[idx[4]:idx[5]]))
	}
	if rest := strings.TrimSpace(modifierTokenRegex.ReplaceAllString(modifier, "")); rest != "" {
		return time.Time{}, fmt.Errorf("unrecognized date modifier %q", modifier)
	}
	return t, nil
}

func shift(t time.Time, amount int, unit string) time.Time {
	unit = strings.TrimSuffix(unit, "s")
	switch unit {
	case "second", "sec":
		return t.Add(time.Duration(amount) * time.Second)
	case "minute", "min":
		return t.Add(time.Duration(amount) * time.Minute)
	case "hour":
		return t.Add(time.Duration(amount) * time.Hour)
	case "day":
		return t.AddDate(0, 0, amount)
	case "week":
		return t.AddDate(0, 0, 7*amount)
	case "fortnight":
		return t.AddDate(0, 0, 14*amount)
	case "month":
		return t.AddDate(0, amount, 0)
	case "year":
		return t.AddDate(amount, 0, 0)
	}
	return t
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
