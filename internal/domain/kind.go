package domain

import (
	"strconv"
	"strings"
)

var primaryCategories = map[string]struct{}{
	"light":      {},
	"blind":      {},
	"tv":         {},
	"speaker":    {},
	"boiler":     {},
	"spotify":    {},
	"switch":     {},
	"thermostat": {},
	"media":      {},
	"vacuum":     {},
	"camera":     {},
	"security":   {},
}

var sensorCategories = map[string]struct{}{
	"sensor":        {},
	"motion sensor": {},
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// IsDetailReading reports whether state is a numeric reading or "unavailable".
func IsDetailReading(state string) bool {
	trimmed := strings.TrimSpace(state)
	if trimmed == "" {
		return false
	}
	if strings.EqualFold(trimmed, "unavailable") {
		return true
	}
	_, err := strconv.ParseFloat(trimmed, 64)
	return err == nil
}

func IsSensor(category, state string) bool {
	if _, ok := sensorCategories[normalizeCategory(category)]; ok {
		return true
	}
	return IsDetailReading(state)
}

// IsPrimary is never true when IsSensor is: a numeric-state switch is a sensor.
func IsPrimary(category, state string) bool {
	if IsSensor(category, state) {
		return false
	}
	if _, ok := primaryCategories[normalizeCategory(category)]; ok {
		return true
	}
	return !IsDetailReading(state)
}
