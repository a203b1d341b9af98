package domain

import (
	"sort"
	"strings"
)

const (
	LabelLight        = "Light"
	LabelBlind        = "Blind"
	LabelTV           = "TV"
	LabelSpeaker      = "Speaker"
	LabelBoiler       = "Boiler"
	LabelSecurity     = "Security"
	LabelSpotify      = "Spotify"
	LabelSwitch       = "Switch"
	LabelThermostat   = "Thermostat"
	LabelMedia        = "Media"
	LabelMotionSensor = "Motion Sensor"
	LabelSensor       = "Sensor"
	LabelVacuum       = "Vacuum"
	LabelCamera       = "Camera"
	LabelDoorbell     = "Doorbell"
	LabelHomeSecurity = "Home Security"
	LabelOther        = "Other"
)

var labelMap = map[string]string{
	"light":         LabelLight,
	"lights":        LabelLight,
	"blind":         LabelBlind,
	"blinds":        LabelBlind,
	"shade":         LabelBlind,
	"shades":        LabelBlind,
	"tv":            LabelTV,
	"television":    LabelTV,
	"speaker":       LabelSpeaker,
	"speakers":      LabelSpeaker,
	"audio":         LabelSpeaker,
	"boiler":        LabelBoiler,
	"heating":       LabelBoiler,
	"thermostat":    LabelThermostat,
	"doorbell":      LabelSecurity,
	"security":      LabelSecurity,
	"home security": LabelSecurity,
	"spotify":       LabelSpotify,
	"switch":        LabelSwitch,
	"switches":      LabelSwitch,
	"media":         LabelMedia,
	"media player":  LabelMedia,
	"motion":        LabelMotionSensor,
	"motion sensor": LabelMotionSensor,
	"sensor":        LabelSensor,
	"vacuum":        LabelVacuum,
	"camera":        LabelCamera,
}

// LabelOrder is the dashboard display order. Labels outside it sort after it.
var LabelOrder = []string{
	LabelLight,
	LabelBlind,
	LabelMotionSensor,
	LabelSpotify,
	LabelBoiler,
	LabelDoorbell,
	LabelHomeSecurity,
	LabelTV,
	LabelSpeaker,
}

// Classify maps raw hub labels to a canonical category. Labels are tried in
// order and the first known one wins.
func Classify(labels []string) (string, bool) {
	for _, l := range labels {
		if category, ok := labelMap[strings.ToLower(strings.TrimSpace(l))]; ok {
			return category, true
		}
	}
	return "", false
}

func ClassifyOrOther(labels []string) string {
	if category, ok := Classify(labels); ok {
		return category
	}
	return LabelOther
}

func labelRank(label string) int {
	for i, known := range LabelOrder {
		if strings.EqualFold(known, label) {
			return i
		}
	}
	return len(LabelOrder)
}

// SortLabels returns a sorted copy: known labels in display order, then the
// rest case-insensitively.
func SortLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := labelRank(out[i]), labelRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// PrimaryLabelOf picks override label, then first hub label, then category.
func PrimaryLabelOf(d UIDevice) string {
	if l := strings.TrimSpace(d.Label); l != "" {
		return l
	}
	if len(d.Labels) > 0 {
		if l := strings.TrimSpace(d.Labels[0]); l != "" {
			return l
		}
	}
	if c := strings.TrimSpace(d.LabelCategory); c != "" {
		return c
	}
	return LabelOther
}

// GroupLabelOf buckets a device under a known display label or Other.
func GroupLabelOf(d UIDevice) string {
	label := PrimaryLabelOf(d)
	if idx := labelRank(label); idx < len(LabelOrder) {
		return LabelOrder[idx]
	}
	return LabelOther
}
