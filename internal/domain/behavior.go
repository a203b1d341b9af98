package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

type DetailKind string

const (
	DetailLight   DetailKind = "light"
	DetailBlind   DetailKind = "blind"
	DetailMedia   DetailKind = "media"
	DetailBoiler  DetailKind = "boiler"
	DetailCamera  DetailKind = "camera"
	DetailSensor  DetailKind = "sensor"
	DetailGeneric DetailKind = "generic"
)

// Behavior describes how the UI treats a device with a given primary label.
type Behavior struct {
	Detail    DetailKind
	action    func(state string) (Command, string)
	secondary func(d UIDevice) string
}

var behaviors = map[string]Behavior{
	LabelLight: {
		Detail: DetailLight,
		action: func(string) (Command, string) { return CommandLightToggle, "Toggle light" },
		secondary: func(d UIDevice) string {
			if pct, ok := BrightnessPercent(d.Attributes); ok {
				return fmt.Sprintf("%d%% brightness", pct)
			}
			if d.State == "on" {
				return "On"
			}
			return "Off"
		},
	},
	LabelBlind: {
		Detail: DetailBlind,
		action: func(state string) (Command, string) {
			switch strings.ToLower(state) {
			case "open", "opening", "on":
				return CommandBlindClose, "Close blinds"
			}
			return CommandBlindOpen, "Open blinds"
		},
		secondary: func(d UIDevice) string {
			if d.State == "" {
				return "Idle"
			}
			return capitalize(d.State)
		},
	},
	LabelSpotify: {
		Detail:    DetailMedia,
		action:    playPause,
		secondary: mediaText,
	},
	LabelMedia: {
		Detail:    DetailMedia,
		action:    playPause,
		secondary: mediaText,
	},
	LabelTV: {
		Detail: DetailMedia,
		action: func(state string) (Command, string) {
			if strings.ToLower(state) == "on" {
				return CommandTVTogglePower, "Turn off TV"
			}
			return CommandTVTogglePower, "Turn on TV"
		},
		secondary: mediaText,
	},
	LabelSpeaker: {
		Detail: DetailMedia,
		action: func(state string) (Command, string) {
			switch strings.ToLower(state) {
			case "on", "playing":
				return CommandSpeakerTogglePower, "Turn off speaker"
			}
			return CommandSpeakerTogglePower, "Turn on speaker"
		},
		secondary: mediaText,
	},
	LabelBoiler: {
		Detail: DetailBoiler,
		secondary: func(d UIDevice) string {
			target, hasTarget := d.Attributes.Number("temperature")
			current, hasCurrent := d.Attributes.Number("current_temperature")
			switch {
			case hasTarget && hasCurrent:
				return fmt.Sprintf("Target %d° / Now %d°", int(target), int(current))
			case hasTarget:
				return fmt.Sprintf("Target %d°", int(target))
			}
			return d.State
		},
	},
	LabelMotionSensor: {
		Detail: DetailSensor,
		secondary: func(d UIDevice) string {
			switch strings.ToLower(d.State) {
			case "on", "motion", "detected", "open":
				return "Motion detected"
			}
			return "No motion"
		},
	},
	LabelHomeSecurity: {Detail: DetailCamera},
	LabelCamera:       {Detail: DetailCamera},
	LabelSensor:       {Detail: DetailSensor},
}

func playPause(state string) (Command, string) {
	if strings.ToLower(state) == "playing" {
		return CommandMediaPlayPause, "Pause"
	}
	return CommandMediaPlayPause, "Play"
}

func mediaText(d UIDevice) string {
	if title, ok := d.Attributes.String("media_title"); ok && title != "" {
		return title
	}
	switch strings.ToLower(d.State) {
	case "playing":
		return "Playing"
	case "paused":
		return "Paused"
	}
	return d.State
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// BehaviorFor looks up the behaviour of a primary label; unknown labels get
// the generic descriptor.
func BehaviorFor(label string) Behavior {
	if b, ok := behaviors[label]; ok {
		return b
	}
	return Behavior{Detail: DetailGeneric}
}

// PrimaryAction returns the one-tap command for d and its button text.
func (b Behavior) PrimaryAction(d UIDevice) (Command, string, bool) {
	if b.action == nil {
		return "", "Action", false
	}
	cmd, text := b.action(d.State)
	return cmd, text, true
}

func (b Behavior) SecondaryText(d UIDevice) string {
	if b.secondary != nil {
		return b.secondary(d)
	}
	if d.State == "" {
		return "Unknown"
	}
	return d.State
}

func BrightnessPercent(attrs Attributes) (int, bool) {
	if pct, ok := attrs.Number("brightness_pct"); ok {
		return int(math.Round(pct)), true
	}
	if raw, ok := attrs.Number("brightness"); ok {
		return int(math.Round(raw / 255 * 100)), true
	}
	return 0, false
}

func VolumePercent(attrs Attributes) float64 {
	if level, ok := attrs.Number("volume_level"); ok {
		return level * 100
	}
	return 0
}
