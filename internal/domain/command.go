package domain

type Command string

const (
	CommandLightToggle        Command = "light/toggle"
	CommandLightSetBrightness Command = "light/set_brightness"
	CommandBlindOpen          Command = "blind/open"
	CommandBlindClose         Command = "blind/close"
	CommandMediaPlayPause     Command = "media/play_pause"
	CommandMediaNext          Command = "media/next"
	CommandMediaPrevious      Command = "media/previous"
	CommandMediaVolumeUp      Command = "media/volume_up"
	CommandMediaVolumeDown    Command = "media/volume_down"
	CommandMediaVolumeSet     Command = "media/volume_set"
	CommandBoilerTempUp       Command = "boiler/temp_up"
	CommandBoilerTempDown     Command = "boiler/temp_down"
	CommandTVTogglePower      Command = "tv/toggle_power"
	CommandSpeakerTogglePower Command = "speaker/toggle_power"
)

var commands = map[Command]struct{}{
	CommandLightToggle:        {},
	CommandLightSetBrightness: {},
	CommandBlindOpen:          {},
	CommandBlindClose:         {},
	CommandMediaPlayPause:     {},
	CommandMediaNext:          {},
	CommandMediaPrevious:      {},
	CommandMediaVolumeUp:      {},
	CommandMediaVolumeDown:    {},
	CommandMediaVolumeSet:     {},
	CommandBoilerTempUp:       {},
	CommandBoilerTempDown:     {},
	CommandTVTogglePower:      {},
	CommandSpeakerTogglePower: {},
}

func ParseCommand(s string) (Command, bool) {
	c := Command(s)
	_, ok := commands[c]
	return c, ok
}

// NeedsValue reports whether the command carries a numeric argument.
func (c Command) NeedsValue() bool {
	return c == CommandLightSetBrightness || c == CommandMediaVolumeSet
}

// ServiceCall is one POST /api/services/{domain}/{service}.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}
