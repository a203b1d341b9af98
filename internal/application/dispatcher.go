package application

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"hubgate/internal/domain"
	"hubgate/internal/metrics"
)

const defaultBoilerTemperature = 20.0

// Dispatcher translates UI commands into hub service calls.
type Dispatcher struct {
	resolver *ConnectionResolver
	hub      HubGateway
	catalog  DeviceCatalog
	logger   *slog.Logger
}

func NewDispatcher(resolver *ConnectionResolver, hub HubGateway, catalog DeviceCatalog, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		hub:      hub,
		catalog:  catalog,
		logger:   logger,
	}
}

// Dispatch validates the command before touching the network. value is only
// read by commands that need one. Tenants may only address entities in their
// own device list.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, mode domain.Mode, cmd domain.Command, entityID string, value *float64) error {
	err := d.dispatch(ctx, userID, mode, cmd, entityID, value)
	metrics.Commands.WithLabelValues(string(cmd), metrics.Outcome(err)).Inc()
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, userID int64, mode domain.Mode, cmd domain.Command, entityID string, value *float64) error {
	if err := validateCommand(cmd, entityID, value); err != nil {
		return err
	}

	relations, conn, err := d.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	handle, ok := conn.Handle(mode)
	if !ok {
		return domain.NewError(domain.KindConnectionMissing, domain.MsgConnectionNotConfigured)
	}
	if err := requireVisible(ctx, d.catalog, relations, mode, entityID); err != nil {
		return err
	}

	call, err := d.serviceCall(ctx, handle, cmd, entityID, value)
	if err != nil {
		return err
	}

	d.logger.Info("dispatching command",
		"user_id", userID,
		"command", cmd,
		"entity_id", entityID,
		"service", call.Domain+"."+call.Service,
	)

	return d.hub.InvokeService(ctx, handle, call)
}

func validateCommand(cmd domain.Command, entityID string, value *float64) error {
	if strings.TrimSpace(entityID) == "" {
		return domain.NewError(domain.KindInvalidInput, "Choose a device to control.")
	}
	if _, ok := domain.ParseCommand(string(cmd)); !ok {
		return domain.UnsupportedCommand(string(cmd))
	}
	if cmd.NeedsValue() && (value == nil || math.IsNaN(*value)) {
		return domain.NewError(domain.KindInvalidValue, domain.MsgCommandNeedsValue)
	}

	entityDomain := domain.EntityDomain(entityID)
	switch cmd {
	case domain.CommandLightSetBrightness:
		if entityDomain != "light" {
			return domain.UnsupportedCommand(string(cmd) + " on " + entityID)
		}
	case domain.CommandMediaVolumeSet:
		if entityDomain != "media_player" {
			return domain.UnsupportedCommand(string(cmd) + " on " + entityID)
		}
	}
	return nil
}

// serviceCall maps a command to one hub call. Toggles and temperature steps
// read the current state first so the call carries an absolute target.
func (d *Dispatcher) serviceCall(ctx context.Context, h domain.HubHandle, cmd domain.Command, entityID string, value *float64) (domain.ServiceCall, error) {
	target := map[string]any{"entity_id": entityID}

	switch cmd {
	case domain.CommandLightToggle:
		state, err := d.hub.FetchState(ctx, h, entityID)
		if err != nil {
			return domain.ServiceCall{}, err
		}
		if domain.EntityDomain(entityID) != "light" {
			return domain.ServiceCall{Domain: "homeassistant", Service: "toggle", Data: target}, nil
		}
		service := "turn_on"
		if strings.EqualFold(state.State, "on") {
			service = "turn_off"
		}
		return domain.ServiceCall{Domain: "light", Service: service, Data: target}, nil

	case domain.CommandLightSetBrightness:
		target["brightness_pct"] = int(math.Round(clamp(*value, 0, 100)))
		return domain.ServiceCall{Domain: "light", Service: "turn_on", Data: target}, nil

	case domain.CommandBlindOpen:
		return domain.ServiceCall{Domain: "cover", Service: "open_cover", Data: target}, nil

	case domain.CommandBlindClose:
		return domain.ServiceCall{Domain: "cover", Service: "close_cover", Data: target}, nil

	case domain.CommandMediaPlayPause:
		state, err := d.hub.FetchState(ctx, h, entityID)
		if err != nil {
			return domain.ServiceCall{}, err
		}
		service := "media_play"
		if strings.EqualFold(state.State, "playing") {
			service = "media_pause"
		}
		return domain.ServiceCall{Domain: "media_player", Service: service, Data: target}, nil

	case domain.CommandMediaNext:
		return domain.ServiceCall{Domain: "media_player", Service: "media_next_track", Data: target}, nil

	case domain.CommandMediaPrevious:
		return domain.ServiceCall{Domain: "media_player", Service: "media_previous_track", Data: target}, nil

	case domain.CommandMediaVolumeUp:
		return domain.ServiceCall{Domain: "media_player", Service: "volume_up", Data: target}, nil

	case domain.CommandMediaVolumeDown:
		return domain.ServiceCall{Domain: "media_player", Service: "volume_down", Data: target}, nil

	case domain.CommandMediaVolumeSet:
		target["volume_level"] = clamp(*value, 0, 100) / 100
		return domain.ServiceCall{Domain: "media_player", Service: "volume_set", Data: target}, nil

	case domain.CommandTVTogglePower, domain.CommandSpeakerTogglePower:
		state, err := d.hub.FetchState(ctx, h, entityID)
		if err != nil {
			return domain.ServiceCall{}, err
		}
		service := "turn_off"
		switch strings.ToLower(state.State) {
		case "off", "standby":
			service = "turn_on"
		}
		return domain.ServiceCall{Domain: "media_player", Service: service, Data: target}, nil

	case domain.CommandBoilerTempUp, domain.CommandBoilerTempDown:
		state, err := d.hub.FetchState(ctx, h, entityID)
		if err != nil {
			return domain.ServiceCall{}, err
		}
		current, ok := state.Attributes.Number("temperature")
		if !ok {
			current, ok = state.Attributes.Number("current_temperature")
		}
		if !ok {
			current = defaultBoilerTemperature
		}
		next := current + 1
		if cmd == domain.CommandBoilerTempDown {
			next = current - 1
		}
		target["temperature"] = next
		return domain.ServiceCall{Domain: "climate", Service: "set_temperature", Data: target}, nil
	}

	return domain.ServiceCall{}, domain.UnsupportedCommand(string(cmd))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
