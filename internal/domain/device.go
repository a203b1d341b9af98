package domain

import (
	"sort"
	"strings"
)

// RawDeviceState is one entity as reported by GET /api/states.
type RawDeviceState struct {
	EntityID   string     `json:"entity_id"`
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
}

func (s RawDeviceState) Domain() string {
	return EntityDomain(s.EntityID)
}

// EntityDomain returns the part of an entity id before the first dot.
func EntityDomain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}

// DeviceMetadata is the per-entity registry data rendered by the hub template.
type DeviceMetadata struct {
	EntityID string   `json:"entity_id"`
	AreaName *string  `json:"area_name"`
	DeviceID *string  `json:"device_id"`
	Labels   []string `json:"labels"`
}

// EnrichedDevice is a hub state merged with its metadata, before overrides.
type EnrichedDevice struct {
	EntityID      string
	DeviceID      string
	Name          string
	State         string
	AreaName      string
	Labels        []string
	LabelCategory string
	Domain        string
	Attributes    Attributes
}

// DeviceOverride is the admin-authored replacement of hub display metadata.
type DeviceOverride struct {
	ID           int64   `json:"id"`
	ConnectionID int64   `json:"haConnectionId"`
	EntityID     string  `json:"entityId"`
	Name         *string `json:"name"`
	Area         *string `json:"area"`
	Label        *string `json:"label"`
}

func overrideField(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

func (o DeviceOverride) NameValue() (string, bool)  { return overrideField(o.Name) }
func (o DeviceOverride) AreaValue() (string, bool)  { return overrideField(o.Area) }
func (o DeviceOverride) LabelValue() (string, bool) { return overrideField(o.Label) }

// UIDevice is the reconciled device handed to the UI. It is rebuilt on every
// synchronization and never mutated afterwards.
type UIDevice struct {
	EntityID      string     `json:"entityId"`
	DeviceID      string     `json:"deviceId,omitempty"`
	Name          string     `json:"name"`
	State         string     `json:"state"`
	Area          string     `json:"area,omitempty"`
	Label         string     `json:"label"`
	LabelCategory string     `json:"labelCategory,omitempty"`
	Labels        []string   `json:"labels"`
	Domain        string     `json:"domain"`
	Attributes    Attributes `json:"attributes"`
}

func (d UIDevice) Clone() UIDevice {
	out := d
	out.Labels = append([]string(nil), d.Labels...)
	out.Attributes = d.Attributes.Clone()
	return out
}

func CloneDevices(devices []UIDevice) []UIDevice {
	if devices == nil {
		return nil
	}
	out := make([]UIDevice, len(devices))
	for i, d := range devices {
		out[i] = d.Clone()
	}
	return out
}

func (d UIDevice) IsSensor() bool  { return IsSensor(d.LabelCategory, d.State) }
func (d UIDevice) IsPrimary() bool { return IsPrimary(d.LabelCategory, d.State) }

// LinkedSensors returns the sensors that share device's hub device id.
func LinkedSensors(devices []UIDevice, device UIDevice) []UIDevice {
	if device.DeviceID == "" {
		return nil
	}
	var out []UIDevice
	for _, d := range devices {
		if d.DeviceID == device.DeviceID && d.EntityID != device.EntityID && d.IsSensor() {
			out = append(out, d.Clone())
		}
	}
	return out
}

// RelatedDevices groups every Home Security device together so one camera
// view can show them all. Other labels have no related devices.
func RelatedDevices(devices []UIDevice, device UIDevice) []UIDevice {
	if PrimaryLabelOf(device) != LabelHomeSecurity {
		return nil
	}
	var out []UIDevice
	for _, d := range devices {
		if PrimaryLabelOf(d) == LabelHomeSecurity {
			out = append(out, d.Clone())
		}
	}
	return out
}

func AreaOptions(devices []UIDevice) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range devices {
		area := strings.TrimSpace(d.Area)
		if area == "" {
			continue
		}
		if _, ok := seen[area]; ok {
			continue
		}
		seen[area] = struct{}{}
		out = append(out, area)
	}
	sort.Strings(out)
	return out
}

func FindDevice(devices []UIDevice, entityID string) (UIDevice, bool) {
	for _, d := range devices {
		if d.EntityID == entityID {
			return d.Clone(), true
		}
	}
	return UIDevice{}, false
}
