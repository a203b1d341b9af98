package application

import (
	"strings"

	"hubgate/internal/domain"
)

// EnrichDevices merges hub states with template metadata. States without
// metadata keep empty area, device id and labels.
func EnrichDevices(states []domain.RawDeviceState, meta []domain.DeviceMetadata) []domain.EnrichedDevice {
	byEntity := make(map[string]domain.DeviceMetadata, len(meta))
	for _, m := range meta {
		byEntity[m.EntityID] = m
	}

	devices := make([]domain.EnrichedDevice, 0, len(states))
	for _, state := range states {
		entityDomain := state.Domain()
		m := byEntity[state.EntityID]

		labels := make([]string, 0, len(m.Labels))
		for _, l := range m.Labels {
			if l != "" {
				labels = append(labels, l)
			}
		}

		category, ok := domain.Classify(labels)
		if !ok {
			category, _ = domain.Classify([]string{entityDomain})
		}

		name := state.EntityID
		if friendly, ok := state.Attributes.String("friendly_name"); ok && friendly != "" {
			name = friendly
		}

		devices = append(devices, domain.EnrichedDevice{
			EntityID:      state.EntityID,
			DeviceID:      deref(m.DeviceID),
			Name:          name,
			State:         state.State,
			AreaName:      deref(m.AreaName),
			Labels:        labels,
			LabelCategory: category,
			Domain:        entityDomain,
			Attributes:    state.Attributes,
		})
	}

	return devices
}

// ApplyOverrides builds fresh UI devices, letting admin overrides win over
// hub-reported name, area and label.
func ApplyOverrides(devices []domain.EnrichedDevice, overrides []domain.DeviceOverride) []domain.UIDevice {
	byEntity := make(map[string]domain.DeviceOverride, len(overrides))
	for _, o := range overrides {
		byEntity[o.EntityID] = o
	}

	out := make([]domain.UIDevice, 0, len(devices))
	for _, d := range devices {
		name := d.Name
		area := d.AreaName
		labels := append([]string{}, d.Labels...)
		overrideLabel := ""

		if o, ok := byEntity[d.EntityID]; ok {
			if v, ok := o.NameValue(); ok {
				name = v
			}
			if v, ok := o.AreaValue(); ok {
				area = v
			}
			if v, ok := o.LabelValue(); ok {
				overrideLabel = v
				labels = []string{v}
			}
		}

		category, ok := domain.Classify(labels)
		if !ok {
			category = d.LabelCategory
		}

		primary := overrideLabel
		if primary == "" && len(labels) > 0 {
			primary = labels[0]
		}
		if primary == "" {
			primary = category
		}
		if primary == "" {
			primary = domain.LabelOther
		}

		out = append(out, domain.UIDevice{
			EntityID:      d.EntityID,
			DeviceID:      d.DeviceID,
			Name:          name,
			State:         d.State,
			Area:          area,
			Label:         primary,
			LabelCategory: category,
			Labels:        labels,
			Domain:        d.Domain,
			Attributes:    d.Attributes.Clone(),
		})
	}

	return out
}

// FilterForTenant keeps devices whose area was granted. Devices without an
// area are never visible to tenants.
func FilterForTenant(devices []domain.UIDevice, allowed map[string]struct{}) []domain.UIDevice {
	out := make([]domain.UIDevice, 0, len(devices))
	for _, d := range devices {
		area := strings.TrimSpace(d.Area)
		if area == "" {
			continue
		}
		if _, ok := allowed[area]; ok {
			out = append(out, d)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
