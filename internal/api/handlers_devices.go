package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hubgate/internal/application"
	"hubgate/internal/domain"
	"hubgate/internal/infra/homeassistant"
)

type deviceList struct {
	Devices []domain.UIDevice `json:"devices"`
	Areas   []string          `json:"areas"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	var (
		devices []domain.UIDevice
		err     error
	)
	switch r.URL.Query().Get("refresh") {
	case "background":
		devices, err = s.devices.Refresh(r.Context(), session.User.ID, session.Mode, true)
	case "fresh":
		devices, err = s.devices.Refresh(r.Context(), session.User.ID, session.Mode, false)
	case "":
		devices, err = s.devices.Devices(r.Context(), session.User.ID, session.Mode)
	default:
		err = domain.NewError(domain.KindInvalidInput, "Refresh must be background or fresh.")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if devices == nil {
		devices = []domain.UIDevice{}
	}
	areas := domain.AreaOptions(devices)
	if areas == nil {
		areas = []string{}
	}
	writeJSON(w, http.StatusOK, deviceList{Devices: devices, Areas: areas})
}

type actionView struct {
	Command domain.Command `json:"command"`
	Text    string         `json:"text"`
}

type deviceDetail struct {
	Device         domain.UIDevice   `json:"device"`
	PrimaryLabel   string            `json:"primaryLabel"`
	Detail         domain.DetailKind `json:"detail"`
	Action         *actionView       `json:"action,omitempty"`
	SecondaryText  string            `json:"secondaryText"`
	BrightnessPct  *int              `json:"brightnessPct,omitempty"`
	VolumePct      *float64          `json:"volumePct,omitempty"`
	LinkedSensors  []domain.UIDevice `json:"linkedSensors"`
	RelatedDevices []domain.UIDevice `json:"relatedDevices"`
}

func newDeviceDetail(devices []domain.UIDevice, d domain.UIDevice) deviceDetail {
	label := domain.PrimaryLabelOf(d)
	behavior := domain.BehaviorFor(label)

	detail := deviceDetail{
		Device:         d,
		PrimaryLabel:   label,
		Detail:         behavior.Detail,
		SecondaryText:  behavior.SecondaryText(d),
		LinkedSensors:  domain.LinkedSensors(devices, d),
		RelatedDevices: domain.RelatedDevices(devices, d),
	}
	if cmd, text, ok := behavior.PrimaryAction(d); ok {
		detail.Action = &actionView{Command: cmd, Text: text}
	}
	if pct, ok := domain.BrightnessPercent(d.Attributes); ok {
		detail.BrightnessPct = &pct
	}
	if behavior.Detail == domain.DetailMedia {
		vol := domain.VolumePercent(d.Attributes)
		detail.VolumePct = &vol
	}
	if detail.LinkedSensors == nil {
		detail.LinkedSensors = []domain.UIDevice{}
	}
	if detail.RelatedDevices == nil {
		detail.RelatedDevices = []domain.UIDevice{}
	}
	return detail
}

// visibleDevice finds entityID among the devices the session may see.
func (s *Server) visibleDevice(r *http.Request) ([]domain.UIDevice, domain.UIDevice, error) {
	session := sessionFrom(r.Context())
	devices, err := s.devices.Devices(r.Context(), session.User.ID, session.Mode)
	if err != nil {
		return nil, domain.UIDevice{}, err
	}
	device, ok := domain.FindDevice(devices, chi.URLParam(r, "entityID"))
	if !ok {
		return nil, domain.UIDevice{}, domain.NewError(domain.KindNotFound, domain.MsgDeviceNotFound)
	}
	return devices, device, nil
}

func (s *Server) handleDeviceDetail(w http.ResponseWriter, r *http.Request) {
	devices, device, err := s.visibleDevice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceDetail(devices, device))
}

type commandRequest struct {
	Command string   `json:"command"`
	Value   *float64 `json:"value"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session := sessionFrom(r.Context())
	err := s.commands.Dispatch(r.Context(), session.User.ID, session.Mode,
		domain.Command(req.Command), chi.URLParam(r, "entityID"), req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type overrideRequest struct {
	Name  *string `json:"name"`
	Area  *string `json:"area"`
	Label *string `json:"label"`
}

func (s *Server) handleSaveOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.settings.SaveOverride(r.Context(), sessionFrom(r.Context()).User.ID, application.OverrideEdit{
		EntityID: chi.URLParam(r, "entityID"),
		Name:     req.Name,
		Area:     req.Area,
		Label:    req.Label,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	bucket := domain.BucketDaily
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		parsed, ok := domain.ParseBucket(raw)
		if !ok {
			s.writeError(w, r, domain.NewError(domain.KindInvalidInput, "Choose a daily, weekly or monthly history."))
			return
		}
		bucket = parsed
	}

	session := sessionFrom(r.Context())
	result, err := s.history.FetchHistory(r.Context(), session.User.ID, session.Mode, chi.URLParam(r, "entityID"), bucket)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cameraResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	_, device, err := s.visibleDevice(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session := sessionFrom(r.Context())
	conn, err := s.settings.Connection(r.Context(), session.User.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handle, ok := conn.Handle(session.Mode)
	if !ok {
		s.writeError(w, r, domain.NewError(domain.KindConnectionMissing, domain.MsgConnectionNotConfigured))
		return
	}

	writeJSON(w, http.StatusOK, cameraResponse{URL: homeassistant.CameraSnapshotURL(handle, device.EntityID, s.now())})
}
