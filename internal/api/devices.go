package api

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicesim/internal/device"
	"github.com/nerrad567/devicesim/internal/fleet"
)

// maxCreateCount bounds how many devices one request may create.
const maxCreateCount = 500

// deviceView is the JSON representation of a simulated device.
type deviceView struct {
	Serial              string         `json:"serial"`
	Kind                string         `json:"kind"`
	Capability          string         `json:"capability"`
	Powered             bool           `json:"powered"`
	Estado              string         `json:"estado"`
	Parameters          map[string]any `json:"parameters"`
	Injected            []string       `json:"injected,omitempty"`
	SendIntervalSeconds float64        `json:"send_interval_seconds"`
	Running             bool           `json:"running"`
	BackendID           string         `json:"backend_id,omitempty"`
	IrrigationEndsAt    *time.Time     `json:"irrigation_ends_at,omitempty"`
}

func newDeviceView(d *device.Device) deviceView {
	snap := d.Snapshot()
	v := deviceView{
		Serial:              snap.Serial,
		Kind:                string(snap.Kind),
		Capability:          string(snap.Capability),
		Powered:             snap.Powered,
		Estado:              snap.Estado,
		Parameters:          snap.Parameters,
		Injected:            slices.Sorted(slices.Values(snap.Injected)),
		SendIntervalSeconds: snap.SendInterval.Seconds(),
		Running:             snap.Running,
		BackendID:           snap.BackendID.String(),
	}
	if !snap.IrrigationEnd.IsZero() {
		end := snap.IrrigationEnd.UTC()
		v.IrrigationEndsAt = &end
	}
	return v
}

// createDevicesRequest is the body of POST /devices.
type createDevicesRequest struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
	Serial   string `json:"serial"`
	Start    bool   `json:"start"`
}

// powerRequest is the body of POST /devices/{serial}/power.
type powerRequest struct {
	On *bool `json:"on"`
}

// parameterRequest is the body of PUT /devices/{serial}/parameters/{name}.
type parameterRequest struct {
	Value any `json:"value"`
}

// handleListDevices returns every device, sorted by serial.
//
// Query parameters:
//   - kind: filter by device kind (light, fan, ...)
//   - estado: filter by derived estado (activo, inactivo)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	estado := r.URL.Query().Get("estado")

	views := make([]deviceView, 0, s.manager.Len())
	for _, d := range s.manager.List() {
		v := newDeviceView(d)
		if kind != "" && v.Kind != kind {
			continue
		}
		if estado != "" && v.Estado != estado {
			continue
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by serial.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleCreateDevices creates devices from a template.
func (s *Server) handleCreateDevices(w http.ResponseWriter, r *http.Request) {
	var req createDevicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Template == "" {
		writeBadRequest(w, "template is required")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count > maxCreateCount {
		writeBadRequest(w, "count exceeds maximum")
		return
	}

	tpl, err := s.templates.Get(req.Template)
	if err != nil {
		writeNotFound(w, "template not found")
		return
	}

	created, err := s.manager.CreateFromTemplate(tpl, req.Count, req.Serial)
	switch {
	case errors.Is(err, fleet.ErrDeviceExists):
		writeConflict(w, "device already exists")
		return
	case errors.Is(err, fleet.ErrInvalidCount):
		writeBadRequest(w, "count must be at least 1")
		return
	case err != nil:
		s.logger.Error("creating devices failed", "template", req.Template, "error", err)
		writeInternalError(w, "failed to create devices")
		return
	}

	views := make([]deviceView, 0, len(created))
	for _, d := range created {
		if req.Start {
			d.Start(s.devCtx)
		}
		views = append(views, newDeviceView(d))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"devices": views, "count": len(views)})
}

// handleDeleteDevice stops and removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if err := s.manager.Remove(serial); err != nil {
		if errors.Is(err, fleet.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to remove device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetParameter overwrites one parameter. Out-of-range numbers are
// frozen until set back inside range.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req parameterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := chi.URLParam(r, "name")
	if err := d.SetParameter(name, req.Value); err != nil {
		if errors.Is(err, device.ErrUnknownParameter) {
			writeNotFound(w, "parameter not found")
			return
		}
		writeInternalError(w, "failed to set parameter")
		return
	}

	s.logger.Info("parameter set via API", "serial", d.Serial(), "parameter", name)
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleSetParameters overwrites several parameters; unknown names are ignored.
func (s *Server) handleSetParameters(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(values) == 0 {
		writeBadRequest(w, "no parameters given")
		return
	}

	d.SetParameters(values)
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleSetPower overrides the device's power state.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		writeBadRequest(w, `body must be {"on": true|false}`)
		return
	}

	if *req.On {
		d.PowerOn()
	} else {
		d.PowerOff()
	}
	s.logger.Info("power set via API", "serial", d.Serial(), "on", *req.On)
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleStartDevice starts a device's loops. Starting a running device is a no-op.
func (s *Server) handleStartDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	d.Start(s.devCtx)
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleStopDevice stops a device's loops. Stopping a stopped device is a no-op.
func (s *Server) handleStopDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	d.Stop()
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleListTemplates returns the loaded templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	type templateView struct {
		Key          string   `json:"key"`
		Name         string   `json:"name"`
		SerialPrefix string   `json:"serial_prefix"`
		Kind         string   `json:"kind"`
		Capability   string   `json:"capability"`
		Parameters   []string `json:"parameters"`
	}

	views := make([]templateView, 0, len(s.templates))
	for _, key := range s.templates.Names() {
		t := s.templates[key]
		kind, capability := device.ResolveKind(t.Kind, t.Capability, t.SerialPrefix)
		views = append(views, templateView{
			Key:          key,
			Name:         t.Name,
			SerialPrefix: t.SerialPrefix,
			Kind:         string(kind),
			Capability:   string(capability),
			Parameters:   slices.Sorted(maps.Keys(t.Parameters)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": views, "count": len(views)})
}

// lookupDevice resolves {serial}, writing a 404 when it is unknown.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	d, err := s.manager.Get(chi.URLParam(r, "serial"))
	if err != nil {
		writeNotFound(w, "device not found")
		return nil, false
	}
	return d, true
}
