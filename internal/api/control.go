package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/farm-bridge/internal/control"
	"github.com/nerrad567/farm-bridge/internal/device"
)

// handleControl sends one actuator command to a device.
//
// The endpoint segment picks the actuator: dcpan, heater, humidifier and
// lighting take {"control": bool}; nutrient takes {"nutrient": number};
// pump takes {"water": number}. The response echoes the value sent.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	capability, err := control.ForEndpoint(chi.URLParam(r, "endpoint"))
	if err != nil {
		writeNotFound(w, "unknown control endpoint")
		return
	}

	deviceName := chi.URLParam(r, "deviceName")
	if strings.TrimSpace(deviceName) == "" {
		writeValidation(w, "deviceName must be a non-empty string")
		return
	}

	body, err := decodeObject(r.Body)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	key := capability.PayloadKey()
	value, err := capability.NormalizeValue(body[key])
	if err != nil {
		if capability.Switched() {
			writeValidation(w, key+" must be a boolean")
		} else {
			writeValidation(w, key+" must be a number")
		}
		return
	}

	rec, err := s.devices.GetDevice(ctx, ownerEmail(r), deviceName)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.writeDeviceError(w, "loading device", err)
		return
	}

	cmd := control.Command{DeviceID: rec.DeviceID, Capability: capability, Value: value}
	if err := s.commands.Send(ctx, cmd, s.bridgeCfg.CommandTimeout()); err != nil {
		s.writeCommandError(w, "sending the command to the device", err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{key: value})
}
