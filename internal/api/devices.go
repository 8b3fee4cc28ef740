package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/control"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

// deviceView is a record as shown to its owner.
type deviceView struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	PlantName  string `json:"plantName"`
	device.Thresholds
}

func viewOf(rec *device.Record) deviceView {
	return deviceView{
		DeviceID:   rec.DeviceID,
		DeviceName: rec.DeviceName,
		PlantName:  rec.PlantName,
		Thresholds: rec.Thresholds,
	}
}

// settingsView is the result of a threshold update.
type settingsView struct {
	PlantName string `json:"plantName"`
	device.Thresholds
}

// handleCreateDevice registers a device and pushes its thresholds to it.
//
// Body: deviceId, deviceName, plantName and the six thresholds, which may
// be numbers or numeric strings. Thresholds are published before the
// record is stored, so a device that cannot be reached is not registered.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerEmail(r)

	body, err := decodeObject(r.Body)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	deviceID, _ := body["deviceId"].(string)
	if err := device.ValidateDeviceID(deviceID); err != nil {
		writeValidation(w, fmt.Sprintf("deviceId must be a %d character string", device.DeviceIDLength))
		return
	}
	deviceName, _ := body["deviceName"].(string)
	if err := device.ValidateName(deviceName); err != nil {
		writeValidation(w, "deviceName must be a non-empty string")
		return
	}
	plantName, _ := body["plantName"].(string)
	if err := device.ValidatePlantName(plantName); err != nil {
		writeValidation(w, "plantName must be a non-empty string")
		return
	}
	thresholds, err := thresholdsFrom(body)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	existing, err := s.devices.ListDevices(ctx, owner)
	if err != nil {
		s.logger.Error("listing devices failed", "owner", owner, "error", err)
		writeInternalError(w, "failed to register device")
		return
	}
	for _, rec := range existing {
		if rec.DeviceID == device.NormalizeDeviceID(deviceID) {
			writeBadRequest(w, "device already registered")
			return
		}
		if rec.DeviceName == deviceName {
			writeBadRequest(w, "device name already in use")
			return
		}
	}

	if err := s.thresholds.PublishInitial(ctx, owner, thresholds, s.bridgeCfg.CommandTimeout()); err != nil {
		s.writeCommandError(w, "sending thresholds to the device", err)
		return
	}

	rec := &device.Record{
		OwnerEmail: owner,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		PlantName:  plantName,
		Thresholds: thresholds,
	}
	if err := s.devices.CreateDevice(ctx, rec); err != nil {
		s.writeDeviceError(w, "registering device", err)
		return
	}

	writeData(w, http.StatusCreated, viewOf(rec))
}

// handleUpdateDevice changes the plant name and thresholds of a device.
// An unknown device is a bad request rather than 404.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerEmail(r)
	deviceName := chi.URLParam(r, "deviceName")

	if _, err := s.devices.GetDevice(ctx, owner, deviceName); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeBadRequest(w, "device does not exist")
			return
		}
		s.writeDeviceError(w, "loading device", err)
		return
	}

	body, err := decodeObject(r.Body)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	plantName, _ := body["plantName"].(string)
	if err := device.ValidatePlantName(plantName); err != nil {
		writeValidation(w, "plantName must be a non-empty string")
		return
	}
	thresholds, err := thresholdsFrom(body)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	if err := s.thresholds.PublishModified(ctx, thresholds, s.bridgeCfg.CommandTimeout()); err != nil {
		s.writeCommandError(w, "sending thresholds to the device", err)
		return
	}

	rec := &device.Record{
		OwnerEmail: owner,
		DeviceName: deviceName,
		PlantName:  plantName,
		Thresholds: thresholds,
	}
	if err := s.devices.UpdateDevice(ctx, rec); err != nil {
		s.writeDeviceError(w, "updating device", err)
		return
	}

	writeData(w, http.StatusOK, settingsView{PlantName: rec.PlantName, Thresholds: rec.Thresholds})
}

// handleListDevices returns the names of the caller's devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerEmail(r)

	if s.accounts != nil {
		if _, err := account.RequireActive(ctx, s.accounts, owner); err != nil {
			switch {
			case errors.Is(err, account.ErrAccountInactive):
				writeBadRequest(w, "account has been withdrawn")
			case errors.Is(err, account.ErrAccountNotFound):
				writeBadRequest(w, "account not found")
			default:
				s.logger.Error("loading account failed", "owner", owner, "error", err)
				writeInternalError(w, "failed to list devices")
			}
			return
		}
	}

	records, err := s.devices.ListDevices(ctx, owner)
	if err != nil {
		s.writeDeviceError(w, "listing devices", err)
		return
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.DeviceName)
	}
	writeData(w, http.StatusOK, names)
}

// handleGetDevice returns one device's settings.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	rec, err := s.devices.GetDevice(r.Context(), ownerEmail(r), chi.URLParam(r, "deviceName"))
	if err != nil {
		s.writeDeviceError(w, "loading device", err)
		return
	}
	writeData(w, http.StatusOK, viewOf(rec))
}

// handleDeleteDevice removes a device and its telemetry history.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.DeleteDevice(r.Context(), ownerEmail(r), chi.URLParam(r, "deviceName")); err != nil {
		s.writeDeviceError(w, "deleting device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckPlant returns the caller's full device records.
func (s *Server) handleCheckPlant(w http.ResponseWriter, r *http.Request) {
	records, err := s.devices.ListDevices(r.Context(), ownerEmail(r))
	if err != nil {
		s.writeDeviceError(w, "listing devices", err)
		return
	}
	if records == nil {
		records = []device.Record{}
	}
	writeData(w, http.StatusOK, records)
}

// writeDeviceError maps device errors to responses. Anything unexpected
// is logged and reported without detail.
func (s *Server) writeDeviceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrDeviceExists):
		writeBadRequest(w, "device already registered")
	case errors.Is(err, device.ErrDeviceNameTaken):
		writeBadRequest(w, "device name already in use")
	case errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, device.ErrInvalidDeviceID),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidPlantName),
		errors.Is(err, device.ErrInvalidThreshold):
		writeValidation(w, err.Error())
	default:
		s.logger.Error(action+" failed", "error", err)
		writeInternalError(w, action+" failed")
	}
}

// writeCommandError maps bus publish failures to 408 or 500.
func (s *Server) writeCommandError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, control.ErrTimeout) {
		writeTimeout(w, action+" took too long, please try again")
		return
	}
	s.logger.Error(action+" failed", "error", err)
	writeInternalError(w, action+" failed, please try again")
}

// decodeObject reads a JSON object, keeping numbers as json.Number.
func decodeObject(r io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return telemetry.DecodeObject(raw)
}

// thresholdsFrom reads the six bounds, each a number or numeric string.
func thresholdsFrom(body map[string]any) (device.Thresholds, error) {
	var t device.Thresholds
	fields := []struct {
		key string
		dst *float64
	}{
		{"minTemperature", &t.MinTemperature},
		{"maxTemperature", &t.MaxTemperature},
		{"minHumidity", &t.MinHumidity},
		{"maxHumidity", &t.MaxHumidity},
		{"minSoilMoisture", &t.MinSoilMoisture},
		{"maxSoilMoisture", &t.MaxSoilMoisture},
	}
	for _, f := range fields {
		v, ok := telemetry.ParseNumber(body[f.key])
		if !ok {
			return device.Thresholds{}, fmt.Errorf("%s must be a number", f.key)
		}
		*f.dst = v
	}
	return t, nil
}
