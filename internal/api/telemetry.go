package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/farm-bridge/internal/correlation"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

// realtimeView is a live reading with values fixed to two decimals.
type realtimeView struct {
	DeviceName   string `json:"deviceName"`
	Temperature  string `json:"temperature"`
	Humidity     string `json:"humidity"`
	SoilMoisture string `json:"soilMoisture"`
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// handleRealtime waits for the next live reading from one of the caller's
// devices, or from ?deviceName= only. Readings from other growers'
// devices on the shared topic are skipped; 408 when nothing arrives in time.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerEmail(r)
	deviceName := r.URL.Query().Get("deviceName")

	if deviceName != "" {
		if _, err := s.devices.GetDevice(ctx, owner, deviceName); err != nil {
			s.writeDeviceError(w, "loading device", err)
			return
		}
	} else {
		records, err := s.devices.ListDevices(ctx, owner)
		if err != nil {
			s.writeDeviceError(w, "listing devices", err)
			return
		}
		if len(records) == 0 {
			writeNotFound(w, "no registered devices")
			return
		}
	}

	live, err := s.realtime.Await(ctx, owner, deviceName, s.bridgeCfg.RealtimeTimeout())
	switch {
	case err == nil:
	case errors.Is(err, correlation.ErrTimeout):
		writeTimeout(w, "no data from the device in time, please try again")
		return
	case errors.Is(err, context.Canceled):
		// Caller went away; the wait already deregistered itself.
		return
	default:
		s.logger.Error("realtime wait failed", "owner", owner, "error", err)
		writeInternalError(w, "failed to read data from the device")
		return
	}

	writeData(w, http.StatusOK, realtimeView{
		DeviceName:   live.Device.DeviceName,
		Temperature:  fixed2(live.Reading.Temperature),
		Humidity:     fixed2(live.Reading.Humidity),
		SoilMoisture: fixed2(live.Reading.SoilMoisture),
	})
}

// handleGraph returns one attribute's day and week history for a device.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	attr, err := telemetry.ParseAttribute(chi.URLParam(r, "attribute"))
	if err != nil {
		writeNotFound(w, "unknown attribute")
		return
	}

	g, err := telemetry.LoadGraph(r.Context(), s.samples, ownerEmail(r), chi.URLParam(r, "deviceName"), attr, s.now())
	if err != nil {
		if errors.Is(err, telemetry.ErrNoTelemetry) {
			writeNotFound(w, "no data for this device")
			return
		}
		s.logger.Error("loading graph failed", "error", err)
		writeInternalError(w, "failed to load graph data")
		return
	}
	writeData(w, http.StatusOK, g)
}
