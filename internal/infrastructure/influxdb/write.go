package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementTelemetry is the measurement every mirrored sample is written to.
const MeasurementTelemetry = "telemetry"

// Reading is one stored telemetry sample as seen by the mirror.
type Reading struct {
	OwnerEmail   string
	DeviceID     string
	DeviceName   string
	PlantName    string
	Temperature  float64
	Humidity     float64
	SoilMoisture float64
	RecordedAt   time.Time
}

// WriteReading queues a telemetry point. It never blocks and silently
// drops the point once the client is closed.
//
//	client.WriteReading(influxdb.Reading{DeviceID: "ABCDEF123456", Temperature: 21.5, ...})
func (c *Client) WriteReading(r Reading) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(r))
}

// readingPoint tags by owner and device so per-owner dashboards stay cheap;
// plant name is a field because owners rename plants.
func readingPoint(r Reading) *write.Point {
	ts := r.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementTelemetry,
		map[string]string{
			"owner":       r.OwnerEmail,
			"device_id":   r.DeviceID,
			"device_name": r.DeviceName,
		},
		map[string]interface{}{
			"temperature":   r.Temperature,
			"humidity":      r.Humidity,
			"soil_moisture": r.SoilMoisture,
			"plant_name":    r.PlantName,
		},
		ts,
	)
}
