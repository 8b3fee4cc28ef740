package device

import "time"

// Thresholds are the alarm bounds a device enforces locally. They are
// pushed to the device over the bus and kept here for display.
type Thresholds struct {
	MinTemperature  float64 `json:"minTemperature"`
	MaxTemperature  float64 `json:"maxTemperature"`
	MinHumidity     float64 `json:"minHumidity"`
	MaxHumidity     float64 `json:"maxHumidity"`
	MinSoilMoisture float64 `json:"minSoilMoisture"`
	MaxSoilMoisture float64 `json:"maxSoilMoisture"`
}

// Record is a grower's registration of one physical device.
// This matches the devices table in migrations/20261001_000000_initial_schema.up.sql.
//
// DeviceID and DeviceName are immutable after creation and unique per owner.
type Record struct {
	OwnerEmail string `json:"email"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	PlantName  string `json:"plantName"`

	Thresholds

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Copy returns an independent copy of the record.
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
