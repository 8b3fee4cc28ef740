package device

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"ABCDEF123456", false},
		{"abcdef123456", false},
		{"  ABCDEF123456  ", false},
		{"", true},
		{"   ", true},
		{"ABCDEF12345", true},
		{"ABCDEF1234567", true},
	}

	for _, tt := range tests {
		err := ValidateDeviceID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDeviceID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidDeviceID) {
			t.Errorf("ValidateDeviceID(%q) error = %v, want ErrInvalidDeviceID", tt.id, err)
		}
	}
}

func TestNormalizeDeviceID(t *testing.T) {
	if got := NormalizeDeviceID(" abcDEF123456 "); got != "ABCDEF123456" {
		t.Errorf("NormalizeDeviceID() = %q", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "greenhouse-1", false},
		{"empty", "", true},
		{"whitespace", "  ", true},
		{"too long", strings.Repeat("a", maxNameLength+1), true},
		{"max length", strings.Repeat("a", maxNameLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateName(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	valid := testRecord("a@example.com", "ABCDEF123456", "n").Thresholds
	if err := ValidateThresholds(valid); err != nil {
		t.Errorf("ValidateThresholds(valid) error = %v", err)
	}

	inverted := valid
	inverted.MinHumidity, inverted.MaxHumidity = 80, 20
	if err := ValidateThresholds(inverted); err != nil {
		t.Errorf("ValidateThresholds(inverted) error = %v", err)
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		th := valid
		th.MaxSoilMoisture = bad
		if err := ValidateThresholds(th); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("ValidateThresholds(%v) error = %v, want ErrInvalidThreshold", bad, err)
		}
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		want   error
	}{
		{"valid", func(*Record) {}, nil},
		{"missing owner", func(r *Record) { r.OwnerEmail = "" }, ErrInvalidDevice},
		{"short id", func(r *Record) { r.DeviceID = "ABC" }, ErrInvalidDeviceID},
		{"empty name", func(r *Record) { r.DeviceName = "" }, ErrInvalidName},
		{"empty plant", func(r *Record) { r.PlantName = " " }, ErrInvalidPlantName},
		{"nan threshold", func(r *Record) { r.MinTemperature = math.NaN() }, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("alice@example.com", "ABCDEF123456", "greenhouse-1")
			tt.mutate(rec)
			if err := ValidateRecord(rec); !errors.Is(err, tt.want) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := ValidateRecord(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("ValidateRecord(nil) error = %v", err)
	}
}
