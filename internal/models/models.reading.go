// FilePath: internal/models/models.reading.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Reading represents a single light measurement as stored.
type Reading struct {
	ID             int64     `json:"id" db:"id"`
	PatientID      string    `json:"patient_id" db:"patient_id"`
	SensorID       *int64    `json:"sensor_id" db:"sensor_id"`
	CapturedAt     time.Time `json:"captured_at" db:"captured_at"`
	LuxLevel       *float64  `json:"lux_level" db:"lux_level"`
	MelanopicEDI   *float64  `json:"melanopic_edi" db:"melanopic_edi"`
	DER            *float64  `json:"der" db:"der"`
	Illuminance    *float64  `json:"illuminance" db:"illuminance"`
	LightType      *string   `json:"light_type" db:"light_type"`
	ExposureScore  *float64  `json:"exposure_score" db:"exposure_score"`
	ActionRequired bool      `json:"action_required" db:"action_required"`
	// ServerStamped marks readings whose captured_at is the receipt time
	// because the producer did not send one.
	ServerStamped bool      `json:"server_stamped" db:"server_stamped"`
	ReceivedAt    time.Time `json:"received_at" db:"received_at"`
}

// AppendReadingRequest is the ingestion payload accepted over HTTP and MQTT.
// Older clients send the capture time as "timestamp".
type AppendReadingRequest struct {
	PatientID      string   `json:"patient_id"`
	SensorID       *int64   `json:"sensor_id"`
	LuxLevel       *float64 `json:"lux_level"`
	CapturedAt     *string  `json:"captured_at"`
	Timestamp      *string  `json:"timestamp"`
	MelanopicEDI   *float64 `json:"melanopic_edi"`
	DER            *float64 `json:"der"`
	Illuminance    *float64 `json:"illuminance"`
	LightType      *string  `json:"light_type"`
	ExposureScore  *float64 `json:"exposure_score"`
	ActionRequired FlexBool `json:"action_required"`
}

// CaptureTime returns the raw capture time sent by the producer, if any.
func (r *AppendReadingRequest) CaptureTime() string {
	if r.CapturedAt != nil && *r.CapturedAt != "" {
		return *r.CapturedAt
	}
	if r.Timestamp != nil {
		return *r.Timestamp
	}
	return ""
}

// BatteryStatusRequest is the battery report payload.
type BatteryStatusRequest struct {
	PatientID    string   `json:"patient_id"`
	SensorID     *int64   `json:"sensor_id"`
	BatteryLevel *float64 `json:"battery_level"`
}

// RegisterUseRequest binds a device to a patient.
type RegisterUseRequest struct {
	PatientID    string `json:"patient_id"`
	DeviceSerial string `json:"device_serial"`
}

// EndUseRequest closes the open session of a sensor.
type EndUseRequest struct {
	PatientID string `json:"patient_id"`
	SensorID  int64  `json:"sensor_id"`
	Status    string `json:"status"`
}

// FlexBool accepts JSON booleans as well as the 0/1 integers sent by
// firmware clients. null decodes to false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1", `"1"`, `"true"`:
		*b = true
		return nil
	case "false", "0", `"0"`, `"false"`, "null":
		*b = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("action_required must be a boolean or 0/1, got %s", string(data))
	}
	*b = n != 0
	return nil
}
