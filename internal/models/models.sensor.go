// FilePath: internal/models/models.sensor.go
package models

import "time"

type SensorType string

const (
	SensorTypeLight SensorType = "light"
)

// SessionStatus is the lifecycle state of a sensor session row.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionAutoClosed SessionStatus = "auto_closed"
	SessionManual     SessionStatus = "manual"
)

// IsClosing reports whether s may be used to end a session.
func (s SessionStatus) IsClosing() bool {
	return s == SessionManual || s == SessionAutoClosed
}

// Sensor is the logical sensor record of a patient. patient_id is unique.
type Sensor struct {
	ID           int64      `json:"id" db:"id" readxs:"*" writexs:"*"`
	PatientID    string     `json:"patient_id" db:"patient_id" readxs:"*" writexs:"*"`
	DeviceSerial string     `json:"device_serial,omitempty" db:"device_serial" readxs:"clinician,admin,system" writexs:"clinician,admin,system"`
	SensorType   SensorType `json:"sensor_type" db:"sensor_type" readxs:"*" writexs:"*"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at" readxs:"*" writexs:"*"`
}

// SensorSession is one logging session of a sensor against a patient.
type SensorSession struct {
	ID        int64         `json:"id" db:"id"`
	SensorID  int64         `json:"sensor_id" db:"sensor_id"`
	PatientID string        `json:"patient_id" db:"patient_id"`
	StartedAt time.Time     `json:"started_at" db:"started_at"`
	EndedAt   *time.Time    `json:"ended_at" db:"ended_at"`
	Status    SessionStatus `json:"status" db:"status"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *SensorSession) IsOpen() bool {
	return s.EndedAt == nil
}

// SessionTransition is the outcome of a registerUse call.
type SessionTransition struct {
	SensorID      int64   `json:"sensor_id"`
	SessionID     int64   `json:"session_id"`
	AutoClosedIDs []int64 `json:"auto_closed_session_ids,omitempty"`
	SensorCreated bool    `json:"sensor_created"`
}

// BatteryStatus is a battery level report sent alongside light readings.
type BatteryStatus struct {
	ID           int64     `json:"id" db:"id"`
	PatientID    string    `json:"patient_id" db:"patient_id"`
	SensorID     *int64    `json:"sensor_id" db:"sensor_id"`
	BatteryLevel float64   `json:"battery_level" db:"battery_level"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}
