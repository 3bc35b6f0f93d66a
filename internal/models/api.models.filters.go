package models

// AggregateQuery holds the raw query parameters of an aggregate request.
// Values stay strings so that parsing failures surface as validation errors.
type AggregateQuery struct {
	Granularity string `schema:"granularity"`
	From        string `schema:"from"`
	To          string `schema:"to"`
	At          string `schema:"at"`
	Timeout     string `schema:"timeout"`
}

// ReadingsQuery holds the raw query parameters of a reading listing.
type ReadingsQuery struct {
	From    string `schema:"from"`
	To      string `schema:"to"`
	Timeout string `schema:"timeout"`
}

// SensorLookupQuery selects a sensor by its device serial.
type SensorLookupQuery struct {
	DeviceSerial string `schema:"device_serial"`
}
