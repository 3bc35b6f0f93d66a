// Package docs registers the OpenAPI description of the lumen hub API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {"get": {"tags": ["system"], "summary": "Health check", "responses": {"200": {"description": "OK"}, "503": {"description": "Degraded"}}}},
        "/metrics": {"get": {"tags": ["system"], "summary": "Prometheus metrics", "responses": {"200": {"description": "OK"}}}},
        "/sensors/light-data": {"post": {"tags": ["sensors"], "summary": "Append a light reading", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "reading", "required": true, "schema": {"$ref": "#/definitions/models.AppendReadingRequest"}}],
            "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}, "503": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/sensors/battery-status": {"post": {"tags": ["sensors"], "summary": "Append a battery status", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "status", "required": true, "schema": {"$ref": "#/definitions/models.BatteryStatusRequest"}}],
            "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/sensors/register-use": {"post": {"tags": ["sensors"], "summary": "Register sensor use", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "registration", "required": true, "schema": {"$ref": "#/definitions/models.RegisterUseRequest"}}],
            "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}, "409": {"description": "Contended, retry", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/sensors/end-use": {"post": {"tags": ["sensors"], "summary": "End sensor use", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "end", "required": true, "schema": {"$ref": "#/definitions/models.EndUseRequest"}}],
            "responses": {"200": {"description": "Acknowledged"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/sensors/by-serial": {"get": {"tags": ["sensors"], "summary": "Look up a sensor by device serial", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "device_serial", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown serial", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/patients/{patient_id}/sessions": {"get": {"tags": ["patients"], "summary": "List sensor sessions", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "patient_id", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/patients/{patient_id}/lightdata": {"get": {"tags": ["patients"], "summary": "List raw readings", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "patient_id", "type": "string", "required": true}, {"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"}, {"in": "query", "name": "timeout", "type": "string"}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}, "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/patients/{patient_id}/lightdata/all": {"get": {"tags": ["patients"], "summary": "Full reading history", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "patient_id", "type": "string", "required": true}, {"in": "query", "name": "timeout", "type": "string"}],
            "responses": {"200": {"description": "OK"}, "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/patients/{patient_id}/lightdata/aggregate": {"get": {"tags": ["patients"], "summary": "Aggregate readings", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "patient_id", "type": "string", "required": true}, {"in": "query", "name": "granularity", "type": "string", "required": true, "enum": ["hourly", "daily", "weekly", "monthly"]}, {"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"}, {"in": "query", "name": "at", "type": "string"}, {"in": "query", "name": "timeout", "type": "string"}],
            "responses": {"200": {"description": "Complete grid, no_data set when empty"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}, "503": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}, "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/errors.APIError"}}}}},
        "/patients/{patient_id}/lightdata/{granularity}/export.xlsx": {"get": {"tags": ["patients"], "summary": "Export an aggregate grid", "security": [{"BearerAuth": []}],
            "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
            "parameters": [{"in": "path", "name": "patient_id", "type": "string", "required": true}, {"in": "path", "name": "granularity", "type": "string", "required": true}, {"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"}, {"in": "query", "name": "at", "type": "string"}],
            "responses": {"200": {"description": "Workbook", "schema": {"type": "file"}}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/errors.APIError"}}}}}
    },
    "definitions": {
        "errors.APIError": {"type": "object", "properties": {
            "type": {"type": "string"}, "message": {"type": "string"}, "code": {"type": "integer"},
            "retryable": {"type": "boolean"}, "request_id": {"type": "string"}, "details": {"type": "object"}}},
        "models.AppendReadingRequest": {"type": "object", "required": ["patient_id"], "properties": {
            "patient_id": {"type": "string"}, "sensor_id": {"type": "integer"}, "lux_level": {"type": "number"},
            "captured_at": {"type": "string"}, "timestamp": {"type": "string"}, "melanopic_edi": {"type": "number"},
            "der": {"type": "number"}, "illuminance": {"type": "number"}, "light_type": {"type": "string"},
            "exposure_score": {"type": "number"}, "action_required": {"type": "boolean"}}},
        "models.BatteryStatusRequest": {"type": "object", "required": ["patient_id", "battery_level"], "properties": {
            "patient_id": {"type": "string"}, "sensor_id": {"type": "integer"}, "battery_level": {"type": "number"}}},
        "models.RegisterUseRequest": {"type": "object", "required": ["patient_id", "device_serial"], "properties": {
            "patient_id": {"type": "string"}, "device_serial": {"type": "string"}}},
        "models.EndUseRequest": {"type": "object", "required": ["patient_id", "sensor_id"], "properties": {
            "patient_id": {"type": "string"}, "sensor_id": {"type": "integer"}, "status": {"type": "string", "enum": ["manual", "auto_closed"]}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Lumen Hub API",
	Description:      "Light exposure sensor hub: readings, sensor sessions and bucketed aggregates.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
