// Package influxdb records firing telemetry to an InfluxDB v2 server.
//
// The integration is optional: when disabled in config the engine simply
// runs without a telemetry writer. Writes are batched and non-blocking,
// with async errors surfaced through SetOnError.
package influxdb
