package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordFiring writes one point per automation firing. The trigger tag is
// reduced to its kind (the part before the first colon) to keep tag
// cardinality low; the full description goes in a field.
//
// Implements the engine's TelemetryWriter interface. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) RecordFiring(automationID, trigger string, duration time.Duration, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"automation_firings",
		map[string]string{
			"automation_id": automationID,
			"trigger_kind":  triggerKind(trigger),
		},
		map[string]interface{}{
			"trigger":     trigger,
			"duration_ms": duration.Milliseconds(),
			"success":     success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceMetric records a numeric device state property, used for
// graphing sensor values over time.
func (c *Client) WriteDeviceMetric(deviceID, property string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id": deviceID,
			"property":  property,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// triggerKind extracts the kind from a trigger description like
// "interval:300s" or "manual:api".
func triggerKind(trigger string) string {
	if i := strings.Index(trigger, ":"); i > 0 {
		return trigger[:i]
	}
	return trigger
}
