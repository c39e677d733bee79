package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFeederMetric writes a single feeder telemetry measurement to InfluxDB.
//
// This is the primary method for recording telemetry snapshots arriving on
// feeder/info. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - source: Feeder device identifier (e.g., "feeder-pond-01")
//   - measurement: The metric name (e.g., "hopper_level", "battery_voltage")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteFeederMetric("feeder-pond-01", "hopper_level", 72.5)
//	client.WriteFeederMetric("feeder-pond-01", "battery_voltage", 12.1)
func (c *Client) WriteFeederMetric(source string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feeder_metrics",
		map[string]string{
			"source":      source,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFeedEvent records a feed run observed on feeder/control.
//
// Used for tracking how much and how often each feeder dispenses.
//
// Parameters:
//   - source: Feeder device identifier
//   - origin: Where the run came from ("device" for scheduled/manual firmware
//     runs, "App" for client-triggered runs relayed by Core)
//   - portion: Portion size dispensed
func (c *Client) WriteFeedEvent(source string, origin string, portion float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feed_events",
		map[string]string{
			"source": source,
			"origin": origin,
		},
		map[string]interface{}{
			"portion": portion,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
