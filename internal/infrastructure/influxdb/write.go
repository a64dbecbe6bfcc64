package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// requestMeasurement is the measurement holding one point per dispatched request.
const requestMeasurement = "http_requests"

// RecordRequest writes one request to InfluxDB. Tags stay low cardinality:
// the view name rather than the concrete path, and the status class.
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) RecordRequest(view, method string, status int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		requestMeasurement,
		map[string]string{
			"view":         view,
			"method":       method,
			"status_class": statusClass(status),
		},
		map[string]interface{}{
			"status":      status,
			"duration_ms": float64(duration.Microseconds()) / 1000,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
