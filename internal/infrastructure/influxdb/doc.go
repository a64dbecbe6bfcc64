// Package influxdb records HTTP front door request metrics in InfluxDB.
//
// Each dispatched view request becomes one point in the http_requests
// measurement, tagged by view, method and status class. Writes are batched
// and non-blocking; asynchronous failures surface through SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordRequest("api:states", "GET", 200, 3*time.Millisecond)
package influxdb
