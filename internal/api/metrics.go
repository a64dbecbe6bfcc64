package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Bans          BanMetrics      `json:"bans"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BanMetrics summarises the ban tracker.
type BanMetrics struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
	Banned    int  `json:"banned"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, connection and ban statistics.
func (s *Server) handleMetrics(_ *http.Request, _ map[string]string) (any, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.mu.Lock()
	started := s.startTime
	s.mu.Unlock()

	metrics := SystemMetrics{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}
	if !started.IsZero() {
		metrics.UptimeSeconds = int64(time.Since(started).Seconds())
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.bans != nil {
		metrics.Bans = BanMetrics{
			Enabled:   true,
			Threshold: s.bans.Threshold(),
			Banned:    len(s.bans.Bans()),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	return JSON(metrics, http.StatusOK)
}
