package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/peterbitar/wealthyrabbit/internal/database"
)

// SystemHandlers serves health and system statistics endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	db          *database.DB
	startupTime time.Time
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(log zerolog.Logger, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handlers", "system").Logger(),
		db:          db,
		startupTime: time.Now(),
	}
}

// HandleHealth handles GET /health.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.db.Conn().PingContext(r.Context()); err != nil {
		status = "degraded"
		h.log.Warn().Err(err).Msg("Health check: database ping failed")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleStats handles GET /api/system/stats.
func (h *SystemHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.systemUsage()

	stats := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramPercent,
	}

	if dbStats, err := h.db.GetStats(); err == nil {
		stats["db_size_bytes"] = dbStats.SizeBytes
		stats["db_wal_bytes"] = dbStats.WALSizeBytes
	}

	writeJSON(w, http.StatusOK, stats)
}

// systemUsage samples CPU briefly (100ms keeps the endpoint snappy) and
// reads memory instantly.
func (h *SystemHandlers) systemUsage() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
