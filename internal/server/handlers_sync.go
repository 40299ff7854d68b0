package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.mongodb.org/mongo-driver/bson"
)

// handleMultiSourceBasicsRun triggers the multi-source stock basics
// ingestion job, grounded on original_source's
// /sync/multi-source/stock_basics/run endpoint: force and
// preferred_sources are both optional query parameters, and the run
// happens in the background — the HTTP call only kicks it off.
func (s *Server) handleMultiSourceBasicsRun(w http.ResponseWriter, r *http.Request) {
	if s.multiSourceBasics == nil {
		s.writeError(w, http.StatusServiceUnavailable, "JOB_NOT_CONFIGURED", "multi-source basics sync is not wired")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	var preferred []string
	if raw := r.URL.Query().Get("preferred_sources"); raw != "" {
		preferred = strings.Split(raw, ",")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.multiSourceBasics.Run(ctx, force, preferred); err != nil {
			s.log.Error().Err(err).Msg("multi-source basics sync failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "force": force, "preferred_sources": preferred})
}

// handleMultiSourceStatus reports the last-run outcome for the
// stock_basics_multi job plus host resource usage (SUPPLEMENTED FEATURES
// item 4, grounded on the teacher's gopsutil-based system_handlers.go).
func (s *Server) handleMultiSourceStatus(w http.ResponseWriter, r *http.Request) {
	var status struct {
		Job          string     `bson:"job" json:"job"`
		Status       string     `bson:"status" json:"status"`
		Source       string     `bson:"source,omitempty" json:"source,omitempty"`
		RecordsCount int        `bson:"records_count" json:"records_count"`
		ErrorCount   int        `bson:"error_count" json:"error_count"`
		ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
		StartedAt    time.Time  `bson:"started_at" json:"started_at"`
		FinishedAt   *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	}
	err := s.store.SyncStatuses().FindOne(r.Context(), bson.M{"job": "stock_basics_multi"}).Decode(&status)
	if err != nil {
		status.Job = "stock_basics_multi"
		status.Status = "idle"
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sync_status": status,
		"host":        hostMetrics(s.log),
	})
}

// hostMetrics samples CPU and memory the way the teacher's
// system_handlers.go does: cpu.Percent over a short window, mem.VirtualMemory
// for RAM, both best-effort (errors are logged and zeroed, never fatal).
func hostMetrics(log zerolog.Logger) map[string]any {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read CPU usage")
		cpuPercent = []float64{0}
	}
	memStat, err := mem.VirtualMemory()
	var memUsedPercent float64
	var memTotalMB, memUsedMB uint64
	if err != nil {
		log.Warn().Err(err).Msg("failed to read memory usage")
	} else {
		memUsedPercent = memStat.UsedPercent
		memTotalMB = memStat.Total / (1024 * 1024)
		memUsedMB = memStat.Used / (1024 * 1024)
	}
	return map[string]any{
		"cpu_percent":      cpuPercent[0],
		"mem_used_percent": memUsedPercent,
		"mem_total_mb":     memTotalMB,
		"mem_used_mb":      memUsedMB,
	}
}

// handleTestSources probes every configured provider adapter's
// Availability and reports latency, a connectivity check
// original_source exposes so operators can see which sources are live
// without running a real sync.
func (s *Server) handleTestSources(w http.ResponseWriter, r *http.Request) {
	if s.dsManager == nil {
		s.writeError(w, http.StatusServiceUnavailable, "MANAGER_NOT_CONFIGURED", "datasource manager is not wired")
		return
	}
	results := make([]map[string]any, 0)
	for _, a := range s.dsManager.Adapters() {
		start := time.Now()
		info := a.Availability(r.Context())
		results = append(results, map[string]any{
			"source":      a.Name(),
			"available":   info.Available,
			"provenance":  info.Provenance,
			"latency_ms":  time.Since(start).Milliseconds(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": results})
}
