package server

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// singleAnalysisRequest is the body of POST /analysis/single, grounded on
// original_source's AnalysisRequest (symbol plus a free-form params bag
// the opaque analysis function interprets).
type singleAnalysisRequest struct {
	Symbol string         `json:"stock_symbol"`
	Params map[string]any `json:"params,omitempty"`
}

func (s *Server) handleAnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	var req singleAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}
	if req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "stock_symbol is required")
		return
	}

	taskID, err := s.orch.CreateTask(r.Context(), userID(r), req.Symbol, req.Params)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", req.Symbol).Msg("failed to create analysis task")
		s.writeError(w, http.StatusInternalServerError, "TASK_CREATE_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "status": "queued"})
}

// batchAnalysisRequest is the body of POST /analysis/batch. MAX_BATCH_SIZE
// (10) is enforced inside orchestrator.CreateBatch.
type batchAnalysisRequest struct {
	Symbols []string       `json:"stock_symbols"`
	Params  map[string]any `json:"params,omitempty"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}

	batchID, taskIDs, mapping, err := s.orch.CreateBatch(r.Context(), userID(r), req.Symbols, req.Params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BATCH", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID, "task_ids": taskIDs, "tasks": mapping,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	view, err := s.orch.GetStatus(r.Context(), taskID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			s.writeError(w, http.StatusNotFound, "TASK_NOT_FOUND", "no such task")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "STATUS_LOOKUP_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	view, err := s.orch.GetResult(r.Context(), taskID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			s.writeError(w, http.StatusNotFound, "RESULT_NOT_FOUND", "no result available for this task")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "RESULT_LOOKUP_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	if err := s.orch.Cancel(r.Context(), taskID, userID(r)); err != nil {
		s.writeError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "status": "cancelled"})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")
	if err := s.orch.Delete(r.Context(), taskID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleZombieTasks is the SUPPLEMENTED FEATURES admin diagnostic: list
// visibility leases the sweeper hasn't reclaimed yet, alongside overall
// queue depth.
func (s *Server) handleZombieTasks(w http.ResponseWriter, r *http.Request) {
	zombies, err := s.queue.ListZombies(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "ZOMBIE_SCAN_FAILED", err.Error())
		return
	}
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"zombies": zombies,
		"queue": map[string]any{
			"queued": stats.Queued, "processing": stats.Processing,
			"completed": stats.Completed, "failed": stats.Failed,
		},
	})
}
