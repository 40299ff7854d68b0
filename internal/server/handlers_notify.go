package server

import (
	"net/http"
	"strconv"

	"github.com/marketpulse/ingestor/internal/notify"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "X-User-Id header is required")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	res, err := s.notify.List(r.Context(), uid, notify.ListParams{
		Status: q.Get("status"), Type: q.Get("type"), Page: page, PageSize: pageSize,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "X-User-Id header is required")
		return
	}
	count, err := s.notify.UnreadCount(r.Context(), uid)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "COUNT_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"unread_count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "X-User-Id header is required")
		return
	}
	ok, err := s.notify.MarkRead(r.Context(), uid, urlParam(r, "notificationID"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "MARK_READ_FAILED", err.Error())
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "no such notification")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "X-User-Id header is required")
		return
	}
	n, err := s.notify.MarkAllRead(r.Context(), uid)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "MARK_ALL_READ_FAILED", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}
