package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/plaf203-core/internal/storage"
)

// handleListFeedLog returns recorded feeds, newest first.
//
// Query parameters:
//   - phase: start or end
//   - since: RFC3339 timestamp
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListFeedLog(w http.ResponseWriter, r *http.Request) {
	if s.feedLog == nil {
		writeNotFound(w, "feed log not available")
		return
	}

	q := r.URL.Query()
	filter := storage.FeedLogFilter{Phase: q.Get("phase")}
	if filter.Phase != "" && filter.Phase != storage.PhaseStart && filter.Phase != storage.PhaseEnd {
		writeBadRequest(w, "phase must be start or end")
		return
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	page, err := s.feedLog.ListFeeds(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing feed log failed", "error", err)
		writeInternalError(w, "failed to list feed log")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
