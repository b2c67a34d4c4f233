package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const (
	defaultOffset = 0
	defaultLimit  = 20
	maxLimit      = 50
)

// listPlayers handles GET /api/rankings/players?offset=&limit=. It returns
// one ranking-ordered page of the current snapshot with pagination metadata,
// 400 for invalid parameters, or 500 with detail on a store failure.
func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.ListPlayers(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list players failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch players")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"players": page.Players,
		"pagination": map[string]any{
			"offset":         offset,
			"limit":          limit,
			"total_count":    page.TotalCount,
			"returned_count": page.ReturnedCount,
			"has_more":       page.HasMore,
			"next_offset":    page.NextOffset,
		},
	})
}

func parsePagination(r *http.Request) (offset, limit int, err error) {
	offset, err = queryInt(r, "offset", defaultOffset)
	if err != nil {
		return 0, 0, err
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must be non-negative")
	}

	limit, err = queryInt(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > maxLimit {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	return offset, limit, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
