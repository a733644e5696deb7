package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"llm_compare/internal/storage"
	"llm_compare/internal/utils"

	"github.com/google/uuid"
)

const maxListLimit = 1000

var logger = utils.NewLogger("httpapi")

func parseLimit(r *http.Request, defaultLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// handleListRounds returns the most recent round records, newest first
func (d *Dependencies) handleListRounds(w http.ResponseWriter, r *http.Request) {
	if d.History == nil {
		utils.RespondWithError(w, http.StatusNotFound, "round history is not stored in a database")
		return
	}
	limit, err := parseLimit(r, 50)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := d.History.ListRecent(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list rounds", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list rounds")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// handleGetRound returns every provider record of one round
func (d *Dependencies) handleGetRound(w http.ResponseWriter, r *http.Request) {
	if d.History == nil {
		utils.RespondWithError(w, http.StatusNotFound, "round history is not stored in a database")
		return
	}
	roundID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid round ID")
		return
	}

	records, err := d.History.GetByRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, storage.ErrRoundNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Round not found")
			return
		}
		logger.Error("Failed to load round", "round_id", roundID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load round")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"round_id": roundID,
		"records":  records,
	})
}
