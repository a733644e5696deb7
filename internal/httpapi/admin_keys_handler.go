package httpapi

import (
	"errors"
	"net/http"
	"sort"

	"llm_compare/internal/middleware"
	"llm_compare/internal/models"
	"llm_compare/internal/queue"
	"llm_compare/internal/utils"
)

type setKeysRequest struct {
	Keys map[string]string `json:"keys"`
}

// KeyResult is the outcome of one credential change
type KeyResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type setKeysResponse struct {
	Results      map[string]KeyResult `json:"results"`
	Configured   []string             `json:"configured"`
	PersistError string               `json:"persist_error,omitempty"`
}

// handleSetKeys handles PUT /admin/keys. Each provider succeeds or fails on its own;
// an empty value removes the provider.
func (d *Dependencies) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	var req setKeysRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Keys) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "keys must not be empty")
		return
	}

	resp := setKeysResponse{Results: make(map[string]KeyResult, len(req.Keys))}
	keys := make(map[models.ProviderType]string, len(req.Keys))
	for name, value := range req.Keys {
		provider, err := models.ParseProviderType(name)
		if err != nil {
			resp.Results[name] = KeyResult{Error: err.Error()}
			continue
		}
		keys[provider] = value
	}

	if len(keys) > 0 {
		results, persistErr := d.Client.SetKeys(r.Context(), keys)
		for provider, err := range results {
			if err != nil {
				resp.Results[string(provider)] = KeyResult{Error: err.Error()}
				continue
			}
			resp.Results[string(provider)] = KeyResult{OK: true}
		}
		if persistErr != nil {
			resp.PersistError = persistErr.Error()
		}
	}

	adminID, _ := middleware.GetAdminID(r.Context())
	logger.Info("Provider keys updated", "admin", adminID, "providers", len(keys))

	resp.Configured = configuredNames(d.Client.MaskedKeys())
	status := http.StatusOK
	if resp.PersistError != "" {
		status = http.StatusInternalServerError
	}
	utils.RespondWithJSON(w, status, resp)
}

// handleListKeys handles GET /admin/keys and never returns a key in clear text
func (d *Dependencies) handleListKeys(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"keys": d.Client.MaskedKeys(),
	})
}

func (d *Dependencies) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if d.Queue == nil {
		utils.RespondWithError(w, http.StatusNotFound, "round history is disabled")
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := d.Queue.GetDeadLetterItems(r.Context(), limit)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pending, err := d.Queue.GetQueueLength(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pending":      pending,
		"dead_letters": items,
	})
}

func (d *Dependencies) handleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	if d.Queue == nil {
		utils.RespondWithError(w, http.StatusNotFound, "round history is disabled")
		return
	}

	id := r.PathValue("id")
	if err := d.Queue.RetryDeadLetterItem(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "dead letter item not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id, "status": "requeued"})
}

func configuredNames(keys map[models.ProviderType]string) []string {
	out := make([]string, 0, len(keys))
	for provider := range keys {
		out = append(out, string(provider))
	}
	sort.Strings(out)
	return out
}
