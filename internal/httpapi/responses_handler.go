package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"llm_compare/internal/models"
	"llm_compare/internal/multiclient"
	"llm_compare/internal/utils"

	"github.com/google/uuid"
)

type responsesRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt"`
}

type responsesResponse struct {
	RoundID    uuid.UUID                                 `json:"round_id"`
	DurationMS int64                                     `json:"duration_ms"`
	Models     map[models.ProviderType]string            `json:"models"`
	Responses  map[models.ProviderType]models.AIResponse `json:"responses"`
}

type setModelRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// handleResponses fans the prompt out to every configured provider and waits for all of them
func (d *Dependencies) handleResponses(w http.ResponseWriter, r *http.Request) {
	var req responsesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	round := d.Client.Dispatch(r.Context(), req.Prompt, req.SystemPrompt)
	utils.RespondWithJSON(w, http.StatusOK, responsesResponse{
		RoundID:    round.ID,
		DurationMS: round.Duration.Milliseconds(),
		Models:     round.Models,
		Responses:  round.Responses,
	})
}

// handleModels returns the model catalog, rebuilding it with ?refresh=true
func (d *Dependencies) handleModels(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "refresh must be true or false")
			return
		}
		refresh = parsed
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"models": d.Client.Models(r.Context(), refresh),
	})
}

func (d *Dependencies) handleGetCurrentModels(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"current_models": d.Client.CurrentModels(),
	})
}

func (d *Dependencies) handleSetCurrentModel(w http.ResponseWriter, r *http.Request) {
	var req setModelRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := models.ParseProviderType(req.Provider)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := d.Client.SetCurrentModel(r.Context(), provider, req.Model); err != nil {
		if errors.Is(err, multiclient.ErrEmptyModel) || errors.Is(err, multiclient.ErrUnknownProvider) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		// ErrPersistFailed: the selection is live but will not survive a restart
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"model":    req.Model,
	})
}

func (d *Dependencies) handleProviders(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": d.Client.Providers(),
	})
}
