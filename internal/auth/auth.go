package auth

import (
	"errors"
	"net/http"

	"llm_compare/internal/config"
	"llm_compare/internal/utils"
)

type loginRequest struct {
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
	Exp   int64  `json:"exp"`
}

// LoginHandler exchanges the admin password or a service token for an admin JWT
func LoginHandler(cfg *config.Config) http.HandlerFunc {
	logger := utils.NewLogger("auth")

	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		var (
			token string
			exp   int64
			err   error
		)
		switch {
		case req.Password != "":
			token, exp, err = GenerateAdminJWTWithPassword(req.Password, cfg)
		case req.Token != "":
			token, exp, err = GenerateAdminJWTWithToken(req.Token, cfg)
		default:
			utils.RespondWithError(w, http.StatusBadRequest, "password or token is required")
			return
		}

		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				logger.Warn("Admin login rejected", "remote", r.RemoteAddr)
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			case errors.Is(err, ErrLoginNotConfigured):
				utils.RespondWithError(w, http.StatusServiceUnavailable, "Admin login is not configured")
			default:
				logger.Error("Admin login failed", "error", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Error generating token")
			}
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, Exp: exp})
	}
}
