package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llm_compare/internal/config"
	"llm_compare/internal/utils"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword     = "admin-password-123"
	testServiceToken = "service-token-12345"
)

func getTestConfig(t *testing.T) *config.Config {
	t.Helper()
	passwordHash, err := utils.HashPasswordArgon2(testPassword)
	require.NoError(t, err)
	tokenHash, err := utils.HashPasswordArgon2(testServiceToken)
	require.NoError(t, err)

	return &config.Config{
		JWTSecret: []byte("test-secret-key-for-testing"),
		Admin: config.AdminConfig{
			PasswordHash:     passwordHash,
			ServiceTokenHash: tokenHash,
			ServiceTokenRole: "viewer",
			TokenTTL:         time.Hour,
		},
	}
}

func TestGenerateAdminJWTWithPassword(t *testing.T) {
	cfg := getTestConfig(t)

	t.Run("valid credentials", func(t *testing.T) {
		token, exp, err := GenerateAdminJWTWithPassword(testPassword, cfg)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Greater(t, exp, time.Now().Unix())

		claims, err := ValidateAdminJWT(token, cfg)
		require.NoError(t, err)
		assert.Equal(t, AdminAuthTypeUser, claims.AuthType)
		assert.Equal(t, "admin", claims.AdminID)
		assert.Equal(t, []string{"admin"}, claims.Roles)
	})

	t.Run("invalid password", func(t *testing.T) {
		_, _, err := GenerateAdminJWTWithPassword("wrong-password", cfg)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("not configured", func(t *testing.T) {
		_, _, err := GenerateAdminJWTWithPassword(testPassword, &config.Config{JWTSecret: cfg.JWTSecret})
		assert.ErrorIs(t, err, ErrLoginNotConfigured)
	})
}

func TestGenerateAdminJWTWithToken(t *testing.T) {
	cfg := getTestConfig(t)

	token, _, err := GenerateAdminJWTWithToken(testServiceToken, cfg)
	require.NoError(t, err)

	claims, err := ValidateAdminJWT(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, AdminAuthTypeToken, claims.AuthType)
	assert.Equal(t, []string{"viewer"}, claims.Roles)

	_, _, err = GenerateAdminJWTWithToken("wrong-token", cfg)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGenerateAdminJWTRejectsInvalidRole(t *testing.T) {
	cfg := getTestConfig(t)
	_, _, err := GenerateAdminJWT("admin", AdminAuthTypeUser, []Role{"root"}, cfg)
	assert.Error(t, err)
}

func TestValidateAdminJWT(t *testing.T) {
	cfg := getTestConfig(t)

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := GenerateAdminJWT("admin", AdminAuthTypeUser, []Role{RoleAdmin}, cfg)
		require.NoError(t, err)

		other := *cfg
		other.JWTSecret = []byte("another-secret")
		_, err = ValidateAdminJWT(token, &other)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		claims := AdminClaims{
			AuthType: AdminAuthTypeUser,
			AdminID:  "admin",
			Roles:    []string{"admin"},
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.JWTSecret)
		require.NoError(t, err)

		_, err = ValidateAdminJWT(token, cfg)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{AdminID: "admin"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ValidateAdminJWT(token, cfg)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateAdminJWT("not-a-jwt", cfg)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleViewer))
	assert.True(t, RoleAdmin.HasPermission(RoleAdmin))
	assert.True(t, RoleViewer.HasPermission(RoleViewer))
	assert.False(t, RoleViewer.HasPermission(RoleAdmin))
	assert.False(t, Role("root").IsValid())
}

func TestLoginHandler(t *testing.T) {
	cfg := getTestConfig(t)
	handler := LoginHandler(cfg)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "password", body: `{"password":"` + testPassword + `"}`, wantStatus: http.StatusOK},
		{name: "service token", body: `{"token":"` + testServiceToken + `"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "empty body", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"password":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"user":"admin"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				var resp loginResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				_, err := ValidateAdminJWT(resp.Token, cfg)
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginHandlerNotConfigured(t *testing.T) {
	handler := LoginHandler(&config.Config{JWTSecret: []byte("secret")})
	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewBufferString(`{"password":"x"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
