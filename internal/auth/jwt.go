package auth

import (
	"fmt"
	"time"

	"llm_compare/internal/config"
	"llm_compare/internal/utils"

	"github.com/golang-jwt/jwt/v4"
)

// AdminAuthType records how an admin token was obtained
type AdminAuthType string

const (
	AdminAuthTypeUser  AdminAuthType = "password"
	AdminAuthTypeToken AdminAuthType = "service_token"
)

const (
	adminIssuer       = "llm_compare"
	defaultAdminToken = time.Hour
)

// AdminClaims are the claims carried by admin JWTs
type AdminClaims struct {
	AuthType AdminAuthType `json:"auth_type"`
	AdminID  string        `json:"admin_id"`
	Roles    []string      `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT signs a token for the given identity and roles
func GenerateAdminJWT(adminID string, authType AdminAuthType, roles []Role, cfg *config.Config) (string, int64, error) {
	ttl := cfg.Admin.TokenTTL
	if ttl <= 0 {
		ttl = defaultAdminToken
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.IsValid() {
			return "", 0, fmt.Errorf("invalid role %q", r)
		}
		roleNames = append(roleNames, r.String())
	}

	claims := AdminClaims{
		AuthType: authType,
		AdminID:  adminID,
		Roles:    roleNames,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(cfg.JWTSecret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expiresAt.Unix(), nil
}

// GenerateAdminJWTWithPassword checks the admin password and issues an admin-role token
func GenerateAdminJWTWithPassword(password string, cfg *config.Config) (string, int64, error) {
	if cfg.Admin.PasswordHash == "" {
		return "", 0, ErrLoginNotConfigured
	}
	ok, err := utils.VerifyPasswordArgon2(password, cfg.Admin.PasswordHash)
	if err != nil {
		return "", 0, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", 0, ErrInvalidCredentials
	}
	return GenerateAdminJWT("admin", AdminAuthTypeUser, []Role{RoleAdmin}, cfg)
}

// GenerateAdminJWTWithToken checks a service token and issues a token with the
// configured service role
func GenerateAdminJWTWithToken(rawToken string, cfg *config.Config) (string, int64, error) {
	if cfg.Admin.ServiceTokenHash == "" {
		return "", 0, ErrLoginNotConfigured
	}
	ok, err := utils.VerifyPasswordArgon2(rawToken, cfg.Admin.ServiceTokenHash)
	if err != nil {
		return "", 0, fmt.Errorf("failed to verify token: %w", err)
	}
	if !ok {
		return "", 0, ErrInvalidCredentials
	}
	role := Role(cfg.Admin.ServiceTokenRole)
	if role == "" {
		role = RoleViewer
	}
	return GenerateAdminJWT("service", AdminAuthTypeToken, []Role{role}, cfg)
}

// ValidateAdminJWT verifies the signature and expiry of an admin token
func ValidateAdminJWT(tokenString string, cfg *config.Config) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
