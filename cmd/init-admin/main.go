package main

import (
	"fmt"
	"os"
	"strings"

	"llm_compare/internal/storage"
	"llm_compare/internal/utils"
)

func main() {
	fmt.Println("LLM Compare - Admin Secrets Initialization")
	fmt.Println(strings.Repeat("=", 50))

	// Get bootstrap password from environment
	password := os.Getenv("ADMIN_BOOTSTRAP_PASSWORD")
	if password == "" {
		fmt.Fprintf(os.Stderr, "ERROR: ADMIN_BOOTSTRAP_PASSWORD must be set\n")
		os.Exit(1)
	}

	// Validate password strength (basic check)
	if len(password) < 8 {
		fmt.Fprintf(os.Stderr, "ERROR: Password must be at least 8 characters long\n")
		os.Exit(1)
	}

	secrets, err := generateSecrets(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAdd the following lines to your environment (or .env file):")
	fmt.Println(strings.Repeat("-", 50))
	for _, line := range secrets.envLines() {
		fmt.Println(line)
	}
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("\nService token (shown once, send as {\"token\": ...} to /admin/auth/login):\n%s\n", secrets.ServiceToken)
	fmt.Println("\nFor security, you should now:")
	fmt.Println("1. Remove ADMIN_BOOTSTRAP_PASSWORD from your environment")
	fmt.Println("2. Store the service token in your secret manager")
	fmt.Println("3. Keep ENCRYPTION_KEY stable: stored provider keys cannot be read without it")
}

type adminSecrets struct {
	EncryptionKey    string
	JWTSecret        string
	PasswordHash     string
	ServiceToken     string
	ServiceTokenHash string
}

func generateSecrets(password string) (*adminSecrets, error) {
	var (
		s   adminSecrets
		err error
	)

	// AES-256 key for the postgres and redis key stores
	if s.EncryptionKey, err = storage.GenerateKey(32); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if s.JWTSecret, err = utils.GenerateToken(32); err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	fmt.Println("Hashing password using Argon2...")
	if s.PasswordHash, err = utils.HashPasswordArgon2(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if s.ServiceToken, err = utils.GenerateToken(32); err != nil {
		return nil, fmt.Errorf("failed to generate service token: %w", err)
	}
	if s.ServiceTokenHash, err = utils.HashPasswordArgon2(s.ServiceToken); err != nil {
		return nil, fmt.Errorf("failed to hash service token: %w", err)
	}
	return &s, nil
}

// envLines quotes the argon2 hashes since they contain '$'
func (s *adminSecrets) envLines() []string {
	return []string{
		"ENCRYPTION_KEY=" + s.EncryptionKey,
		"JWT_SECRET=" + s.JWTSecret,
		fmt.Sprintf("ADMIN_PASSWORD_HASH='%s'", s.PasswordHash),
		fmt.Sprintf("ADMIN_SERVICE_TOKEN_HASH='%s'", s.ServiceTokenHash),
	}
}
