package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

const (
	secretService = "seedlink"
	tokenAccount  = "api_token"
	tokenEnv      = "SEEDLINK_API_TOKEN"
)

// GetAPIToken returns the bearer token guarding the management API,
// generating and storing one on first use.
func GetAPIToken() (string, error) {
	return apiTokenWith(keychainStore{})
}

func apiTokenWith(kc keychain) (string, error) {
	if tok := os.Getenv(tokenEnv); tok != "" {
		return tok, nil
	}
	if tok, err := kc.Get(secretService, tokenAccount); err == nil && tok != "" {
		return tok, nil
	}
	tok := uuid.New().String()
	if err := kc.Set(secretService, tokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
