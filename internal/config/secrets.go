package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	pipelineKeyAccount = "pipeline_api_key"
	apiTokenAccount    = "api_token"
)

// SecretStore keeps values that must not live in the plain config file.
type SecretStore interface {
	Get(account string) (string, error)
	Set(account, value string) error
}

// fileSecrets is a 0600 JSON file under the data directory.
type fileSecrets struct {
	path string
}

// NewSecrets returns the secrets file store at
// $XDG_DATA_HOME/trajectory/secrets.json.
func NewSecrets() SecretStore {
	return fileSecrets{path: filepath.Join(defaultDataDir(), "secrets.json")}
}

func (s fileSecrets) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s fileSecrets) Get(account string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	val, ok := secrets[account]
	if !ok {
		return "", fmt.Errorf("secret %q not found", account)
	}
	return val, nil
}

func (s fileSecrets) Set(account, value string) error {
	secrets, err := s.read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// GetAPIToken returns the bearer token guarding the HTTP API, generating and
// storing one on first use.
func GetAPIToken(s SecretStore) (string, error) {
	if tok, err := s.Get(apiTokenAccount); err == nil && tok != "" {
		return tok, nil
	}
	tok := uuid.NewString()
	if err := s.Set(apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}

// SetPipelineKey stores the analysis pipeline API key in s.
func SetPipelineKey(s SecretStore, key string) error {
	if key == "" {
		return fmt.Errorf("pipeline API key must not be empty")
	}
	return s.Set(pipelineKeyAccount, key)
}
