package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SecretStore keeps API keys out of the main configuration files. It is a
// plain JSON file written with owner-only permissions; a platform keychain
// could replace it behind the same three methods.
type SecretStore struct {
	path string
}

// NewSecretStore returns a store backed by the file at path.
func NewSecretStore(path string) *SecretStore {
	return &SecretStore{path: path}
}

// Get returns the secret stored under name, or "" when none is stored.
func (s *SecretStore) Get(name string) (string, error) {
	secrets, err := s.load()
	if err != nil {
		return "", err
	}
	return secrets[name], nil
}

// Set stores value under name.
func (s *SecretStore) Set(name, value string) error {
	secrets, err := s.load()
	if err != nil {
		return err
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	secrets[name] = value
	return s.save(secrets)
}

// Delete removes the secret stored under name, if any.
func (s *SecretStore) Delete(name string) error {
	secrets, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := secrets[name]; !ok {
		return nil
	}
	delete(secrets, name)
	return s.save(secrets)
}

func (s *SecretStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return secrets, nil
}

func (s *SecretStore) save(secrets map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	// Owner-only: this file holds credentials.
	return os.WriteFile(s.path, data, 0o600)
}
