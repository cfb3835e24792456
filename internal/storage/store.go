package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pifleet/wifibridge/internal/domain"
)

// Store provides persistent file-based storage for agent state.
type Store struct {
	dataDir string
	mu      sync.RWMutex
}

// NewStore creates a Store rooted at dataDir, ensuring the directory exists.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &Store{dataDir: dataDir}, nil
}

// AgentID returns the persisted agent ID, generating one if it doesn't exist.
func (s *Store) AgentID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dataDir, "agent_id")
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("write agent id: %w", err)
	}
	return id, nil
}

// SaveLastResult persists the most recent session result so the status API
// can answer across restarts.
func (s *Store) SaveLastResult(result *domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session result: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dataDir, "last_result.json"), data, 0o600)
}

// LastResult loads the persisted session result, or nil if none exists.
func (s *Store) LastResult() (*domain.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(filepath.Join(s.dataDir, "last_result.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var result domain.SessionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal session result: %w", err)
	}
	return &result, nil
}
