// Package settings persists small application-level key/value documents in a
// single JSON file under the data directory: the task configuration, the AI
// provider credentials, the saved login state and the browser binary path.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"feedac/internal/config"
	"feedac/internal/logging"
)

// Well-known keys.
const (
	KeyAuthState       = "auth"
	KeyFeedSettings    = "feedAcSetting"
	KeyAISettings      = "aiSettings"
	KeyBrowserExecPath = "browserExecPath"
)

// AISettings selects the judgment provider and its credentials.
type AISettings struct {
	Platform string `json:"platform"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

// Store is a JSON-file-backed key/value document store. All operations
// rewrite the whole file; the documents are small and writes are rare.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns a store rooted at <data-dir>/settings.json, creating the data
// directory if needed.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{path: filepath.Join(dataDir, "settings.json")}, nil
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	return doc, nil
}

func (s *Store) save(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get unmarshals the value stored under key into out. Returns (false, nil)
// when the key is absent.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	doc[key] = raw
	logging.StoreDebug("settings: set %s (%d bytes)", key, len(raw))
	return s.save(doc)
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.save(doc)
}

// FeedSettings loads the task configuration, migrating legacy documents to
// the current shape on the way out. Absent key yields the defaults. The
// migrated form is written back so the upgrade happens once.
func (s *Store) FeedSettings() (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return config.Settings{}, err
	}
	raw, ok := doc[KeyFeedSettings]
	if !ok {
		return config.Default(), nil
	}

	version := config.DetectVersion(raw)
	cfg, err := config.Migrate(raw)
	if err != nil {
		return config.Settings{}, fmt.Errorf("migrate task configuration: %w", err)
	}
	if version != config.VersionV2 {
		logging.Get(logging.CategoryBoot).Info("migrated task configuration from %s", version)
		out, err := json.Marshal(cfg)
		if err != nil {
			return config.Settings{}, err
		}
		doc[KeyFeedSettings] = out
		if err := s.save(doc); err != nil {
			return config.Settings{}, err
		}
	}
	return cfg, nil
}

// SaveFeedSettings validates and stores the task configuration.
func (s *Store) SaveFeedSettings(cfg config.Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.Set(KeyFeedSettings, cfg)
}

// AIConfig loads the provider selection. Absent key yields (zero, false).
func (s *Store) AIConfig() (AISettings, bool, error) {
	var ai AISettings
	ok, err := s.Get(KeyAISettings, &ai)
	return ai, ok, err
}

// BrowserExecPath returns the configured browser binary path, or "" when the
// bundled lookup should be used.
func (s *Store) BrowserExecPath() string {
	var p string
	if ok, err := s.Get(KeyBrowserExecPath, &p); err != nil || !ok {
		return ""
	}
	return p
}
