package file

import (
	"path/filepath"
	"sync"
)

// Settings holds small user preferences that survive between invocations.
type Settings struct {
	DefaultLocationID string `json:"defaultLocationId,omitempty"`
}

// SettingsRepository persists user preferences such as the default location.
type SettingsRepository struct {
	path string
	mu   sync.Mutex
}

// NewSettingsRepository builds a settings repository rooted at dataDir.
func NewSettingsRepository(dataDir string) *SettingsRepository {
	return &SettingsRepository{path: filepath.Join(dataDir, "config.json")}
}

// Load returns the stored settings, zero-valued when none exist yet.
func (r *SettingsRepository) Load() (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var settings Settings
	if _, err := readJSON(r.path, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save durably replaces the stored settings.
func (r *SettingsRepository) Save(settings Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSONAtomic(r.path, settings)
}
