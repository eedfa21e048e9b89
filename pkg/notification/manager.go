package notification

import (
	"sync"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"go.uber.org/zap"
)

// SettingsManager holds the settings for the session. Storage failures are
// logged and never returned: the in-memory value always wins.
type SettingsManager struct {
	store     SettingsStore
	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// NewSettingsManager loads the stored settings once, falling back to
// DefaultSettings when nothing is stored or the store fails
func NewSettingsManager(store SettingsStore) *SettingsManager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &SettingsManager{store: store, current: DefaultSettings()}

	settings, found, err := store.Load()
	switch {
	case err != nil:
		logger.Warn("load notification settings failed, using defaults", zap.Error(err))
	case !found:
		logger.Debug("no stored notification settings, using defaults")
	case settings.Validate() != nil:
		logger.Warn("stored notification settings invalid, using defaults", zap.Error(settings.Validate()))
	default:
		m.current = settings
	}
	return m
}

// Get returns a copy of the current settings
func (m *SettingsManager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update validates and applies settings, then persists them. Only invalid
// input is reported back.
func (m *SettingsManager) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	m.set(settings)
	m.persist(settings)
	return nil
}

// Reset restores and persists the defaults
func (m *SettingsManager) Reset() Settings {
	settings := DefaultSettings()
	m.set(settings)
	m.persist(settings)
	logger.Info("notification settings reset to defaults")
	return settings
}

// Apply takes settings changed outside the process without writing back
func (m *SettingsManager) Apply(settings Settings) {
	if err := settings.Validate(); err != nil {
		logger.Warn("ignoring invalid external notification settings", zap.Error(err))
		return
	}
	if m.Get() == settings {
		return
	}
	m.set(settings)
	logger.Info("notification settings reloaded")
}

// OnChange registers a listener called after every change
func (m *SettingsManager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *SettingsManager) set(settings Settings) {
	m.mu.Lock()
	m.current = settings
	listeners := append([]func(Settings){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
}

func (m *SettingsManager) persist(settings Settings) {
	if err := m.store.Save(settings); err != nil {
		logger.Warn("persist notification settings failed, keeping in-memory value", zap.Error(err))
	}
}
