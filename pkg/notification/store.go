package notification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
)

// DefaultWatchDebounce coalesces the burst of events an editor save produces
const DefaultWatchDebounce = 100 * time.Millisecond

// SettingsStore persists settings. found is false when nothing is stored yet.
type SettingsStore interface {
	Load() (settings Settings, found bool, err error)
	Save(settings Settings) error
}

// MemoryStore keeps settings for the process lifetime only
type MemoryStore struct {
	mu       sync.Mutex
	settings *Settings
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return Settings{}, false, nil
	}
	return *m.settings, true, nil
}

func (m *MemoryStore) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &settings
	return nil
}

// FileStore keeps settings as a JSON document on disk
type FileStore struct {
	path     string
	debounce time.Duration
	mu       sync.Mutex
}

// NewFileStore creates a store at path; the file is created on first Save
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, debounce: DefaultWatchDebounce}
}

// Path returns the settings file location
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the file. Keys missing from the document keep their defaults.
func (f *FileStore) Load() (Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, false, fmt.Errorf("decode settings %s: %w", f.path, err)
	}
	return settings, true, nil
}

// Save writes the file atomically through a temp file and rename
func (f *FileStore) Save(settings Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Watch calls onChange with the reloaded settings whenever the file is
// written by someone else, until ctx is done. The parent directory is
// watched so atomic replace-by-rename is seen.
func (f *FileStore) Watch(ctx context.Context, onChange func(Settings), onError func(error)) error {
	if onError == nil {
		onError = func(error) {}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)
	reload := func() {
		settings, found, err := f.Load()
		if err != nil {
			onError(err)
			return
		}
		if found {
			onChange(settings)
		}
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(f.debounce, reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()
	return nil
}
