package notification

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	loadErr error
	saveErr error
	saved   int
}

func (f *failingStore) Load() (Settings, bool, error) {
	return Settings{}, false, f.loadErr
}

func (f *failingStore) Save(Settings) error {
	f.saved++
	return f.saveErr
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)

	s := DefaultSettings()
	s.Sound = false
	require.NoError(t, store.Save(s))

	got, found, err := store.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, s, got)
}

func TestFileStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := NewFileStore(path)

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)

	s := DefaultSettings()
	s.ShowPreview = false
	s.QuietHours = QuietHours{Enabled: true, Start: "23:00", End: "07:00"}
	require.NoError(t, store.Save(s))

	got, found, err := store.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, s, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileStore_PartialDocumentKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sound": false}`), 0o644))

	got, found, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, got.Sound)
	assert.True(t, got.Enabled)
	assert.Equal(t, "22:00", got.QuietHours.Start)
}

func TestFileStore_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, _, err := NewFileStore(path).Load()
	assert.Error(t, err)

	m := NewSettingsManager(NewFileStore(path))
	assert.Equal(t, DefaultSettings(), m.Get())
}

func TestFileStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path)
	store.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Settings, 4)
	require.NoError(t, store.Watch(ctx, func(s Settings) { changes <- s }, nil))

	require.NoError(t, os.WriteFile(path, []byte(`{"enabled": false}`), 0o644))

	select {
	case s := <-changes:
		assert.False(t, s.Enabled)
		assert.True(t, s.Sound)
	case <-time.After(2 * time.Second):
		t.Fatal("settings change not observed")
	}
}

func TestSettingsManager_FreshLoadYieldsDefaults(t *testing.T) {
	m := NewSettingsManager(NewMemoryStore())
	s := m.Get()
	assert.True(t, s.Enabled)
	assert.True(t, s.Sound)
	assert.True(t, s.Desktop)
	assert.True(t, s.ShowPreview)
	assert.False(t, s.QuietHours.Enabled)
}

func TestSettingsManager_LoadFailureDegrades(t *testing.T) {
	store := &failingStore{loadErr: errors.New("storage disabled")}
	m := NewSettingsManager(store)
	assert.Equal(t, DefaultSettings(), m.Get())
}

func TestSettingsManager_SaveFailureKeepsMemory(t *testing.T) {
	store := &failingStore{saveErr: errors.New("quota exceeded")}
	m := NewSettingsManager(store)

	s := DefaultSettings()
	s.Sound = false
	require.NoError(t, m.Update(s))
	assert.False(t, m.Get().Sound)
	assert.Equal(t, 1, store.saved)
}

func TestSettingsManager_UpdateValidates(t *testing.T) {
	m := NewSettingsManager(nil)
	s := DefaultSettings()
	s.QuietHours.Start = "late"

	assert.ErrorIs(t, m.Update(s), ErrInvalidClock)
	assert.Equal(t, DefaultSettings(), m.Get())
}

func TestSettingsManager_ResetAndListeners(t *testing.T) {
	store := NewMemoryStore()
	m := NewSettingsManager(store)

	var seen []Settings
	m.OnChange(func(s Settings) { seen = append(seen, s) })

	s := DefaultSettings()
	s.Enabled = false
	require.NoError(t, m.Update(s))
	assert.Equal(t, DefaultSettings(), m.Reset())

	stored, found, err := store.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, DefaultSettings(), stored)
	assert.Len(t, seen, 2)
}

func TestSettingsManager_Apply(t *testing.T) {
	store := &failingStore{}
	m := NewSettingsManager(store)

	calls := 0
	m.OnChange(func(Settings) { calls++ })

	s := DefaultSettings()
	s.Desktop = false
	m.Apply(s)
	m.Apply(s)
	assert.False(t, m.Get().Desktop)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, store.saved)

	bad := s
	bad.QuietHours.End = "x"
	m.Apply(bad)
	assert.Equal(t, s, m.Get())
}
