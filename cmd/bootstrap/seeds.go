package bootstrap

import (
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"go.uber.org/zap"
)

// SeedSettings writes the default notification settings when the store has
// none, so the file exists for hand editing
func SeedSettings(store notification.SettingsStore) error {
	_, found, err := store.Load()
	if err != nil || found {
		// an unreadable file is left for the user to fix
		return err
	}
	if err := store.Save(notification.DefaultSettings()); err != nil {
		return err
	}
	if fs, ok := store.(*notification.FileStore); ok {
		logger.Info("notification settings seeded", zap.String("path", fs.Path()))
	}
	return nil
}
