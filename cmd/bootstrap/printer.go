package bootstrap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/code-100-precent/LingChat/pkg/config"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"go.uber.org/zap"
)

const defaultBanner = `  _     _             ____ _           _
 | |   (_)_ __   __ _/ ___| |__   __ _| |_
 | |   | | '_ \ / _' | |   | '_ \ / _' | __|
 | |___| | | | | (_| | |___| | | | (_| | |_
 |_____|_|_| |_|\__, |\____|_| |_|\__,_|\__|
                |___/`

// LogConfigInfo Print global configuration information. Secrets are logged
// only as set or unset.
func LogConfigInfo() {
	cfg := config.GlobalConfig
	logger.Info("system config load finished")
	logger.Info("global config",
		zap.String("server_name", cfg.ServerName),
		zap.String("mode", cfg.Mode),
	)

	logger.Info("control config",
		zap.String("addr", cfg.Addr),
		zap.String("api_prefix", cfg.APIPrefix),
		zap.String("monitor_prefix", cfg.MonitorPrefix),
		zap.Bool("control_token", cfg.ControlToken != ""),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.String("control_rate", cfg.ControlRate),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)

	logger.Info("realtime config", zap.Any("summary", realtime.GetConfigSummary(cfg.Realtime)))

	logger.Info("graphql config",
		zap.String("endpoint", cfg.GraphQLEndpoint),
		zap.Bool("token", cfg.GraphQLToken != ""),
		zap.Duration("timeout", cfg.GraphQLTimeout),
		zap.String("user_id", cfg.UserID),
	)

	logger.Info("notification config",
		zap.String("settings_path", cfg.Notification.SettingsPath),
		zap.Bool("watch_settings", cfg.Notification.WatchSettings),
		zap.Bool("bell", cfg.Notification.Bell),
		zap.Duration("sound_every", cfg.Notification.SoundEvery),
		zap.Duration("auto_dismiss", cfg.Notification.AutoDismiss),
		zap.Bool("start_hidden", cfg.Notification.StartHidden),
		zap.Bool("auto_grant", cfg.Notification.AutoGrant),
		zap.Bool("webhook", cfg.Notification.WebhookURL != ""),
	)

	logger.Info("log config",
		zap.String("log_level", cfg.Log.Level),
		zap.String("log_filename", cfg.Log.Filename),
		zap.Int("log_max_size", cfg.Log.MaxSize),
		zap.Int("log_max_age", cfg.Log.MaxAge),
		zap.Int("log_max_backups", cfg.Log.MaxBackups),
		zap.String("realtime_log_level", cfg.RealtimeLogLevel),
	)

	logger.Info("schedule config",
		zap.String("ping", cfg.PingSchedule),
		zap.String("diagnostics", cfg.DiagnosticsSchedule),
	)
}

// PrintBannerFromFile prints filename line by line in a color gradient,
// falling back to the built-in banner when the file is missing
func PrintBannerFromFile(w io.Writer, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		data = []byte(defaultBanner)
	}
	printBanner(w, string(data))
	return nil
}

func printBanner(w io.Writer, banner string) {
	colors := []string{
		"\x1b[38;5;165m",
		"\x1b[38;5;189m",
		"\x1b[38;5;207m",
		"\x1b[38;5;219m",
		"\x1b[38;5;225m",
		"\x1b[38;5;231m",
	}
	for i, line := range strings.Split(strings.TrimRight(banner, "\n"), "\n") {
		fmt.Fprintln(w, colors[i%len(colors)]+line+"\x1b[0m")
	}
}
