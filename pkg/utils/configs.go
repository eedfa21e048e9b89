package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

var (
	dotEnvOnce   sync.Once
	dotEnvValues map[string]string
)

// GetEnv returns the value for key from the process environment, falling
// back to the working directory's .env file.
func GetEnv(key string) string {
	v, _ := LookupEnv(key)
	return v
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(GetEnv(key))
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

// GetDurationEnv accepts Go duration strings ("1500ms", "2s") and bare
// integers, which are read as milliseconds.
func GetDurationEnv(key string) time.Duration {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return 0
	}
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0
	}
	return d
}

func LookupEnv(key string) (value string, found bool) {
	key = strings.ToUpper(key)
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	dotEnvOnce.Do(func() {
		dotEnvValues = make(map[string]string)
		if data, err := os.ReadFile(".env"); err == nil {
			for k, v := range parseEnvLines(string(data)) {
				dotEnvValues[strings.ToUpper(k)] = v
			}
		}
	})
	v, ok := dotEnvValues[key]
	return v, ok
}

// LoadEnv loads .env, or .env.<env> when env is set, into the process
// environment. Variables already present are not overwritten.
func LoadEnv(env string) error {
	envFile := ".env"
	if env != "" {
		envFile = ".env." + env
	}

	data, err := os.ReadFile(envFile)
	if err != nil {
		return err
	}

	for key, value := range parseEnvLines(string(data)) {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, value)
	}
	return nil
}

func parseEnvLines(data string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		values[key] = value
	}
	return values
}
