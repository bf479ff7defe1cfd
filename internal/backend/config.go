package backend

import (
	"errors"
	"fmt"
	"strings"

	"tally/internal/config"
)

// FromAppConfig picks the store settings out of the application config.
// DATA_BACKEND is matched case-insensitively; empty means memory.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := MemoryBackend
	if raw := strings.ToLower(strings.TrimSpace(appConfig.DataBackend)); raw != "" {
		backendType = BackendType(raw)
	}
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid DATA_BACKEND %q (want one of %s)", appConfig.DataBackend, backendList())
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
	}, nil
}

// Validate checks that the settings the selected store needs are present.
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
		return nil
	case SQLiteBackend:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			return errors.New("SQLITE_DB_PATH is required for the sqlite backend")
		}
		return nil
	case PostgresBackend:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("invalid backend type %q (want one of %s)", c.Type, backendList())
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}

func backendList() string {
	names := make([]string, 0, 3)
	for _, bt := range GetBackendTypes() {
		names = append(names, bt.String())
	}
	return strings.Join(names, ", ")
}
