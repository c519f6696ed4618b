// Package config loads the application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the app needs to run a practice session.
type Config struct {
	// ServerURL is the base URL of the sync server. Empty runs fully offline:
	// no remote snapshot mirror, no notes, routines only from local files.
	ServerURL string `mapstructure:"server_url"`
	// UserID identifies the practicing user. Empty disables persistence.
	UserID string `mapstructure:"user_id"`
	// DataDir holds the local session database and logs.
	DataDir string `mapstructure:"data_dir"`
	LogFile string `mapstructure:"log_file"`
}

// DefaultDataDir is ~/.jamflo, falling back to the working directory when
// the home directory cannot be determined.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".jamflo")
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is fine; every field has a default or may be
// empty. Env vars use the prefix JAMFLO_ and underscore-separated keys:
//
//	JAMFLO_SERVER_URL, JAMFLO_USER_ID, JAMFLO_DATA_DIR, JAMFLO_LOG_FILE
//
// path may be empty, in which case only $DATA_DIR/config.yaml is tried.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JAMFLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := DefaultDataDir()
	v.SetDefault("server_url", "")
	v.SetDefault("user_id", "")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("log_file", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			// An absent default config file is not an error.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "jamflo.log")
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg, nil
}
