package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"webauthz/pkg/logging"
	"webauthz/pkg/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/webauthz"
	configFileName = "config.yaml"
	envFileName    = ".env"
)

// Environment variables that override the configuration file.
const (
	EnvStoreType        = "WEBAUTHZ_STORE_TYPE"
	EnvStoreDSN         = "WEBAUTHZ_STORE_DSN"
	EnvRedisAddr        = "WEBAUTHZ_REDIS_ADDR"
	EnvRedisPassword    = "WEBAUTHZ_REDIS_PASSWORD"
	EnvRedisDB          = "WEBAUTHZ_REDIS_DB"
	EnvClientName       = "WEBAUTHZ_CLIENT_NAME"
	EnvGrantRedirectURI = "WEBAUTHZ_GRANT_REDIRECT_URI"
	EnvListenAddr       = "WEBAUTHZ_LISTEN_ADDR"
	EnvLogLevel         = "WEBAUTHZ_LOG_LEVEL"
	EnvLogFormat        = "WEBAUTHZ_LOG_FORMAT"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory.
//
// Defaults are overlaid with config.yaml from configPath, then with
// WEBAUTHZ_* environment variables. A .env file in configPath or the working
// directory fills in environment variables that are not already set. The
// result is validated before it is returned.
func LoadConfig(configPath string) (WebauthzConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return WebauthzConfig{}, err
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return WebauthzConfig{}, ConfigurationError{
				FilePath:  configFilePath,
				ErrorType: "parse",
				Message:   "config.yaml is not valid YAML",
				Details:   err.Error(),
			}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	for _, envFile := range []string{filepath.Join(configPath, envFileName), envFileName} {
		if err := loadEnvFile(envFile); err != nil {
			return WebauthzConfig{}, err
		}
	}
	if err := applyEnvOverrides(&config); err != nil {
		return WebauthzConfig{}, err
	}

	if err := config.Validate(); err != nil {
		var cfgErr ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath = configFilePath
			return WebauthzConfig{}, cfgErr
		}
		return WebauthzConfig{}, err
	}
	return config, nil
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		logging.Debug("ConfigLoader", "Loaded environment from %s", path)
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return ConfigurationError{
		FilePath:  path,
		ErrorType: "parse",
		Message:   "environment file could not be read",
		Details:   err.Error(),
	}
}

func applyEnvOverrides(config *WebauthzConfig) error {
	if v, ok := os.LookupEnv(EnvStoreType); ok {
		config.Store.Type = store.Type(v)
		if t, valid := store.ParseType(v); valid {
			config.Store.Type = t
		}
	}
	if v, ok := os.LookupEnv(EnvStoreDSN); ok {
		config.Store.DSN = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		config.Store.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		config.Store.Redis.Password = v
	}
	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return ConfigurationError{
				ErrorType:   "validation",
				Message:     fmt.Sprintf("%s must be a number", EnvRedisDB),
				Details:     err.Error(),
				Suggestions: []string{"Use a database index such as 0"},
			}
		}
		config.Store.Redis.DB = db
	}
	if v, ok := os.LookupEnv(EnvClientName); ok {
		config.Client.Name = v
	}
	if v, ok := os.LookupEnv(EnvGrantRedirectURI); ok {
		config.Client.GrantRedirectURI = v
	}
	if v, ok := os.LookupEnv(EnvListenAddr); ok {
		config.Server.ListenAddr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		config.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		config.Log.Format = v
	}
	return nil
}
