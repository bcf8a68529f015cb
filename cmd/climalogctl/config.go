package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"climalog/internal/config"
	"climalog/internal/logging"
)

const envPrefix = "CLIMALOG"

// InitConfig reads an optional YAML config file and CLIMALOG_* environment
// variables. Keys map to env names by upper-casing and replacing "." and "-"
// with "_", so mqtt.broker is CLIMALOG_MQTT_BROKER.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "climalog"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("climalogctl")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// GetLogger builds the CLI logger with the same handlers as the server.
func GetLogger() *slog.Logger {
	level, err := config.ParseLogLevel(viper.GetString("log.level"))
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWithWriter(os.Stderr, config.Config{AppEnv: "dev", LogLevel: level}, version, "climalogctl")
}
