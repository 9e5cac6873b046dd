// Package config resolves secrets and operational settings for vrc-playtime.
//
// Sources, lowest precedence first: defaults, an optional config.yaml, dotenv
// files (which never override the real environment), environment variables,
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Nlkomaru/vrc-playtime/internal/scheduler"
	"github.com/Nlkomaru/vrc-playtime/internal/steam"
)

const (
	EnvSteamAPIKey       = "STEAM_API_KEY"
	EnvSteamUserID       = "STEAM_USER_ID"
	EnvDiscordWebhookURL = "DISCORD_WEBHOOK_URL"

	envPrefix = "VRC_PLAYTIME"
)

// DefaultEnvFiles are read in order when no env file is given.
var DefaultEnvFiles = []string{".dev.vars", ".env.local", ".env"}

// Config captures runtime settings for one process.
type Config struct {
	SteamAPIKey       string `mapstructure:"steam_api_key"`
	SteamUserID       string `mapstructure:"steam_user_id"`
	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`

	SteamAPIURL string `mapstructure:"steam_api_url"`
	Schedule    string `mapstructure:"schedule"`
	ListenAddr  string `mapstructure:"listen_addr"`
	LogLevel    string `mapstructure:"log_level"`
	Trace       bool   `mapstructure:"trace"`
}

// Options control where Load looks.
type Options struct {
	// ConfigFile is an explicit config path. When empty, config.yaml is searched
	// for in the working directory and $HOME/.config/vrc-playtime.
	ConfigFile string
	// EnvFiles overrides DefaultEnvFiles.
	EnvFiles []string
	// Flags, when set, override every other source for the keys they define.
	Flags *pflag.FlagSet
}

// Load resolves the configuration.
func Load(opts Options) (Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vrc-playtime")
	}

	v.SetDefault("steam_api_url", steam.OwnedGamesURL)
	v.SetDefault("schedule", scheduler.DefaultSchedule)
	v.SetDefault("listen_addr", ":8787")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("trace", false)

	bindings := map[string]string{
		"steam_api_key":       EnvSteamAPIKey,
		"steam_user_id":       EnvSteamUserID,
		"discord_webhook_url": EnvDiscordWebhookURL,
		"steam_api_url":       envPrefix + "_STEAM_API_URL",
		"schedule":            envPrefix + "_SCHEDULE",
		"listen_addr":         envPrefix + "_LISTEN_ADDR",
		"log_level":           envPrefix + "_LOG_LEVEL",
		"trace":               envPrefix + "_TRACE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// MissingSecrets lists the environment names of secrets that are empty.
func (c Config) MissingSecrets() []string {
	var missing []string
	if c.SteamAPIKey == "" {
		missing = append(missing, EnvSteamAPIKey)
	}
	if c.SteamUserID == "" {
		missing = append(missing, EnvSteamUserID)
	}
	if c.DiscordWebhookURL == "" {
		missing = append(missing, EnvDiscordWebhookURL)
	}
	return missing
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"schedule":      "schedule",
	"addr":          "listen_addr",
	"log-level":     "log_level",
	"trace":         "trace",
	"steam-api-url": "steam_api_url",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
