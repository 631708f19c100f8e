// Package smtpkitcfg loads the smtpsend CLI's configuration from a YAML
// file (with an optional ".local" override) and environment variables, the
// way this project's other command-line tools are configured.
package smtpkitcfg

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrFileNotExists describes a missing config file. Load does not return
// it: when neither CONFIG nor the default path names a file, Load reads
// environment variables only.
var ErrFileNotExists = errors.New("smtpkitcfg: config file not found, set CONFIG or place one at ./config/smtpsend.yaml")

var defaultConfigPath = "./config/smtpsend.yaml"

// Config is the shape of smtpsend's YAML/env configuration.
type Config struct {
	Addr         string `yaml:"addr" env:"SMTPSEND_ADDR" env-default:"localhost:25"`
	Security     string `yaml:"security" env:"SMTPSEND_SECURITY" env-default:"opportunistic"`
	HelloName    string `yaml:"hello_name" env:"SMTPSEND_HELLO_NAME" env-default:""`
	Username     string `yaml:"username" env:"SMTPSEND_USERNAME" env-default:""`
	Password     string `yaml:"password" env:"SMTPSEND_PASSWORD" env-default:""`
	AuthMechanisms []string `yaml:"auth_mechanisms" env:"SMTPSEND_AUTH_MECHANISMS" env-separator:","`
	AllowUTF8    bool   `yaml:"allow_utf8" env:"SMTPSEND_ALLOW_UTF8" env-default:"false"`
	TimeoutSeconds int  `yaml:"timeout_seconds" env:"SMTPSEND_TIMEOUT_SECONDS" env-default:"30"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"SMTPSEND_INSECURE_SKIP_VERIFY" env-default:"false"`
	LogLevel     string `yaml:"log_level" env:"SMTPSEND_LOG_LEVEL" env-default:"info"`
	LogFormat    string `yaml:"log_format" env:"SMTPSEND_LOG_FORMAT" env-default:"text"`
}

// MustLoad calls Load and panics on error, for use at CLI startup where
// there is no sensible way to continue without configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from CONFIG's path (or the default path, if
// present), applies a ".local" sibling file as an override, then layers
// environment variables on top of both.
func Load() (*Config, error) {
	cfg := &Config{}

	configFile, exists := os.LookupEnv("CONFIG")
	if !exists {
		currentDir, _ := os.Getwd()
		def := path.Join(currentDir, defaultConfigPath)
		if _, err := os.Stat(def); err == nil {
			configFile = def
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("smtpkitcfg: stat config file: %w", err)
		} else {
			slog.Warn("smtpkitcfg: no config file found, reading environment only")
			if err := cleanenv.ReadEnv(cfg); err != nil {
				return nil, fmt.Errorf("smtpkitcfg: read env: %w", err)
			}
			return cfg, nil
		}
	}

	if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
		return nil, fmt.Errorf("smtpkitcfg: read config %s: %w", configFile, err)
	}

	localFile := configFile[:len(configFile)-len(path.Ext(configFile))] + ".local" + path.Ext(configFile)
	if _, err := os.Stat(localFile); err == nil {
		if err := cleanenv.ReadConfig(localFile, cfg); err != nil {
			return nil, fmt.Errorf("smtpkitcfg: read local override %s: %w", localFile, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("smtpkitcfg: read env: %w", err)
	}

	return cfg, nil
}
