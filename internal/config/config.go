package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "CARDBOARD"
	defaultHTTPAddress = "127.0.0.1:8791"
	defaultLogLevel    = "info"

	defaultCardWidth   = 250
	defaultCardHeight  = 200
	defaultGridSpacing = 20
	defaultGridColumns = 3
)

// AppConfig captures runtime configuration for the cardboard API server.
type AppConfig struct {
	HTTPAddress   string
	WorkspaceRoot string
	LogLevel      string
	WatchEnabled  bool
	CardWidth     float64
	CardHeight    float64
	GridSpacing   float64
	GridColumns   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("watch.enabled", true)
	configViper.SetDefault("layout.card_width", defaultCardWidth)
	configViper.SetDefault("layout.card_height", defaultCardHeight)
	configViper.SetDefault("layout.grid_spacing", defaultGridSpacing)
	configViper.SetDefault("layout.grid_columns", defaultGridColumns)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		WorkspaceRoot: configViper.GetString("workspace.root"),
		LogLevel:      configViper.GetString("log.level"),
		WatchEnabled:  configViper.GetBool("watch.enabled"),
		CardWidth:     configViper.GetFloat64("layout.card_width"),
		CardHeight:    configViper.GetFloat64("layout.card_height"),
		GridSpacing:   configViper.GetFloat64("layout.grid_spacing"),
		GridColumns:   configViper.GetInt("layout.grid_columns"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.WorkspaceRoot) == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.CardWidth <= 0 || c.CardHeight <= 0 {
		return fmt.Errorf("layout.card_width and layout.card_height must be positive")
	}
	if c.GridSpacing <= 0 {
		return fmt.Errorf("layout.grid_spacing must be positive")
	}
	if c.GridColumns <= 0 {
		return fmt.Errorf("layout.grid_columns must be positive")
	}
	return nil
}
