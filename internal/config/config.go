package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "MEALOG"
	defaultHTTPAddress     = "127.0.0.1:8080"
	defaultDatabasePath    = "mealog.db"
	defaultLogLevel        = "info"
	defaultLogFile         = "mealog.log"
	defaultTokenTTLMinutes = 43200
	defaultMealType        = string(meals.DefaultMealType)
	defaultBlurDelayMillis = 150
	defaultWatchEnabled    = true
	anyOrigin              = "*"
)

// AppConfig captures runtime configuration for the server and the terminal UI.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	DatabasePath   string
	LogLevel       string
	LogFile        string
	SigningSecret  string
	TokenTTL       time.Duration
	LegacyPath     string
	DefaultType    meals.MealType
	BlurDelay      time.Duration
	WatchEnabled   bool
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c AppConfig) AuthEnabled() bool {
	return strings.TrimSpace(c.SigningSecret) != ""
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
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", defaultLogFile)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("legacy.path", "")
	configViper.SetDefault("meals.default_type", defaultMealType)
	configViper.SetDefault("ui.blur_delay_ms", defaultBlurDelayMillis)
	configViper.SetDefault("watch.enabled", defaultWatchEnabled)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	defaultType, err := meals.ParseMealType(configViper.GetString("meals.default_type"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("meals.default_type: %w", err)
	}

	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		AllowedOrigins: parseOrigins(configViper.GetStringSlice("http.allowed_origins")),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		LogFile:        configViper.GetString("log.file"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		LegacyPath:     configViper.GetString("legacy.path"),
		DefaultType:    defaultType,
		BlurDelay:      time.Duration(configViper.GetInt("ui.blur_delay_ms")) * time.Millisecond,
		WatchEnabled:   configViper.GetBool("watch.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == anyOrigin && !c.AuthEnabled() {
			return fmt.Errorf("http.allowed_origins: %q requires auth.signing_secret", anyOrigin)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.BlurDelay < 0 {
		return fmt.Errorf("ui.blur_delay_ms must not be negative")
	}
	return nil
}

// parseOrigins accepts list values as well as a comma separated env string.
func parseOrigins(values []string) []string {
	var origins []string
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}
