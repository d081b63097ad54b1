// Package config loads daemon settings from defaults, an optional config
// file and MOMENTUM_ environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration.
type Config struct {
	// Server
	Port      int
	JWTSecret string   // empty disables API auth
	Origins   []string // allowed host bridge origins, empty allows any

	// Catalog
	CatalogPath  string
	WatchCatalog bool

	// Engine
	MusicVolume      int
	SoundscapeVolume int
	NarrationVolume  int
	MaxFallbacks     int
	ProgressInterval time.Duration

	// Keepalive
	KeepaliveFade time.Duration
	ClipLength    time.Duration
	ICEServers    []string

	// Logging
	LogLevel string
	LogJSON  bool
}

var defaults = map[string]any{
	"port":              8080,
	"jwt_secret":        "",
	"origins":           "",
	"catalog":           "catalog.yaml",
	"watch_catalog":     true,
	"music_volume":      40,
	"soundscape_volume": 70,
	"narration_volume":  100,
	"max_fallbacks":     3,
	"progress_interval": "1s",
	"keepalive_fade":    "500ms",
	"clip_length":       "2s",
	"ice_servers":       "",
	"log_level":         "info",
	"log_json":          false,
}

// Load reads configuration. A file is read only when MOMENTUM_CONFIG
// names one, and failing to read it is an error. Malformed or out of
// range values fall back to their defaults.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix("MOMENTUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("MOMENTUM_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return Config{
		Port:      intIn(v, "port", 1, 65535),
		JWTSecret: v.GetString("jwt_secret"),
		Origins:   list(v, "origins"),

		CatalogPath:  str(v, "catalog"),
		WatchCatalog: boolean(v, "watch_catalog"),

		MusicVolume:      intIn(v, "music_volume", 0, 100),
		SoundscapeVolume: intIn(v, "soundscape_volume", 0, 100),
		NarrationVolume:  intIn(v, "narration_volume", 0, 100),
		MaxFallbacks:     intIn(v, "max_fallbacks", 0, 20),
		ProgressInterval: positiveDuration(v, "progress_interval"),

		KeepaliveFade: positiveDuration(v, "keepalive_fade"),
		ClipLength:    positiveDuration(v, "clip_length"),
		ICEServers:    list(v, "ice_servers"),

		LogLevel: str(v, "log_level"),
		LogJSON:  boolean(v, "log_json"),
	}, nil
}

func str(v *viper.Viper, key string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fmt.Sprint(defaults[key])
}

func intIn(v *viper.Viper, key string, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n < lo || n > hi {
		return defaults[key].(int)
	}
	return n
}

func boolean(v *viper.Viper, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaults[key].(bool)
	}
	return b
}

func positiveDuration(v *viper.Viper, key string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key))); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(defaults[key].(string))
	return d
}

// list accepts a comma separated string or a YAML sequence.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case []any:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = val
	default:
		raw = strings.Split(v.GetString(key), ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
