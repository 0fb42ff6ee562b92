package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/kittclouds/labelgraph/pkg/category"
)

// Config holds host configuration.
type Config struct {
	Group      string              `mapstructure:"group"`
	Categories []category.Category `mapstructure:"categories"`
	Store      StoreConfig         `mapstructure:"store"`
	Journal    JournalConfig       `mapstructure:"journal"`
	Log        LogConfig           `mapstructure:"log"`
}

// StoreConfig holds sqlite settings.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// JournalConfig holds payload journal settings. An empty Dir disables it.
type JournalConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// LABELGRAPH_. path may be empty, in which case LABELGRAPH_CONFIG or
// ./labelgraph.{toml,yaml,json} is used if present.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("group", "default")
	v.SetDefault("store.dsn", ":memory:")
	v.SetDefault("journal.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if path == "" {
		path = os.Getenv("LABELGRAPH_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("labelgraph")
	}

	v.SetEnvPrefix("LABELGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings Load cannot default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Group) == "" {
		return fmt.Errorf("config: group is required")
	}
	for i, cat := range c.Categories {
		if cat.Key == "" {
			return fmt.Errorf("config: categories[%d]: key is required", i)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Registry builds the category registry from the configured categories.
func (c Config) Registry() *category.Registry {
	return category.NewRegistry(c.Categories)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log.level %q", s)
}
