package console

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Preference defaults and file layout.
const (
	DefaultServerURL = "http://127.0.0.1:8000"
	ThemeDark        = "dark"
	ThemeLight       = "light"

	prefDirName  = "unigw"
	prefFileName = "console"
)

// Preferences is the console's persisted client-side configuration. It
// lives in the user config directory and never holds credentials.
type Preferences struct {
	ServerURL string `mapstructure:"server_url"`
	Theme     string `mapstructure:"theme"`
}

// Settings loads and persists console preferences through one viper
// instance, so writes land in the file reads came from.
type Settings struct {
	v     *viper.Viper
	prefs Preferences
}

// LoadSettings reads the preference file, applying defaults and
// UNIGW-prefixed environment overrides. A missing file is not an error.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigName(prefFileName)
	v.SetConfigType("yaml")
	if dir, errDir := os.UserConfigDir(); errDir == nil {
		v.AddConfigPath(filepath.Join(dir, prefDirName))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("UNIGW")
	v.AutomaticEnv()

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("theme", ThemeDark)

	if errRead := v.ReadInConfig(); errRead != nil {
		if _, notFound := errRead.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("console: read preferences: %w", errRead)
		}
	}

	var prefs Preferences
	if errDecode := v.Unmarshal(&prefs); errDecode != nil {
		return nil, fmt.Errorf("console: decode preferences: %w", errDecode)
	}
	if prefs.Theme != ThemeLight {
		prefs.Theme = ThemeDark
	}
	return &Settings{v: v, prefs: prefs}, nil
}

// ServerURL returns the configured server address.
func (s *Settings) ServerURL() string { return s.prefs.ServerURL }

// Theme returns the active theme name.
func (s *Settings) Theme() string { return s.prefs.Theme }

// SaveTheme persists the chosen theme for the next session.
func (s *Settings) SaveTheme(theme string) error {
	if theme != ThemeLight {
		theme = ThemeDark
	}
	s.prefs.Theme = theme
	s.v.Set("theme", theme)
	if errWrite := s.write(); errWrite != nil {
		return fmt.Errorf("console: save theme: %w", errWrite)
	}
	return nil
}

func (s *Settings) write() error {
	if s.v.ConfigFileUsed() != "" {
		return s.v.WriteConfig()
	}
	dir, errDir := os.UserConfigDir()
	if errDir != nil {
		return errDir
	}
	target := filepath.Join(dir, prefDirName)
	if errMkdir := os.MkdirAll(target, 0o755); errMkdir != nil {
		return errMkdir
	}
	return s.v.WriteConfigAs(filepath.Join(target, prefFileName+".yaml"))
}
