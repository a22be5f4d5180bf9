package console

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("UNIGW_SERVER_URL", "")
	t.Setenv("UNIGW_THEME", "")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.ServerURL() != DefaultServerURL {
		t.Fatalf("server url = %q, want %q", settings.ServerURL(), DefaultServerURL)
	}
	if settings.Theme() != ThemeDark {
		t.Fatalf("theme = %q, want %q", settings.Theme(), ThemeDark)
	}
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("UNIGW_SERVER_URL", "http://10.0.0.9:9000")
	t.Setenv("UNIGW_THEME", "light")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.ServerURL() != "http://10.0.0.9:9000" {
		t.Fatalf("server url = %q, want the env value", settings.ServerURL())
	}
	if settings.Theme() != ThemeLight {
		t.Fatalf("theme = %q, want %q", settings.Theme(), ThemeLight)
	}
}

func TestSaveThemePersists(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("UNIGW_SERVER_URL", "")
	t.Setenv("UNIGW_THEME", "")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if errSave := settings.SaveTheme(ThemeLight); errSave != nil {
		t.Fatalf("SaveTheme: %v", errSave)
	}
	if settings.Theme() != ThemeLight {
		t.Fatalf("theme after save = %q, want %q", settings.Theme(), ThemeLight)
	}
	if _, errStat := os.Stat(filepath.Join(home, prefDirName, prefFileName+".yaml")); errStat != nil {
		t.Fatalf("preference file not written: %v", errStat)
	}

	reloaded, errReload := LoadSettings()
	if errReload != nil {
		t.Fatalf("LoadSettings after save: %v", errReload)
	}
	if reloaded.Theme() != ThemeLight {
		t.Fatalf("reloaded theme = %q, want %q", reloaded.Theme(), ThemeLight)
	}
}

func TestSaveThemeRejectsUnknownValue(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("UNIGW_THEME", "")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if errSave := settings.SaveTheme("neon"); errSave != nil {
		t.Fatalf("SaveTheme: %v", errSave)
	}
	if settings.Theme() != ThemeDark {
		t.Fatalf("theme = %q, want fallback %q", settings.Theme(), ThemeDark)
	}
}
