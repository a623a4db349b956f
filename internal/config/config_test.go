package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{DefaultSession: "work", Homeserver: "https://matrix.example", RequestTimeout: 3 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" || loaded.Homeserver != "https://matrix.example" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", loaded.RequestTimeout)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestResolveDefaultsWithoutFile(t *testing.T) {
	cfg, err := Resolve(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout || cfg.RecentRoomsLimit != 5 || cfg.InitialSyncLimit != 50 || cfg.LogLevel != "info" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `homeserver = "https://file.example"
user_id = "@me:file.example"
access_token = "from-file"
request_timeout = "20s"
media_templates = ["{+homeserver}/a/{server}/{media_id}"]
`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TYPEC_ACCESS_TOKEN", "from-env")
	t.Setenv("TYPEC_RECENT_ROOMS_LIMIT", "8")
	t.Setenv("TYPEC_MEDIA_TEMPLATES", "x/{media_id},y/{media_id}")

	cfg, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Homeserver != "https://file.example" {
		t.Errorf("Homeserver = %q, file value lost", cfg.Homeserver)
	}
	if cfg.AccessToken != "from-env" {
		t.Errorf("AccessToken = %q, want env override", cfg.AccessToken)
	}
	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.RecentRoomsLimit != 8 {
		t.Errorf("RecentRoomsLimit = %d", cfg.RecentRoomsLimit)
	}
	if len(cfg.MediaTemplates) != 2 || cfg.MediaTemplates[1] != "y/{media_id}" {
		t.Errorf("MediaTemplates = %v", cfg.MediaTemplates)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestResolveRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("homeserver = "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(path); err == nil {
		t.Error("Resolve() accepted malformed toml")
	}
}

func TestValidateNamesMissingFields(t *testing.T) {
	err := (&Config{Homeserver: "https://x"}).Validate()
	if err == nil {
		t.Fatal("Validate() = nil for incomplete config")
	}
	if !strings.Contains(err.Error(), "user_id") || !strings.Contains(err.Error(), "access_token") {
		t.Errorf("error %q does not name missing fields", err)
	}
}

func TestValidateEncryptionNeedsDevice(t *testing.T) {
	cfg := &Config{Homeserver: "https://x", UserID: "@me:x", AccessToken: "tok", Encryption: true}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "device_id") {
		t.Fatalf("Validate() = %v, want device_id named", err)
	}
	cfg.DeviceID = "DEV"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
