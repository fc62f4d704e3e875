package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("Server.LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.DB.Path != "choretab.db" {
		t.Errorf("DB.Path = %q, want %q", cfg.DB.Path, "choretab.db")
	}
	if cfg.Jobs.RewardMaxPending.Duration != 7*24*time.Hour {
		t.Errorf("Jobs.RewardMaxPending = %v, want 168h", cfg.Jobs.RewardMaxPending.Duration)
	}
	if cfg.Backup.Enabled {
		t.Error("Backup.Enabled should be false by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 9000
log_level = "debug"

[database]
path = "/tmp/test.db"

[jobs]
generation_interval = "30m"

[events]
webhook_url = "http://example.com/hook"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.DB.Path != "/tmp/test.db" {
		t.Errorf("DB.Path = %q, want %q", cfg.DB.Path, "/tmp/test.db")
	}
	if cfg.Jobs.GenerationInterval.Duration != 30*time.Minute {
		t.Errorf("Jobs.GenerationInterval = %v, want 30m", cfg.Jobs.GenerationInterval.Duration)
	}
	if cfg.Events.WebhookURL != "http://example.com/hook" {
		t.Errorf("Events.WebhookURL = %q", cfg.Events.WebhookURL)
	}
	// Unset fields keep their defaults.
	if cfg.Jobs.AuditInterval.Duration != 24*time.Hour {
		t.Errorf("Jobs.AuditInterval = %v, want 24h", cfg.Jobs.AuditInterval.Duration)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHORETAB_PORT", "7000")
	t.Setenv("CHORETAB_DB_PATH", "/data/chores.db")
	t.Setenv("CHORETAB_BACKUP_BUCKET", "my-backups")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.DB.Path != "/data/chores.db" {
		t.Errorf("DB.Path = %q", cfg.DB.Path)
	}
	if !cfg.Backup.Enabled {
		t.Error("Backup.Enabled should be set by CHORETAB_BACKUP_BUCKET")
	}
	if cfg.Backup.Bucket != "my-backups" {
		t.Errorf("Backup.Bucket = %q", cfg.Backup.Bucket)
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	if cfg.Location() != time.Local {
		t.Error("default Location should be time.Local")
	}

	cfg.Server.Timezone = "America/New_York"
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Location = %q", cfg.Location().String())
	}

	cfg.Server.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Error("bad zone should fall back to time.Local")
	}
}
