// Package config loads server configuration from an optional TOML file
// with CHORETAB_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server Server `toml:"server"`
	DB     DB     `toml:"database"`
	Jobs   Jobs   `toml:"jobs"`
	Events Events `toml:"events"`
	Backup Backup `toml:"backup"`
}

type Server struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	Timezone string `toml:"timezone"`
}

type DB struct {
	Path string `toml:"path"`
}

type Jobs struct {
	GenerationInterval   duration `toml:"generation_interval"`
	AutoApproveInterval  duration `toml:"auto_approve_interval"`
	MissedInterval       duration `toml:"missed_interval"`
	RewardExpiryInterval duration `toml:"reward_expiry_interval"`
	RewardMaxPending     duration `toml:"reward_max_pending"`
	AuditInterval        duration `toml:"audit_interval"`
	BackupInterval       duration `toml:"backup_interval"`
}

type Events struct {
	WebhookURL string `toml:"webhook_url"`
}

type Backup struct {
	Enabled         bool   `toml:"enabled"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Passphrase      string `toml:"passphrase"`
}

// duration lets TOML carry values like "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() Config {
	return Config{
		Server: Server{
			Port:     8090,
			LogLevel: "info",
			Timezone: "Local",
		},
		DB: DB{Path: "choretab.db"},
		Jobs: Jobs{
			GenerationInterval:   duration{1 * time.Hour},
			AutoApproveInterval:  duration{15 * time.Minute},
			MissedInterval:       duration{1 * time.Hour},
			RewardExpiryInterval: duration{1 * time.Hour},
			RewardMaxPending:     duration{7 * 24 * time.Hour},
			AuditInterval:        duration{24 * time.Hour},
			BackupInterval:       duration{24 * time.Hour},
		},
	}
}

// Load reads the TOML file at path (missing file is fine), then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHORETAB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CHORETAB_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("CHORETAB_TIMEZONE"); v != "" {
		cfg.Server.Timezone = v
	}
	if v := os.Getenv("CHORETAB_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("CHORETAB_WEBHOOK_URL"); v != "" {
		cfg.Events.WebhookURL = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_BUCKET"); v != "" {
		cfg.Backup.Enabled = true
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_ACCESS_KEY_ID"); v != "" {
		cfg.Backup.AccessKeyID = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_SECRET_ACCESS_KEY"); v != "" {
		cfg.Backup.SecretAccessKey = v
	}
	if v := os.Getenv("CHORETAB_BACKUP_PASSPHRASE"); v != "" {
		cfg.Backup.Passphrase = v
	}
}

// Location resolves the configured timezone, falling back to the system
// local zone.
func (c Config) Location() *time.Location {
	if c.Server.Timezone == "" || c.Server.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
