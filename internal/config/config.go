package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded from an optional YAML
// file and then overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Extension ExtensionConfig `yaml:"extension"`
	Audit     AuditConfig     `yaml:"audit"`
	Users     UsersConfig     `yaml:"users"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ExtensionConfig struct {
	// BaseURL is the externally reachable approval endpoint URL embedded in
	// notification mails, e.g. "https://sponsorships.example/extension-response".
	BaseURL string `yaml:"base_url"`
	// PendingTTL enables the sweeper when positive; zero keeps PENDING
	// requests actionable forever.
	PendingTTL Duration `yaml:"pending_ttl"`
}

// Duration parses YAML values like "168h" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type AuditConfig struct {
	// FilePath, when set, mirrors every audit entry into a JSONL file.
	FilePath string `yaml:"file_path"`
}

type UsersConfig struct {
	// FilePath is the flat account file, one "username,hash,admin" per line.
	FilePath string `yaml:"file_path"`
}

// Load reads the config file named by CONFIG_PATH (default config.yaml when
// present) and applies environment overrides on top of the defaults.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONFIG_PATH")
	optional := path == ""
	if optional {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
		// Defaults plus env only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		SMTP:      SMTPConfig{Port: 587},
		Extension: ExtensionConfig{BaseURL: "http://localhost:8080/extension-response"},
		Users:     UsersConfig{FilePath: "users.txt"},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.DSN, "DATABASE_URL")
	setInt(&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setInt(&cfg.Database.MaxIdleConns, "DATABASE_MAX_IDLE_CONNS")
	setInt(&cfg.Database.ConnMaxLifetime, "DATABASE_CONN_MAX_LIFETIME")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Output, "LOG_OUTPUT")

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setInt(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTP.From, "SMTP_FROM")

	setString(&cfg.Extension.BaseURL, "EXTENSION_BASE_URL")
	if v := os.Getenv("EXTENSION_PENDING_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Extension.PendingTTL = Duration(parsed)
		}
	}

	setString(&cfg.Audit.FilePath, "AUDIT_FILE_PATH")
	setString(&cfg.Users.FilePath, "USERS_FILE_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

