package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "portal",
				Password: "secret",
				Name:     "portal",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=portal password=secret dbname=portal sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.example.com",
				Port:    5433,
				User:    "admin",
				Name:    "orgs",
				SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=orgs sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "portal",
			User: "portal",
		},
		Auth: AuthConfig{TokenTTL: time.Hour},
		Security: SecurityConfig{
			RateLimiting: RateLimitingConfig{Backend: "memory"},
		},
		Search:  SearchConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid server port 0", func(c *Config) { c.Server.Port = 0 }},
		{"invalid server port 70000", func(c *Config) { c.Server.Port = 70000 }},
		{"missing base_url", func(c *Config) { c.Server.BaseURL = "" }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"missing database name", func(c *Config) { c.Database.Name = "" }},
		{"missing database user", func(c *Config) { c.Database.User = "" }},
		{"non-positive token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"unknown rate limit backend", func(c *Config) { c.Security.RateLimiting.Backend = "memcached" }},
		{"redis backend without redis addr", func(c *Config) { c.Security.RateLimiting.Backend = "redis" }},
		{"tls enabled missing cert_file", func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "key.pem"} }},
		{"tls enabled missing key_file", func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem"} }},
		{"page size above max", func(c *Config) { c.Search.DefaultPageSize = 500 }},
		{"page size zero", func(c *Config) { c.Search.DefaultPageSize = 0 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error, got nil")
			}
		})
	}

	t.Run("redis backend with redis addr passes", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.RateLimiting.Backend = "redis"
		cfg.Redis.Addr = "localhost:6379"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("all valid log levels pass", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			cfg := minimalValidConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error for log level %q: %v", level, err)
			}
		}
	})
}

func TestRedisConfig_Enabled(t *testing.T) {
	if (&RedisConfig{}).Enabled() {
		t.Error("empty redis config should be disabled")
	}
	if !(&RedisConfig{Addr: "redis:6379"}).Enabled() {
		t.Error("redis config with addr should be enabled")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.APIKeys.Header != "X-API-KEY" {
		t.Errorf("default api key header = %q, want X-API-KEY", cfg.Auth.APIKeys.Header)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("default token ttl = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Search.DefaultPageSize != 20 {
		t.Errorf("default page size = %d, want 20", cfg.Search.DefaultPageSize)
	}
}

func TestLoad_CredentialSettings(t *testing.T) {
	t.Setenv("PORTAL_AUTH_API_KEYS_PREFIX", "civic")
	t.Setenv("PORTAL_AUTH_TOKEN_TTL", "90m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Auth.APIKeys.Prefix != "civic" {
		t.Errorf("api key prefix = %q, want civic", cfg.Auth.APIKeys.Prefix)
	}
	if cfg.Auth.TokenTTL != 90*time.Minute {
		t.Errorf("token ttl = %v, want 90m", cfg.Auth.TokenTTL)
	}
	if cfg.Telemetry.ServiceName != "portal-api" {
		t.Errorf("service name = %q, want portal-api", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORTAL_SERVER_PORT", "9000")
	t.Setenv("PORTAL_DATABASE_HOST", "db.internal")
	t.Setenv("PORTAL_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_FileAndPasswordExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  base_url: https://data.example.org
database:
  password: ${PORTAL_TEST_DB_PASSWORD}
search:
  default_page_size: 50
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORTAL_TEST_DB_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.BaseURL != "https://data.example.org" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("password = %q, want expanded value", cfg.Database.Password)
	}
	if cfg.Search.DefaultPageSize != 50 {
		t.Errorf("page size = %d, want 50", cfg.Search.DefaultPageSize)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed YAML, got nil")
	}
}
