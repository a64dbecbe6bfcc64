package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
http:
  api_password: "hunter2"
  server_port: 9123
  use_x_forwarded_for: true
  trusted_networks:
    - "192.168.1.0/24"
    - "10.0.0.5"
  login_attempts_threshold: 5
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.HTTP.APIPassword != "hunter2" {
		t.Errorf("HTTP.APIPassword = %q, want %q", cfg.HTTP.APIPassword, "hunter2")
	}
	if cfg.HTTP.ServerPort != 9123 {
		t.Errorf("HTTP.ServerPort = %d, want 9123", cfg.HTTP.ServerPort)
	}
	if cfg.HTTP.ServerHost != DefaultServerHost {
		t.Errorf("HTTP.ServerHost = %q, want default %q", cfg.HTTP.ServerHost, DefaultServerHost)
	}
	if !cfg.HTTP.UseXForwardedFor {
		t.Error("HTTP.UseXForwardedFor = false, want true")
	}
	if cfg.HTTP.LoginAttemptsThreshold != 5 {
		t.Errorf("HTTP.LoginAttemptsThreshold = %d, want 5", cfg.HTTP.LoginAttemptsThreshold)
	}
	if !cfg.HTTP.IPBanEnabled {
		t.Error("HTTP.IPBanEnabled should default to true")
	}

	nets, err := cfg.HTTP.ParseTrustedNetworks()
	if err != nil {
		t.Fatalf("ParseTrustedNetworks() error = %v", err)
	}
	if len(nets) != 2 {
		t.Fatalf("len(trusted networks) = %d, want 2", len(nets))
	}
	if nets[1].String() != "10.0.0.5/32" {
		t.Errorf("bare address parsed as %q, want 10.0.0.5/32", nets[1])
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_BanDisabled(t *testing.T) {
	content := `
http:
  ip_ban_enabled: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.IPBanEnabled {
		t.Error("HTTP.IPBanEnabled = true, want false")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "port low", mutate: func(c *Config) { c.HTTP.ServerPort = 0 }, wantErr: true},
		{name: "port high", mutate: func(c *Config) { c.HTTP.ServerPort = 70000 }, wantErr: true},
		{name: "cert without key", mutate: func(c *Config) { c.HTTP.SSLCertificate = "/etc/cert.pem" }, wantErr: true},
		{name: "cert and key", mutate: func(c *Config) {
			c.HTTP.SSLCertificate = "/etc/cert.pem"
			c.HTTP.SSLKey = "/etc/key.pem"
		}},
		{name: "bad trusted network", mutate: func(c *Config) { c.HTTP.TrustedNetworks = []string{"10.0.0.0/99"} }, wantErr: true},
		{name: "ipv6 trusted network", mutate: func(c *Config) { c.HTTP.TrustedNetworks = []string{"fd00::/8"} }},
		{name: "threshold zero", mutate: func(c *Config) { c.HTTP.LoginAttemptsThreshold = 0 }, wantErr: true},
		{name: "threshold positive", mutate: func(c *Config) { c.HTTP.LoginAttemptsThreshold = 3 }},
		{name: "ban without database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "no ban, no database", mutate: func(c *Config) {
			c.Database.Path = ""
			c.HTTP.IPBanEnabled = false
		}},
		{name: "invalid QoS when MQTT enabled", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}, wantErr: true},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPTimeoutConfig_Durations(t *testing.T) {
	timeouts := HTTPTimeoutConfig{Read: 30, Write: 45, Idle: 60}

	if got := timeouts.ReadTimeout().Seconds(); got != 30 {
		t.Errorf("ReadTimeout() = %v, want 30", got)
	}
	if got := timeouts.WriteTimeout().Seconds(); got != 45 {
		t.Errorf("WriteTimeout() = %v, want 45", got)
	}
	if got := timeouts.IdleTimeout().Seconds(); got != 60 {
		t.Errorf("IdleTimeout() = %v, want 60", got)
	}
}

func TestParseTrustedNetworks_IPv4Mapped(t *testing.T) {
	tests := map[string]string{
		"::ffff:10.0.0.0/104": "10.0.0.0/8",
		"::ffff:192.168.1.5":  "192.168.1.5/32",
		"::ffff:0.0.0.0/96":   "0.0.0.0/0",
		"10.0.0.0/8":          "10.0.0.0/8",
		"fd00::/8":            "fd00::/8",
		" 192.168.1.0/24 ":    "192.168.1.0/24",
	}
	for in, want := range tests {
		h := HTTPConfig{TrustedNetworks: []string{in}}
		nets, err := h.ParseTrustedNetworks()
		if err != nil {
			t.Errorf("ParseTrustedNetworks(%q) error = %v", in, err)
			continue
		}
		if got := nets[0].String(); got != want {
			t.Errorf("ParseTrustedNetworks(%q) = %s, want %s", in, got, want)
		}
	}

	h := HTTPConfig{TrustedNetworks: []string{"::ffff:0.0.0.0/64"}}
	if _, err := h.ParseTrustedNetworks(); err == nil {
		t.Error("IPv4-mapped prefix shorter than /96 should be rejected")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_HTTP_API_PASSWORD", "from-env")
	t.Setenv("GRAYLOGIC_HTTP_SERVER_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_HTTP_SERVER_PORT", "8443")
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.HTTP.APIPassword != "from-env" {
		t.Errorf("HTTP.APIPassword = %q, want %q", cfg.HTTP.APIPassword, "from-env")
	}
	if cfg.HTTP.ServerHost != "192.168.1.1" {
		t.Errorf("HTTP.ServerHost = %q, want %q", cfg.HTTP.ServerHost, "192.168.1.1")
	}
	if cfg.HTTP.ServerPort != 8443 {
		t.Errorf("HTTP.ServerPort = %d, want 8443", cfg.HTTP.ServerPort)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.HTTP.ServerPort != DefaultServerPort {
		t.Errorf("defaultConfig HTTP.ServerPort = %d, want %d", cfg.HTTP.ServerPort, DefaultServerPort)
	}
	if cfg.HTTP.LoginAttemptsThreshold != NoLoginAttemptThreshold {
		t.Errorf("defaultConfig threshold = %d, want %d", cfg.HTTP.LoginAttemptsThreshold, NoLoginAttemptThreshold)
	}
	if cfg.HTTP.TLSEnabled() {
		t.Error("defaultConfig should not enable TLS")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}
}
