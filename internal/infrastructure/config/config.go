package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NoLoginAttemptThreshold disables lockout while failed attempts are still counted.
const NoLoginAttemptThreshold = -1

// DefaultServerPort is the port the front door listens on when none is configured.
const DefaultServerPort = 8123

// DefaultServerHost binds every interface.
const DefaultServerHost = "0.0.0.0"

// Config is the root configuration structure for the Gray Logic HTTP front door.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// HTTPConfig contains the front door server settings.
type HTTPConfig struct {
	// APIPassword is the shared secret. Empty leaves authentication open.
	APIPassword string `yaml:"api_password"`

	ServerHost string `yaml:"server_host"`
	ServerPort int    `yaml:"server_port"`

	// BaseURL overrides the advertised endpoint (e.g. behind a reverse proxy).
	BaseURL string `yaml:"base_url"`

	SSLCertificate string `yaml:"ssl_certificate"`
	SSLKey         string `yaml:"ssl_key"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// UseXForwardedFor trusts the first X-Forwarded-For address as the client.
	UseXForwardedFor bool `yaml:"use_x_forwarded_for"`

	// TrustedNetworks are CIDR ranges exempt from credential checks.
	TrustedNetworks []string `yaml:"trusted_networks"`

	// LoginAttemptsThreshold is the number of failed attempts that bans an
	// address. NoLoginAttemptThreshold (-1) never bans.
	LoginAttemptsThreshold int  `yaml:"login_attempts_threshold"`
	IPBanEnabled           bool `yaml:"ip_ban_enabled"`

	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
}

// HTTPTimeoutConfig contains HTTP timeout settings in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// TLSEnabled reports whether a certificate is configured.
func (h HTTPConfig) TLSEnabled() bool {
	return h.SSLCertificate != ""
}

// ParseTrustedNetworks converts TrustedNetworks into prefixes.
func (h HTTPConfig) ParseTrustedNetworks() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(h.TrustedNetworks))
	for _, cidr := range h.TrustedNetworks {
		p, err := parseNetwork(cidr)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

// parseNetwork accepts a CIDR or a bare address (treated as a single host).
func parseNetwork(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid trusted network %q: %w", s, err)
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted network %q: %w", s, err)
	}
	// Client addresses are unmapped before matching, so ::ffff:a.b.c.d/n
	// becomes a.b.c.d/(n-96).
	if p.Addr().Is4In6() {
		if p.Bits() < 96 {
			return netip.Prefix{}, fmt.Errorf("invalid trusted network %q: IPv4-mapped prefix shorter than /96", s)
		}
		p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
	}
	return p.Masked(), nil
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_HTTP_API_PASSWORD, GRAYLOGIC_HTTP_SERVER_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		HTTP: HTTPConfig{
			ServerHost:             DefaultServerHost,
			ServerPort:             DefaultServerPort,
			LoginAttemptsThreshold: NoLoginAttemptThreshold,
			IPBanEnabled:           true,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-http.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-http",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// HTTP
	if v := os.Getenv("GRAYLOGIC_HTTP_API_PASSWORD"); v != "" {
		cfg.HTTP.APIPassword = v
	}
	if v := os.Getenv("GRAYLOGIC_HTTP_SERVER_HOST"); v != "" {
		cfg.HTTP.ServerHost = v
	}
	if v := os.Getenv("GRAYLOGIC_HTTP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.ServerPort = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_HTTP_BASE_URL"); v != "" {
		cfg.HTTP.BaseURL = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.HTTP.ServerPort < 1 || c.HTTP.ServerPort > 65535 {
		errs = append(errs, "http.server_port must be between 1 and 65535")
	}

	// Certificate and key travel together.
	if (c.HTTP.SSLCertificate == "") != (c.HTTP.SSLKey == "") {
		errs = append(errs, "http.ssl_certificate and http.ssl_key must be set together")
	}

	if _, err := c.HTTP.ParseTrustedNetworks(); err != nil {
		errs = append(errs, "http.trusted_networks: "+err.Error())
	}

	if c.HTTP.LoginAttemptsThreshold != NoLoginAttemptThreshold && c.HTTP.LoginAttemptsThreshold < 1 {
		errs = append(errs, "http.login_attempts_threshold must be -1 or a positive integer")
	}

	if c.HTTP.IPBanEnabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when http.ip_ban_enabled is set")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the read timeout as a Duration.
func (t HTTPTimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t HTTPTimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the keep-alive idle timeout as a Duration.
func (t HTTPTimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
