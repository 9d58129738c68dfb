package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Redis    RedisConfig    `yaml:"redis"`
	Notifier NotifierConfig `yaml:"notifier"`
	Digest   DigestConfig   `yaml:"digest"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host          string          `yaml:"host"`
	Port          string          `yaml:"port"`
	Mode          string          `yaml:"mode"` // debug, release, test
	AuthRateLimit RateLimitConfig `yaml:"auth_rate_limit"`
}

// RateLimitConfig throttles the public auth endpoints per client IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig enables the async notification dispatch queue.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NotifierConfig configures the outbound chat webhook. Type selects the
// message format: slack, wechat_work, dingtalk, feishu or generic.
type NotifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`
	Webhook string `yaml:"webhook"`
	Secret  string `yaml:"secret"`
}

// DigestConfig configures the daily open-task digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Country string `yaml:"country"` // ISO country code for the workday calendar
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          "8080",
			Mode:          "debug",
			AuthRateLimit: RateLimitConfig{RPS: 5, Burst: 10},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "teamforge.db",
		},
		JWT: JWTConfig{
			Secret:     "teamforge-secret-key-change-in-production",
			ExpireHour: 24,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Notifier: NotifierConfig{
			Enabled: false,
			Type:    "slack",
		},
		Digest: DigestConfig{
			Enabled: false,
			Country: "US",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if webhook := os.Getenv("NOTIFIER_WEBHOOK"); webhook != "" {
		c.Notifier.Enabled = true
		c.Notifier.Webhook = webhook
	}
	if notifierType := os.Getenv("NOTIFIER_TYPE"); notifierType != "" {
		c.Notifier.Type = notifierType
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = n
		}
	}
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
