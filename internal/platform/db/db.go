package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	driverName        = "mysql"
	DefaultConfigPath = "config/config.yaml"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// 0 のときは既定値
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	TLS  bool   `yaml:"tls"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RentalConfig struct {
	// 延滞スイープの間隔（0 で無効）
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	CreateRatePerMinute int           `yaml:"create_rate_per_minute"`
	CreateBurst         int           `yaml:"create_burst"`
	// 仮予約が同じ日程の新規予約を止めておく時間（0 で既定の30分、負で無効）
	PendingHold         time.Duration `yaml:"pending_hold"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	DB          DatabaseConfig `yaml:"database"`
	Certificate Certs          `yaml:"certificate"`
	Server      ServerConfig   `yaml:"server"`
	Auth        AuthConfig     `yaml:"auth"`
	Rental      RentalConfig   `yaml:"rental"`
	Tracing     TracingConfig  `yaml:"tracing"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 秘密情報は環境変数を優先する
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Rental.CreateRatePerMinute <= 0 {
		c.Rental.CreateRatePerMinute = 30
	}
	if c.Rental.CreateBurst <= 0 {
		c.Rental.CreateBurst = 5
	}
	if c.Rental.PendingHold == 0 {
		c.Rental.PendingHold = 30 * time.Minute
	} else if c.Rental.PendingHold < 0 {
		c.Rental.PendingHold = 0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "rental-backend"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	if c.DB.Host == "" || c.DB.DBName == "" {
		return fmt.Errorf("database.host and database.dbname are required")
	}
	return nil
}

func (c *Config) IsRelease() bool { return c.Mode == "release" }

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	maxOpen, maxIdle := 80, 20
	if c.MaxOpenConns > 0 {
		maxOpen = c.MaxOpenConns
	}
	if c.MaxIdleConns > 0 {
		maxIdle = c.MaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
