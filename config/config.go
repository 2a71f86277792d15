package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig        `yaml:"http"`
	GRPC     GRPCConfig        `yaml:"grpc"`
	Log      LogConfig         `yaml:"log"`
	Database DatabaseConfig    `yaml:"database"`
	Redis    RedisConfig       `yaml:"redis"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	Services map[string]string `yaml:"services"`
	Flow     FlowConfig        `yaml:"flow"`
	Auth     AuthConfig        `yaml:"auth"`
	CORS     CORSConfig        `yaml:"cors"`
	Upstream UpstreamConfig    `yaml:"upstream"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Enabled reports whether a database host is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	FlowEventsTopic    string   `yaml:"flow_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type FlowConfig struct {
	SessionTTLMinutes int     `yaml:"session_ttl_minutes"`
	LockTTLSeconds    int     `yaml:"lock_ttl_seconds"`
	TaxRate           float64 `yaml:"tax_rate"`
	Currency          string  `yaml:"currency"`
	ClassType         string  `yaml:"class_type"`
	SecureCookie      bool    `yaml:"secure_cookie"`
}

func (f FlowConfig) SessionTTL() time.Duration {
	return time.Duration(f.SessionTTLMinutes) * time.Minute
}

func (f FlowConfig) LockTTL() time.Duration {
	return time.Duration(f.LockTTLSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type UpstreamConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Flow.SessionTTLMinutes <= 0 {
		c.Flow.SessionTTLMinutes = 30
	}
	if c.Flow.LockTTLSeconds <= 0 {
		c.Flow.LockTTLSeconds = 30
	}
	if c.Flow.TaxRate == 0 {
		c.Flow.TaxRate = 0.15
	}
	if c.Flow.Currency == "" {
		c.Flow.Currency = "USD"
	}
	if c.Flow.ClassType == "" {
		c.Flow.ClassType = "economy"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "journeygate-worker"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Flow-Session", "X-Request-ID"}
	}
}
