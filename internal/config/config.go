package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the job event channel configuration. The broker is
// optional: with Enabled false, workers rely on polling alone.
type RabbitMQConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	VHost             string        `yaml:"vhost"`
	Exchange          string        `yaml:"exchange"`
	ExchangeType      string        `yaml:"exchange_type"`
	Queue             string        `yaml:"queue"`
	RoutingKey        string        `yaml:"routing_key"`
	Durable           bool          `yaml:"durable"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// QueueConfig holds item queue settings
type QueueConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Role              string        `yaml:"role"`
	Concurrency       int           `yaml:"concurrency"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ItemTimeout       time.Duration `yaml:"item_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// MonitorConfig holds completion/stuck detection settings
type MonitorConfig struct {
	JobTimeout    time.Duration `yaml:"job_timeout"`
	StaleDuration time.Duration `yaml:"stale_duration"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.StaleAfter <= 0 {
		c.Queue.StaleAfter = 30 * time.Minute
	}
	if c.Monitor.JobTimeout <= 0 {
		c.Monitor.JobTimeout = time.Hour
	}
	if c.Monitor.StaleDuration <= 0 {
		c.Monitor.StaleDuration = 10 * time.Minute
	}
	if c.Monitor.ProbeTimeout <= 0 {
		c.Monitor.ProbeTimeout = 5 * time.Second
	}
}

// ValidateAPIConfig checks the fields the API service depends on.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateWorkerConfig checks the fields the worker service depends on.
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Role == "" {
		return fmt.Errorf("worker role is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return c.validateShared()
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}

		if c.RabbitMQ.Queue == "" {
			return fmt.Errorf("rabbitmq queue name is required")
		}
	}

	return nil
}
