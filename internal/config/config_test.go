package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "reqpipe_db", cfg.Database.Database)
				assert.True(t, cfg.RabbitMQ.Enabled)
				assert.Equal(t, "reqpipe_events", cfg.RabbitMQ.Exchange)
				assert.Equal(t, "reqpipe_wake", cfg.RabbitMQ.Queue)
				assert.Equal(t, "reqpipe-api", cfg.App.Name)
				assert.Equal(t, 5, cfg.Queue.MaxRetries)
				assert.Equal(t, 45*time.Minute, cfg.Queue.StaleAfter)
				assert.Equal(t, "validator", cfg.Worker.Role)
				assert.Equal(t, 4, cfg.Worker.Concurrency)
				assert.Equal(t, 2*time.Hour, cfg.Monitor.JobTimeout)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	// probe_timeout is absent from the file and must be defaulted
	assert.Equal(t, 5*time.Second, cfg.Monitor.ProbeTimeout)

	t.Run("zero values get replaced", func(t *testing.T) {
		c := &Config{}
		c.applyDefaults()

		assert.Equal(t, 3, c.Queue.MaxRetries)
		assert.Equal(t, 30*time.Minute, c.Queue.StaleAfter)
		assert.Equal(t, time.Hour, c.Monitor.JobTimeout)
		assert.Equal(t, 10*time.Minute, c.Monitor.StaleDuration)
		assert.Equal(t, 5*time.Second, c.Monitor.ProbeTimeout)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		c := &Config{
			Queue:   QueueConfig{MaxRetries: 7, StaleAfter: time.Minute},
			Monitor: MonitorConfig{JobTimeout: 3 * time.Hour},
		}
		c.applyDefaults()

		assert.Equal(t, 7, c.Queue.MaxRetries)
		assert.Equal(t, time.Minute, c.Queue.StaleAfter)
		assert.Equal(t, 3*time.Hour, c.Monitor.JobTimeout)
	})
}

func validBase() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "reqpipe_db",
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5672,
			Exchange: "reqpipe_events",
			Queue:    "reqpipe_wake",
		},
		Worker: WorkerConfig{
			Role:              "extractor",
			Concurrency:       2,
			PollInterval:      time.Second,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host when enabled",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name when enabled",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name when enabled",
			mutate:    func(c *Config) { c.RabbitMQ.Queue = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name: "rabbitmq fields ignored when disabled",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{Enabled: false}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "missing role",
			mutate:    func(c *Config) { c.Worker.Role = "" },
			wantErr:   true,
			errString: "worker role is required",
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero poll interval",
			mutate:    func(c *Config) { c.Worker.PollInterval = 0 },
			wantErr:   true,
			errString: "worker poll_interval must be greater than 0",
		},
		{
			name:      "zero heartbeat interval",
			mutate:    func(c *Config) { c.Worker.HeartbeatInterval = 0 },
			wantErr:   true,
			errString: "worker heartbeat_interval must be greater than 0",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "worker shutdown_timeout must be greater than 0",
		},
		{
			name:      "shared database checks still apply",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
