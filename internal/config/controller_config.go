// Package config holds the two services' configuration trees, adapted
// from the teacher's coordinator/storage-node config loaders: viper +
// mapstructure for the controller (a config-store-backed service), and
// plain yaml.v3 for the storage node (a file-deployed daemon).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// ControllerConfig is the admin consumption side's configuration tree
// (spec.md §4.A-§4.F, §5).
type ControllerConfig struct {
	Server   ControllerServerConfig `mapstructure:"server"`
	Cluster  ClusterConfig          `mapstructure:"cluster"`
	Postgres PostgresConfig         `mapstructure:"postgres"`
	Redis    RedisConfig            `mapstructure:"redis"`
	Gossip   GossipConfig           `mapstructure:"gossip"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

type ControllerServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	NodeID          string        `mapstructure:"node_id"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ClusterConfig holds the per-cluster admin consumption tunables
// spec.md §4.A-§4.F name directly.
type ClusterConfig struct {
	Name                        string        `mapstructure:"name"`
	Topic                       string        `mapstructure:"topic"`
	Partition                   int32         `mapstructure:"partition"`
	ReadCycleDelay              time.Duration `mapstructure:"read_cycle_delay"`
	ProcessingCycleTimeout      time.Duration `mapstructure:"processing_cycle_timeout"`
	PollTimeout                 time.Duration `mapstructure:"poll_timeout"`
	MaxExecutionWorkers         int           `mapstructure:"max_execution_workers"`
	IsTopLevelController        bool          `mapstructure:"is_top_level_controller"`
	AdminTopicReplicationFactor int32         `mapstructure:"admin_topic_replication_factor"`
}

type PostgresConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type GossipConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BindAddr      string        `mapstructure:"bind_addr"`
	BindPort      int           `mapstructure:"bind_port"`
	SeedNodes     []string      `mapstructure:"seed_nodes"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		Server: ControllerServerConfig{Host: "0.0.0.0", Port: 6901, ShutdownTimeout: 30 * time.Second},
		Cluster: ClusterConfig{
			Partition:              0,
			ReadCycleDelay:         time.Second,
			ProcessingCycleTimeout: 30 * time.Second,
			PollTimeout:            time.Second,
			MaxExecutionWorkers:    8,
		},
		Redis:   RedisConfig{TTL: 5 * time.Minute},
		Metrics: MetricsConfig{Enabled: true, Port: 9001, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadControllerConfig reads configPath via viper, falling back to
// defaults if the file is absent, then applies environment overrides
// (which take precedence), matching the teacher's Load function.
func LoadControllerConfig(configPath string) (*ControllerConfig, error) {
	cfg := DefaultControllerConfig()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read config file %s: %v, using defaults and environment variables\n", configPath, err)
	} else if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal controller config: %w", err)
	}

	applyControllerEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyControllerEnvOverrides(cfg *ControllerConfig) {
	if v := os.Getenv("CONTROLLER_NODE_ID"); v != "" {
		cfg.Server.NodeID = v
	}
	if v := os.Getenv("CLUSTER_NAME"); v != "" {
		cfg.Cluster.Name = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = p
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *ControllerConfig) Validate() error {
	if c.Cluster.Name == "" {
		return errors.New("cluster.name is required")
	}
	if c.Cluster.Topic == "" {
		return errors.New("cluster.topic is required")
	}
	if c.Cluster.MaxExecutionWorkers <= 0 {
		return errors.New("cluster.max_execution_workers must be positive")
	}
	if c.Postgres.Host == "" {
		return errors.New("postgres.host is required")
	}
	if c.Postgres.Database == "" {
		return errors.New("postgres.database is required")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
