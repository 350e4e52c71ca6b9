package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageNodeConfig is the read side's configuration tree (spec.md §4.G-
// §4.K), adapted from the teacher's storage-node Config.
type StorageNodeConfig struct {
	Server   StorageServerConfig `yaml:"server"`
	Storage  StorageDirConfig    `yaml:"storage"`
	ReadPool ReadPoolConfig      `yaml:"read_pool"`
	Gossip   GossipConfig        `yaml:"gossip"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Logging  LoggingConfig       `yaml:"logging"`
}

type StorageServerConfig struct {
	NodeID          string        `yaml:"node_id"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageDirConfig struct {
	DataDir      string  `yaml:"data_dir"`
	MaxDiskUsage float64 `yaml:"max_disk_usage"`
}

// ReadPoolConfig sizes the two bounded worker pools spec.md §4.G and §5
// describe, independently.
type ReadPoolConfig struct {
	GetPoolWorkers       int `yaml:"get_pool_workers"`
	GetPoolQueueSize     int `yaml:"get_pool_queue_size"`
	ComputePoolWorkers   int `yaml:"compute_pool_workers"`
	ComputePoolQueueSize int `yaml:"compute_pool_queue_size"`
	ParallelChunkSize    int `yaml:"parallel_chunk_size"`
}

func DefaultStorageNodeConfig() *StorageNodeConfig {
	return &StorageNodeConfig{
		Server:  StorageServerConfig{Host: "0.0.0.0", Port: 50052, ShutdownTimeout: 30 * time.Second},
		Storage: StorageDirConfig{DataDir: "/var/lib/corestore", MaxDiskUsage: 0.9},
		ReadPool: ReadPoolConfig{
			GetPoolWorkers:       16,
			GetPoolQueueSize:     1000,
			ComputePoolWorkers:   8,
			ComputePoolQueueSize: 500,
			ParallelChunkSize:    50,
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9002, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadStorageNodeConfig reads and validates a YAML config file,
// matching the teacher's LoadConfig function.
func LoadStorageNodeConfig(filePath string) (*StorageNodeConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultStorageNodeConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *StorageNodeConfig) Validate() error {
	if c.Server.NodeID == "" {
		return fmt.Errorf("server.node_id is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.ReadPool.GetPoolWorkers <= 0 || c.ReadPool.ComputePoolWorkers <= 0 {
		return fmt.Errorf("read_pool worker counts must be positive")
	}
	return nil
}
