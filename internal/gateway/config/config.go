package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/hashing"
	"github.com/anthanhphan/go-memcached-cluster/pkg/resilience"
	"github.com/anthanhphan/go-memcached-cluster/pkg/shard"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds gateway configuration
type Config struct {
	Server   ServerConfig    `json:"server" yaml:"server"`
	App      AppConfig       `json:"app" yaml:"app"`
	Clusters []ClusterConfig `json:"clusters" yaml:"clusters"`
	Logger   logger.Config   `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr"`
}

type AppConfig struct {
	OperationTimeoutMS int   `json:"operation_timeout_ms" yaml:"operation_timeout_ms"`
	HealthIntervalMS   int   `json:"health_interval_ms" yaml:"health_interval_ms"`
	MaxValueSize       int64 `json:"max_value_size" yaml:"max_value_size"`
}

type ClusterConfig struct {
	Name      string   `json:"name" yaml:"name"`
	Endpoints []string `json:"endpoints" yaml:"endpoints"`
	Locator   string   `json:"locator" yaml:"locator"` // "ketama", "jump"
	Hash      string   `json:"hash" yaml:"hash"`       // jump only: "murmur3", "xxhash"

	BufferSize       int `json:"buffer_size" yaml:"buffer_size"`
	ConnectTimeoutMS int `json:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	SendTimeoutMS    int `json:"send_timeout_ms" yaml:"send_timeout_ms"`
	ReceiveTimeoutMS int `json:"receive_timeout_ms" yaml:"receive_timeout_ms"`
	ReconnectWorkers int `json:"reconnect_workers" yaml:"reconnect_workers"`

	FailurePolicy   FailurePolicyConfig   `json:"failure_policy" yaml:"failure_policy"`
	ReconnectPolicy ReconnectPolicyConfig `json:"reconnect_policy" yaml:"reconnect_policy"`
}

type FailurePolicyConfig struct {
	Type      string `json:"type" yaml:"type"` // "immediate", "throttling"
	Threshold int    `json:"threshold" yaml:"threshold"`
	WindowMS  int    `json:"window_ms" yaml:"window_ms"`
}

type ReconnectPolicyConfig struct {
	Type       string `json:"type" yaml:"type"` // "periodic", "backoff"
	IntervalMS int    `json:"interval_ms" yaml:"interval_ms"`
	MaxMS      int    `json:"max_ms" yaml:"max_ms"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8090",
			GRPCAddr: ":9090",
		},
		App: AppConfig{
			OperationTimeoutMS: 2000,
			HealthIntervalMS:   5000,
			MaxValueSize:       1024 * 1024, // memcached default item size
		},
		Clusters: []ClusterConfig{
			{
				Name:      "default",
				Endpoints: []string{"localhost:11211"},
				Locator:   "ketama",
				FailurePolicy: FailurePolicyConfig{
					Type: "immediate",
				},
				ReconnectPolicy: ReconnectPolicyConfig{
					Type:       "periodic",
					IntervalMS: 10000,
				},
			},
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

func (c *Config) OperationTimeout() time.Duration {
	return millis(c.App.OperationTimeoutMS)
}

func (c *Config) HealthInterval() time.Duration {
	return millis(c.App.HealthIntervalMS)
}

// Validate checks the cluster definitions.
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster is required")
	}
	seen := make(map[string]bool, len(c.Clusters))
	for _, cc := range c.Clusters {
		if cc.Name == "" {
			return fmt.Errorf("cluster name is required")
		}
		if seen[cc.Name] {
			return fmt.Errorf("duplicate cluster %q", cc.Name)
		}
		seen[cc.Name] = true
		if len(cc.Endpoints) == 0 {
			return fmt.Errorf("cluster %q has no endpoints", cc.Name)
		}
	}
	return nil
}

// ClusterOptions converts the definition into cluster options. The response
// factory is left to the caller.
func (cc ClusterConfig) ClusterOptions(metrics *cluster.Metrics) (cluster.Config, error) {
	cfg := cluster.Config{
		Name:      cc.Name,
		Endpoints: cc.Endpoints,
		Socket: cluster.SocketConfig{
			ConnectTimeout: millis(cc.ConnectTimeoutMS),
			SendTimeout:    millis(cc.SendTimeoutMS),
			ReceiveTimeout: millis(cc.ReceiveTimeoutMS),
			BufferSize:     cc.BufferSize,
		},
		ReconnectWorkers: cc.ReconnectWorkers,
		Metrics:          metrics,
	}

	switch cc.Locator {
	case "", "ketama":
		cfg.Locator = shard.NewKetama[*cluster.Node](shard.DefaultMutations, hashing.Murmur32)
	case "jump":
		cfg.Locator = shard.NewJumpLocator[*cluster.Node](hashing.Hash64ByName(cc.Hash))
	default:
		return cfg, fmt.Errorf("cluster %q: unknown locator %q", cc.Name, cc.Locator)
	}

	switch cc.FailurePolicy.Type {
	case "", "immediate":
		cfg.FailurePolicy = resilience.ImmediateFactory()
	case "throttling":
		cfg.FailurePolicy = resilience.ThrottlingFactory(resilience.ThrottlingConfig{
			Threshold: cc.FailurePolicy.Threshold,
			Window:    millis(cc.FailurePolicy.WindowMS),
		})
	default:
		return cfg, fmt.Errorf("cluster %q: unknown failure policy %q", cc.Name, cc.FailurePolicy.Type)
	}

	switch cc.ReconnectPolicy.Type {
	case "", "periodic":
		interval := millis(cc.ReconnectPolicy.IntervalMS)
		if interval <= 0 {
			interval = 10 * time.Second
		}
		cfg.ReconnectPolicy = resilience.Periodic{Interval: interval}
	case "backoff":
		cfg.ReconnectPolicy = resilience.NewBackoff(millis(cc.ReconnectPolicy.IntervalMS), millis(cc.ReconnectPolicy.MaxMS))
	default:
		return cfg, fmt.Errorf("cluster %q: unknown reconnect policy %q", cc.Name, cc.ReconnectPolicy.Type)
	}

	return cfg, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "gateway", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		// The logger is not initialized yet.
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
