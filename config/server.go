package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultListeningAddr is the default server address.
const DefaultListeningAddr = "127.0.0.1:20160"

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_.-]*[A-Za-z0-9])?$`)

// ServerConfig configures the store's RPC server.
type ServerConfig struct {
	// ClusterID is assigned at runtime and never serialized.
	ClusterID uint64 `toml:"-" yaml:"-"`

	Addr                        string            `toml:"addr" yaml:"addr"`
	AdvertiseAddr               string            `toml:"advertise-addr" yaml:"advertise-addr"`
	NotifyCapacity              int               `toml:"notify-capacity" yaml:"notify-capacity"`
	MessagesPerTick             int               `toml:"messages-per-tick" yaml:"messages-per-tick"`
	GRPCConcurrency             int               `toml:"grpc-concurrency" yaml:"grpc-concurrency"`
	GRPCConcurrentStream        int               `toml:"grpc-concurrent-stream" yaml:"grpc-concurrent-stream"`
	GRPCRaftConnNum             int               `toml:"grpc-raft-conn-num" yaml:"grpc-raft-conn-num"`
	GRPCStreamInitialWindowSize ReadableSize      `toml:"grpc-stream-initial-window-size" yaml:"grpc-stream-initial-window-size"`
	EndPointConcurrency         int               `toml:"end-point-concurrency" yaml:"end-point-concurrency"`
	EndPointMaxTasks            int               `toml:"end-point-max-tasks" yaml:"end-point-max-tasks"`
	Labels                      map[string]string `toml:"labels" yaml:"labels"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                        DefaultListeningAddr,
		NotifyCapacity:              40960,
		MessagesPerTick:             4096,
		GRPCConcurrency:             4,
		GRPCConcurrentStream:        1024,
		GRPCRaftConnNum:             10,
		GRPCStreamInitialWindowSize: 2 * MB,
		EndPointConcurrency:         4,
		EndPointMaxTasks:            2000,
		Labels:                      map[string]string{},
	}
}

func (c *ServerConfig) validate() error {
	if err := checkAddr(c.Addr); err != nil {
		return fmt.Errorf("server.addr: %w", err)
	}
	if c.AdvertiseAddr != "" {
		if err := checkAddr(c.AdvertiseAddr); err != nil {
			return fmt.Errorf("server.advertise-addr: %w", err)
		}
		if strings.HasPrefix(c.AdvertiseAddr, "0.") {
			return invalidf("server.advertise-addr %q: unspecified host", c.AdvertiseAddr)
		}
	}

	positive := []struct {
		key string
		v   int
	}{
		{"notify-capacity", c.NotifyCapacity},
		{"messages-per-tick", c.MessagesPerTick},
		{"grpc-concurrency", c.GRPCConcurrency},
		{"grpc-concurrent-stream", c.GRPCConcurrentStream},
		{"grpc-raft-conn-num", c.GRPCRaftConnNum},
		{"end-point-concurrency", c.EndPointConcurrency},
		{"end-point-max-tasks", c.EndPointMaxTasks},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return invalidf("server.%s must be positive, got %d", p.key, p.v)
		}
	}

	keys := make([]string, 0, len(c.Labels))
	for k := range c.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !labelPattern.MatchString(k) {
			return invalidf("server.labels: invalid key %q", k)
		}
		if v := c.Labels[k]; !labelPattern.MatchString(v) {
			return invalidf("server.labels: invalid value %q for key %q", v, k)
		}
	}
	return nil
}

// StoreAddr returns the address other stores should dial.
func (c *ServerConfig) StoreAddr() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return c.Addr
}
