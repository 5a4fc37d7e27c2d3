package scheduler

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the well-known port an EndpointSpec falls back to
// when it names only a host.
const DefaultPort = 9287

// EndpointSpec names one fleet member by host/port, as it would
// appear in a YAML roster. Port defaults to DefaultPort when zero.
type EndpointSpec struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config bundles everything a Scheduler needs to start: the fleet
// roster, per-call timeouts, and local-endpoint bootstrap parameters.
// The typed struct is the contract the core depends on; loading it
// from YAML is a convenience for callers, not a requirement.
type Config struct {
	Endpoints []EndpointSpec

	LocalHost string
	LocalPort int

	// LoadTimeout bounds list_methods + load-query round trips during placement.
	LoadTimeout time.Duration
	// RefreshTimeout bounds one handle.refresh call.
	RefreshTimeout time.Duration
	// ShowQueueTimeout bounds show_queue.
	ShowQueueTimeout time.Duration
	// LocalGracePeriod is how long ConnectToLocalServer waits after
	// spawning before re-probing, and the longest Close waits for the
	// local worker to acknowledge terminate.
	LocalGracePeriod time.Duration
	// LocalWorkerCount sizes the local endpoint's goroutine pool.
	LocalWorkerCount int
	// LocalBufferSize sizes the local endpoint's task/result channels.
	LocalBufferSize int
}

// DefaultConfig returns the baseline timeouts and bootstrap parameters.
func DefaultConfig() Config {
	return Config{
		LocalHost:        "localhost",
		LocalPort:        DefaultPort,
		LoadTimeout:      30 * time.Second,
		RefreshTimeout:   3 * time.Second,
		ShowQueueTimeout: 3 * time.Second,
		LocalGracePeriod: 3 * time.Second,
		LocalWorkerCount: 4,
		LocalBufferSize:  16,
	}
}

type fileConfig struct {
	Endpoints        []EndpointSpec `yaml:"endpoints"`
	LocalHost        string         `yaml:"local_host"`
	LocalPort        int            `yaml:"local_port"`
	LoadTimeout      string         `yaml:"load_timeout"`
	RefreshTimeout   string         `yaml:"refresh_timeout"`
	ShowQueueTimeout string         `yaml:"show_queue_timeout"`
	LocalGracePeriod string         `yaml:"local_grace_period"`
	LocalWorkerCount int            `yaml:"local_worker_count"`
	LocalBufferSize  int            `yaml:"local_buffer_size"`
}

// LoadConfig reads a YAML fleet roster from path, overlaying it on
// DefaultConfig. Durations are plain strings accepted by
// time.ParseDuration ("30s", "3s"), matching how operators write them
// by hand rather than forcing nanosecond integers into YAML.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	cfg.Endpoints = fc.Endpoints
	if fc.LocalHost != "" {
		cfg.LocalHost = fc.LocalHost
	}
	if fc.LocalPort != 0 {
		cfg.LocalPort = fc.LocalPort
	}
	if fc.LocalWorkerCount != 0 {
		cfg.LocalWorkerCount = fc.LocalWorkerCount
	}
	if fc.LocalBufferSize != 0 {
		cfg.LocalBufferSize = fc.LocalBufferSize
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.LoadTimeout, &cfg.LoadTimeout},
		{fc.RefreshTimeout, &cfg.RefreshTimeout},
		{fc.ShowQueueTimeout, &cfg.ShowQueueTimeout},
		{fc.LocalGracePeriod, &cfg.LocalGracePeriod},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		*d.dst = parsed
	}

	for i := range cfg.Endpoints {
		if cfg.Endpoints[i].Port == 0 {
			cfg.Endpoints[i].Port = DefaultPort
		}
	}
	return cfg, nil
}
