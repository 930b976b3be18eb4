// Simulator configuration
//
// The configuration is loaded from a YAML file, with the following structure:
//
//  yak_config:
//    kernel_config:
//      ...
//    log_config:
//      ...
//    host_monitor_config:
//      ...
//    diag_server_config:
//      ...
//
// The "yak_config" section maps to the Config structure defined in this
// package. cmd/yakdemo additionally reads its own demo-specific section,
// which is not defined here.

package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/philipce/yak-kernel/internal/core"
	"github.com/philipce/yak-kernel/internal/diagserver"
	"github.com/philipce/yak-kernel/internal/hostmonitor"
	"github.com/philipce/yak-kernel/internal/kernlog"
)

const (
	YakConfigSectionName = "yak_config"

	DefaultIdleStackSize = 256
)

// KernelConfig mirrors core.Config, adding the idle task's diagnostic
// stack size (original_source/yak-rtos/user.h's IDLESTACKSIZE).
type KernelConfig struct {
	MaxTasks      int `yaml:"max_tasks"`
	MaxSemaphores int `yaml:"max_semaphores"`
	MaxQueues     int `yaml:"max_queues"`
	IdleStackSize int `yaml:"idle_stack_size"`
}

func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		MaxTasks:      core.DefaultMaxTasks,
		MaxSemaphores: core.DefaultMaxSemaphores,
		MaxQueues:     core.DefaultMaxQueues,
		IdleStackSize: DefaultIdleStackSize,
	}
}

func (c *KernelConfig) CoreConfig() core.Config {
	return core.Config{
		MaxTasks:      c.MaxTasks,
		MaxSemaphores: c.MaxSemaphores,
		MaxQueues:     c.MaxQueues,
	}
}

// Config is the top-level configuration, the "yak_config" YAML section.
type Config struct {
	LoggerConfig      *kernlog.Config     `yaml:"log_config"`
	KernelConfig      *KernelConfig       `yaml:"kernel_config"`
	HostMonitorConfig *hostmonitor.Config `yaml:"host_monitor_config"`
	DiagServerConfig  *diagserver.Config  `yaml:"diag_server_config"`
}

func DefaultConfig() *Config {
	return &Config{
		LoggerConfig:      kernlog.DefaultConfig(),
		KernelConfig:      DefaultKernelConfig(),
		HostMonitorConfig: hostmonitor.DefaultConfig(),
		DiagServerConfig:  diagserver.DefaultConfig(),
	}
}

// LoadConfig loads the configuration from the specified YAML file (or buf,
// for testing) as follows: the "yak_config" section is decoded into a
// *Config seeded with defaults; extraConfig, if non-nil, receives the
// decoded content of extraSectionName (cmd/yakdemo's own section),
// expected to have been pre-populated with its own defaults.
func LoadConfig(cfgFile string, buf []byte, extraSectionName string, extraConfig any) (*Config, error) {
	if buf == nil {
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
		}
	}

	docNode := yaml.Node{}
	if err := yaml.Unmarshal(buf, &docNode); err != nil {
		return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
	}

	cfg := DefaultConfig()
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) > 0 {
		rootNode := docNode.Content[0]
		if rootNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("file: %q: invalid YAML root node %q", cfgFile, rootNode.Tag)
		}
		var toCfg any
		for _, n := range rootNode.Content {
			if n.Kind == yaml.ScalarNode {
				toCfg = nil
				switch n.Value {
				case YakConfigSectionName:
					toCfg = cfg
				case extraSectionName:
					toCfg = extraConfig
				}
				continue
			}
			if n.Kind == yaml.MappingNode && toCfg != nil {
				if err := n.Decode(toCfg); err != nil {
					return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
				}
			}
			toCfg = nil
		}
	}

	return cfg, nil
}
