// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/scmi"
	"github.com/u-root/u-pwrc/pkg/scp"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Set with -ldflags "-X github.com/u-root/u-pwrc/config.gitVersion=..."
var (
	gitVersion = "dev"
	gitHash    = "unknown"
)

type Version struct {
	Version string `yaml:"version"`
	GitHash string `yaml:"git_hash"`
}

// Channel locates the SCMI mailbox and its doorbell.
type Channel struct {
	Base         uint64 `yaml:"base"`
	Doorbell     uint64 `yaml:"doorbell"`
	PreserveMask uint32 `yaml:"preserve_mask"`
	ModifyMask   uint32 `yaml:"modify_mask"`
}

type Topology struct {
	CoresPerCluster []int `yaml:"cores_per_cluster"`
	MaxLevel        uint  `yaml:"max_level"`
	SystemLevel     uint  `yaml:"system_level"`
}

type Shutdown struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
}

type Listen struct {
	GRPC    string `yaml:"grpc"`
	Metrics string `yaml:"metrics"`
	// MaxConnections caps concurrent gRPC connections, 0 is unlimited.
	MaxConnections int `yaml:"max_connections"`
}

// Simulation replaces the SCP by an in-process model.
type Simulation struct {
	Enabled               bool   `yaml:"enabled"`
	SystemPowerAttributes uint32 `yaml:"system_power_attributes"`
	GracefulPolls         int    `yaml:"graceful_polls"`
}

type Config struct {
	Platform    string   `yaml:"platform"`
	Channel     Channel  `yaml:"channel"`
	Topology    Topology `yaml:"topology"`
	CoreDomains []uint32 `yaml:"core_domains"`
	// TrustedMailbox is the reset address programmed through the AP core
	// protocol. Zero leaves it alone.
	TrustedMailbox uint64     `yaml:"trusted_mailbox"`
	Shutdown       Shutdown   `yaml:"shutdown"`
	Listen         Listen     `yaml:"listen"`
	Simulate       Simulation `yaml:"simulate"`
	LogLevel       string     `yaml:"log_level"`
	LogFile        string     `yaml:"log_file"`
	Version        Version    `yaml:"-"`
}

var DefaultConfig = &Config{
	// A Juno r2: two Cortex-A72 and four Cortex-A53, the system domain
	// right above the clusters.
	Platform: "juno",
	Channel: Channel{
		Base:         0x04000080,
		Doorbell:     0x2b1f0020,
		PreserveMask: 0xfffffffe,
		ModifyMask:   0x1,
	},
	Topology: Topology{
		CoresPerCluster: []int{2, 4},
		MaxLevel:        2,
		SystemLevel:     2,
	},
	CoreDomains: []uint32{0, 1, 2, 3, 4, 5},

	// Give the other agents a few seconds to shut down cleanly before the
	// SCP is told to pull the plug.
	Shutdown: Shutdown{
		GracefulTimeout: 5 * time.Second,
		PollInterval:    10 * time.Millisecond,
		MaxPollInterval: 500 * time.Millisecond,
	},

	Listen: Listen{
		GRPC:           "localhost:7575",
		Metrics:        "localhost:9575",
		MaxConnections: 16,
	},

	Simulate: Simulation{
		SystemPowerAttributes: scmi.SystemPowerSuspendSupported | scmi.SystemPowerWarmResetSupported,
		GracefulPolls:         3,
	},

	LogLevel: "info",

	Version: Version{
		Version: gitVersion,
		GitHash: gitHash,
	},
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	n := *c
	n.Topology.CoresPerCluster = append([]int(nil), c.Topology.CoresPerCluster...)
	n.CoreDomains = append([]uint32(nil), c.CoreDomains...)
	return &n
}

// Load reads the YAML file at path from fs on top of a copy of base.
// Fields missing from the file keep the value they have in base.
func Load(fs afero.Fs, path string, base *Config) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := base.Clone()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// PsciTopology returns the topology in the form the power code uses.
func (c *Config) PsciTopology() psci.Topology {
	return psci.Topology{
		CoresPerCluster: c.Topology.CoresPerCluster,
		MaxLevel:        c.Topology.MaxLevel,
		SystemLevel:     c.Topology.SystemLevel,
	}
}

// SCP returns the SCP client configuration.
func (c *Config) SCP() scp.Config {
	return scp.Config{Topology: c.PsciTopology(), CoreDomains: c.CoreDomains}
}

// ChannelInfo returns the mailbox description.
func (c *Config) ChannelInfo() scmi.ChannelInfo {
	return scmi.ChannelInfo{
		Base:                 uintptr(c.Channel.Base),
		DoorbellAddr:         uintptr(c.Channel.Doorbell),
		DoorbellPreserveMask: c.Channel.PreserveMask,
		DoorbellModifyMask:   c.Channel.ModifyMask,
	}
}

// Validate reports every inconsistency in c at once.
func (c *Config) Validate() error {
	var err error
	if c.Channel.Base%4 != 0 || c.Channel.Doorbell%4 != 0 {
		err = multierr.Append(err, fmt.Errorf("mailbox %#x and doorbell %#x must be word aligned", c.Channel.Base, c.Channel.Doorbell))
	}
	if c.Channel.ModifyMask == 0 {
		err = multierr.Append(err, fmt.Errorf("doorbell modify mask is empty"))
	}
	err = multierr.Append(err, c.SCP().Validate())
	seen := map[uint32]bool{}
	for _, d := range c.CoreDomains {
		if seen[d] {
			err = multierr.Append(err, fmt.Errorf("core domain %d used twice", d))
		}
		seen[d] = true
	}
	if c.Shutdown.GracefulTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("negative graceful timeout %v", c.Shutdown.GracefulTimeout))
	}
	if c.Listen.GRPC == "" {
		err = multierr.Append(err, fmt.Errorf("no gRPC listen address"))
	}
	if c.Listen.MaxConnections < 0 {
		err = multierr.Append(err, fmt.Errorf("negative connection limit %d", c.Listen.MaxConnections))
	}
	return err
}
