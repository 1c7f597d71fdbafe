// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scp turns PSCI power management requests for a CPU into SCMI
// commands for the System Control Processor.
//
// Requests that cannot be undone once issued return a *CommandError when
// the SCP refuses them. The caller is expected to halt on those, this
// package never does.
package scp

import (
	"fmt"

	"github.com/u-root/u-pwrc/pkg/logger"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/pwrstate"
	"github.com/u-root/u-pwrc/pkg/scmi"
	"go.uber.org/zap"
)

// Transport is the subset of the SCMI agent the client needs. It is
// implemented by *scmi.Channel.
type Transport interface {
	ProtocolVersion(p scmi.ProtocolID) (uint32, scmi.Status, error)
	ProtocolMessageAttributes(p scmi.ProtocolID, m scmi.MessageID) (uint32, scmi.Status, error)
	PowerStateSet(domain uint32, w pwrstate.Word) (scmi.Status, error)
	PowerStateGet(domain uint32) (pwrstate.Word, scmi.Status, error)
	SystemPowerStateSet(flags scmi.SystemPowerFlags, s scmi.SystemState) (scmi.Status, error)
	SystemPowerStateGet() (scmi.SystemState, scmi.Status, error)
	APCoreResetAddrSet(addr uint64, attr uint32) (scmi.Status, error)
}

// Config is what the platform tells the client about itself.
type Config struct {
	Topology psci.Topology
	// CoreDomains maps a core position to the SCMI power domain of that
	// core.
	CoreDomains []uint32
}

// Validate checks that every core has a domain and that the topology fits
// a power state word.
func (c Config) Validate() error {
	if err := c.Topology.Validate(); err != nil {
		return err
	}
	if c.Topology.MaxLevel > pwrstate.MaxDescribedLevel {
		return fmt.Errorf("max power level %d cannot be described by SCMI", c.Topology.MaxLevel)
	}
	if n := c.Topology.CoreCount(); len(c.CoreDomains) != n {
		return fmt.Errorf("%d core domains for %d cores", len(c.CoreDomains), n)
	}
	return nil
}

// Client issues power management commands on behalf of the CPUs. It is
// safe for concurrent use as long as the Transport is.
type Client struct {
	t    Transport
	cfg  Config
	log  *zap.Logger
	caps Capabilities
}

// New returns a client for t. A nil logger selects the process logger.
func New(t Transport, cfg Config, log *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scp config: %w", err)
	}
	if log == nil {
		log = logger.LogContainer.GetLogger()
	}
	return &Client{t: t, cfg: cfg, log: log}, nil
}

// Topology returns the topology the client was configured with.
func (c *Client) Topology() psci.Topology {
	return c.cfg.Topology
}

func (c *Client) domain(core int) uint32 {
	if core < 0 || core >= len(c.cfg.CoreDomains) {
		panic(fmt.Sprintf("core position %d out of range", core))
	}
	return c.cfg.CoreDomains[core]
}

func (c *Client) systemState(target psci.PowerState) psci.LocalState {
	return target.Level[c.cfg.Topology.SystemLevel]
}

// offLevels sets every level from first up to the first running level to
// OFF and records the last one as max level.
func (c *Client) offLevels(w pwrstate.Word, target psci.PowerState, first uint) pwrstate.Word {
	lvl := first
	for ; lvl <= c.cfg.Topology.MaxLevel; lvl++ {
		if target.Level[lvl] == psci.Run {
			break
		}
		if target.Level[lvl] != psci.Off {
			panic(fmt.Sprintf("level %d of %v is neither RUN nor OFF", lvl, target))
		}
		w = w.SetLevel(lvl, pwrstate.Off)
	}
	return w.SetMaxLevel(lvl - 1)
}

// Suspend suspends core and the parent domains target powers down. A
// system level power down is sent as a system suspend.
func (c *Client) Suspend(core int, target psci.PowerState) error {
	if target.Level[0] != psci.Off {
		panic(fmt.Sprintf("suspend of core %d with core level %v", core, target.Level[0]))
	}

	if c.systemState(target) == psci.Off {
		st, err := c.t.SystemPowerStateSet(scmi.Forceful, scmi.SystemSuspend)
		if err != nil || st != scmi.Success {
			return &CommandError{Op: "system power domain suspend", Domain: SystemDomain, Status: st, Err: err}
		}
		return nil
	}
	if c.systemState(target) != psci.Run {
		panic(fmt.Sprintf("suspend of core %d with system level %v", core, c.systemState(target)))
	}

	w := pwrstate.Word(0).SetLevel(0, pwrstate.Sleep)
	w = c.offLevels(w, target, 1)
	d := c.domain(core)
	c.log.Debug("suspend", zap.Int("core", core), zap.Uint32("domain", d), zap.Stringer("state", w))
	st, err := c.t.PowerStateSet(d, w)
	if err != nil || st != scmi.Success {
		return &CommandError{Op: "set power state", Domain: int64(d), Status: st, Err: err}
	}
	return nil
}

// Off powers down core and the parent domains target powers down. QUEUED
// is a success: the SCP applies the request once the rest of the cluster
// is down.
func (c *Client) Off(core int, target psci.PowerState) error {
	if target.Level[0] != psci.Off {
		panic(fmt.Sprintf("off of core %d with core level %v", core, target.Level[0]))
	}
	if c.systemState(target) != psci.Run {
		panic(fmt.Sprintf("off of core %d cannot power down the system", core))
	}

	w := c.offLevels(0, target, 0)
	d := c.domain(core)
	c.log.Debug("off", zap.Int("core", core), zap.Uint32("domain", d), zap.Stringer("state", w))
	st, err := c.t.PowerStateSet(d, w)
	if err != nil || (st != scmi.Success && st != scmi.Queued) {
		return &CommandError{Op: "set power state", Domain: int64(d), Status: st, Err: err}
	}
	return nil
}

// On powers up the CPU identified by mpidr and every level above it.
func (c *Client) On(mpidr psci.MPIDR) error {
	var w pwrstate.Word
	lvl := uint(0)
	for ; lvl <= c.cfg.Topology.MaxLevel; lvl++ {
		w = w.SetLevel(lvl, pwrstate.On)
	}
	w = w.SetMaxLevel(lvl - 1)

	core, ok := c.cfg.Topology.CorePos(mpidr)
	if !ok {
		panic(fmt.Sprintf("on of unknown MPIDR %v", mpidr))
	}
	d := c.domain(core)
	c.log.Debug("on", zap.Stringer("mpidr", mpidr), zap.Uint32("domain", d), zap.Stringer("state", w))
	st, err := c.t.PowerStateSet(d, w)
	if err != nil || (st != scmi.Success && st != scmi.Queued) {
		return &CommandError{Op: "set power state", Domain: int64(d), Status: st, Err: err}
	}
	return nil
}

// GetPowerState reports whether the domain at level above the CPU
// identified by mpidr is powered. The system level cannot be queried this
// way. Levels the SCP does not describe are reported as on.
func (c *Client) GetPowerState(mpidr psci.MPIDR, level uint) (psci.HwState, error) {
	if level > c.cfg.Topology.MaxLevel || level == c.cfg.Topology.SystemLevel {
		c.log.Warn("Invalid power level specified for SCMI get power state", zap.Uint("level", level))
		return 0, psci.InvalidParams
	}
	core, ok := c.cfg.Topology.CorePos(mpidr)
	if !ok {
		c.log.Warn("Invalid MPIDR specified for SCMI get power state", zap.Stringer("mpidr", mpidr))
		return 0, psci.InvalidParams
	}

	w, st, err := c.t.PowerStateGet(c.domain(core))
	if err != nil || st != scmi.Success {
		c.log.Warn("SCMI get power state command failed", zap.Stringer("status", st), zap.Error(err))
		return 0, psci.InvalidParams
	}

	if w.MaxLevel() < level {
		return psci.HwOn, nil
	}
	switch s := w.Level(level); s {
	case pwrstate.On:
		return psci.HwOn, nil
	case pwrstate.Off, pwrstate.Sleep:
		return psci.HwOff, nil
	default:
		panic(fmt.Sprintf("SCP reported state %v for level %d", s, level))
	}
}
