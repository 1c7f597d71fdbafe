// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scp

import (
	"fmt"

	"github.com/u-root/u-pwrc/pkg/scmi"
	"go.uber.org/zap"
)

// Capabilities is the set of optional operations the SCP implements.
type Capabilities struct {
	NodeHwState   bool
	SystemOff     bool
	SystemReset   bool
	SystemSuspend bool
	WarmReset     bool
}

// Negotiate asks the SCP which optional messages it implements. It fails
// if POWER_STATE_SET is missing since no CPU could be managed without it.
// It must run before the client is shared.
func (c *Client) Negotiate() (Capabilities, error) {
	var caps Capabilities

	_, st, err := c.t.ProtocolMessageAttributes(scmi.ProtocolPowerDomain, scmi.MsgPowerStateSet)
	if err != nil {
		return caps, err
	}
	if st != scmi.Success {
		return caps, fmt.Errorf("set power state command is not supported by SCMI: %v", st)
	}

	_, st, err = c.t.ProtocolMessageAttributes(scmi.ProtocolPowerDomain, scmi.MsgPowerStateGet)
	if err != nil {
		return caps, err
	}
	caps.NodeHwState = st == scmi.Success

	attr, st, err := c.t.ProtocolMessageAttributes(scmi.ProtocolSystemPower, scmi.MsgSystemPowerStateSet)
	if err != nil {
		return caps, err
	}
	if st == scmi.Success {
		caps.SystemOff = true
		caps.SystemReset = true
		caps.SystemSuspend = attr&scmi.SystemPowerSuspendSupported != 0
		caps.WarmReset = attr&scmi.SystemPowerWarmResetSupported != 0
	}

	c.log.Info("SCMI capabilities negotiated",
		zap.Bool("node_hw_state", caps.NodeHwState),
		zap.Bool("system_off", caps.SystemOff),
		zap.Bool("system_suspend", caps.SystemSuspend),
		zap.Bool("warm_reset", caps.WarmReset))
	c.caps = caps
	return caps, nil
}

// Capabilities returns the result of the last Negotiate.
func (c *Client) Capabilities() Capabilities {
	return c.caps
}

// SetupAPCore checks that the SCP implements a compatible AP core
// protocol, needed to program the CPU reset address.
func (c *Client) SetupAPCore() error {
	v, st, err := c.t.ProtocolVersion(scmi.ProtocolAPCore)
	if err != nil {
		return fmt.Errorf("AP core protocol version: %w", err)
	}
	if st != scmi.Success {
		return fmt.Errorf("AP core protocol version message failed: %v", st)
	}
	if !scmi.VersionCompatible(scmi.APCoreVersion, v) {
		return fmt.Errorf("AP core protocol version %#x incompatible with driver version %#x", v, scmi.APCoreVersion)
	}
	c.log.Info("SCMI AP core protocol detected", zap.Uint32("version", v))
	return nil
}

// ProgramTrustedMailbox sets and locks the address CPUs start executing
// from when powered on.
func (c *Client) ProgramTrustedMailbox(addr uint64) error {
	st, err := c.t.APCoreResetAddrSet(addr, scmi.APCoreLockAttr)
	if err != nil || st != scmi.Success {
		return &CommandError{Op: "AP core reset address set", Domain: SystemDomain, Status: st, Err: err}
	}
	return nil
}
