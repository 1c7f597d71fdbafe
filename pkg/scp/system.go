// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scp

import (
	"github.com/u-root/u-pwrc/pkg/scmi"
	"go.uber.org/zap"
)

// SystemOff sends a single forceful system power request. A graceful
// attempt, if any, is up to the caller. On real hardware a successful
// request does not come back before power is removed.
func (c *Client) SystemOff(state scmi.SystemState) error {
	c.log.Info("system power request", zap.Stringer("state", state))
	st, err := c.t.SystemPowerStateSet(scmi.Forceful, state)
	if err != nil || st != scmi.Success {
		return &CommandError{Op: "system power state set " + state.String(), Domain: SystemDomain, Status: st, Err: err}
	}
	return nil
}

// Shutdown powers the system off.
func (c *Client) Shutdown() error {
	return c.SystemOff(scmi.SystemShutdown)
}

// Reboot cold resets the system.
func (c *Client) Reboot() error {
	return c.SystemOff(scmi.SystemColdReset)
}

// WarmReset warm resets the system.
func (c *Client) WarmReset() error {
	return c.SystemOff(scmi.SystemWarmReset)
}

// RequestSystemState sends a system power request and returns what the SCP
// answered without judging it.
func (c *Client) RequestSystemState(flags scmi.SystemPowerFlags, state scmi.SystemState) (scmi.Status, error) {
	return c.t.SystemPowerStateSet(flags, state)
}

// SystemState reads the system power state.
func (c *Client) SystemState() (scmi.SystemState, scmi.Status, error) {
	return c.t.SystemPowerStateGet()
}
