// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scmi

import (
	"fmt"

	"github.com/u-root/u-pwrc/pkg/pwrstate"
)

// SystemState is the target of a SYSTEM_POWER_STATE_SET.
type SystemState uint32

const (
	SystemShutdown  SystemState = 0
	SystemColdReset SystemState = 1
	SystemWarmReset SystemState = 2
	SystemPowerUp   SystemState = 3
	SystemSuspend   SystemState = 4
)

func (s SystemState) String() string {
	switch s {
	case SystemShutdown:
		return "SHUTDOWN"
	case SystemColdReset:
		return "COLD_RESET"
	case SystemWarmReset:
		return "WARM_RESET"
	case SystemPowerUp:
		return "POWER_UP"
	case SystemSuspend:
		return "SUSPEND"
	}
	return fmt.Sprintf("SYSTEM_STATE(%d)", uint32(s))
}

// SystemPowerFlags selects how the platform carries out a system request.
type SystemPowerFlags uint32

const (
	// Forceful requests are carried out immediately.
	Forceful SystemPowerFlags = 0
	// Graceful requests let the platform notify other agents first.
	Graceful SystemPowerFlags = 1
)

// PROTOCOL_MESSAGE_ATTRIBUTES bits of SYSTEM_POWER_STATE_SET.
const (
	SystemPowerSuspendSupported   uint32 = 1 << 30
	SystemPowerWarmResetSupported uint32 = 1 << 31
)

// POWER_STATE_SET flags, bit 0 selects an asynchronous request.
const powerStateSetSync = 0

// APCoreLockAttr locks the reset address against further changes.
const APCoreLockAttr uint32 = 1 << 0

// ProtocolVersion queries the version of protocol p.
func (c *Channel) ProtocolVersion(p ProtocolID) (uint32, Status, error) {
	st, r, err := c.Send(p, MsgProtocolVersion, nil, 1)
	if err != nil || st != Success {
		return 0, st, err
	}
	return r[0], st, nil
}

// ProtocolMessageAttributes queries whether message m of protocol p is
// implemented. NotFound or NotSupported mean it is not.
func (c *Channel) ProtocolMessageAttributes(p ProtocolID, m MessageID) (uint32, Status, error) {
	st, r, err := c.Send(p, MsgProtocolMessageAttributes, []uint32{uint32(m)}, 1)
	if err != nil || st != Success {
		return 0, st, err
	}
	return r[0], st, nil
}

// PowerStateSet requests a power state for a domain and its parents.
func (c *Channel) PowerStateSet(domain uint32, w pwrstate.Word) (Status, error) {
	st, _, err := c.Send(ProtocolPowerDomain, MsgPowerStateSet, []uint32{powerStateSetSync, domain, uint32(w)}, 0)
	return st, err
}

// PowerStateGet reads the power state of a domain.
func (c *Channel) PowerStateGet(domain uint32) (pwrstate.Word, Status, error) {
	st, r, err := c.Send(ProtocolPowerDomain, MsgPowerStateGet, []uint32{domain}, 1)
	if err != nil || st != Success {
		return 0, st, err
	}
	return pwrstate.Word(r[0]), st, nil
}

// SystemPowerStateSet requests a system wide transition.
func (c *Channel) SystemPowerStateSet(flags SystemPowerFlags, s SystemState) (Status, error) {
	st, _, err := c.Send(ProtocolSystemPower, MsgSystemPowerStateSet, []uint32{uint32(flags), uint32(s)}, 0)
	return st, err
}

// SystemPowerStateGet reads the current system state.
func (c *Channel) SystemPowerStateGet() (SystemState, Status, error) {
	st, r, err := c.Send(ProtocolSystemPower, MsgSystemPowerStateGet, nil, 1)
	if err != nil || st != Success {
		return 0, st, err
	}
	return SystemState(r[0]), st, nil
}

// APCoreResetAddrSet programs the address CPUs start from when they are
// powered on.
func (c *Channel) APCoreResetAddrSet(addr uint64, attr uint32) (Status, error) {
	st, _, err := c.Send(ProtocolAPCore, MsgAPCoreResetAddrSet, []uint32{uint32(addr), uint32(addr >> 32), attr}, 0)
	return st, err
}
