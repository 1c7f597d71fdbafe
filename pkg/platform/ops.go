// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"errors"

	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/scp"
	"go.uber.org/zap"
)

var errNotHandled = errors.New("system power request accepted but power was not removed")

// Client is the SCP side of the hooks. It is implemented by *scp.Client.
type Client interface {
	Topology() psci.Topology
	Suspend(core int, target psci.PowerState) error
	Off(core int, target psci.PowerState) error
	On(mpidr psci.MPIDR) error
	GetPowerState(mpidr psci.MPIDR, level uint) (psci.HwState, error)
	Shutdown() error
	Reboot() error
	WarmReset() error
}

// Ops is the set of PSCI platform hooks of a CSS platform driven over
// SCMI. Hooks the SCP cannot back return psci.NotSupported without
// talking to it.
type Ops struct {
	c    Client
	caps scp.Capabilities
	topo psci.Topology
	halt Halter
	log  *zap.Logger
}

// NewOps returns the hooks for c given the negotiated capabilities. A nil
// logger selects the process logger.
func NewOps(c Client, caps scp.Capabilities, halt Halter, l *zap.Logger) *Ops {
	if l == nil {
		l = log.Desugar()
	}
	o := &Ops{c: c, caps: caps, topo: c.Topology(), halt: halt, log: l}
	publishSupported(o)
	return o
}

// Supported reports whether h is backed by the SCP.
func (o *Ops) Supported(h Hook) bool {
	switch h {
	case HookGetNodeHwState:
		return o.caps.NodeHwState
	case HookGetSysSuspendPowerState:
		return o.caps.SystemSuspend
	case HookSystemOff:
		return o.caps.SystemOff
	case HookSystemReset:
		return o.caps.SystemReset
	case HookSystemReset2:
		return o.caps.WarmReset
	}
	return h >= 0 && h < hookCount
}

// Capabilities returns what the SCP reported at boot.
func (o *Ops) Capabilities() scp.Capabilities {
	return o.caps
}

// enter counts a call of h and reports whether it may proceed.
func (o *Ops) enter(h Hook) bool {
	hookCalls[h].Inc()
	return o.Supported(h)
}

// fatal reports err and halts. On hardware it does not return.
func (o *Ops) fatal(h Hook, err error) error {
	fatalCount.Inc()
	var ce *scp.CommandError
	if errors.As(err, &ce) {
		o.log.Error("SCMI command failed",
			zap.Stringer("hook", h),
			zap.String("command", ce.Op),
			zap.Int64("domain", ce.Domain),
			zap.Stringer("status", ce.Status),
			zap.Error(ce.Err))
	} else {
		o.log.Error("Fatal platform error", zap.Stringer("hook", h), zap.Error(err))
	}
	o.halt.Halt(err)
	return psci.InternFail
}

// check halts on errors from the SCP client. Errors the caller can act on
// are passed through.
func (o *Ops) check(h Hook, err error) error {
	var pe psci.Error
	if err == nil || errors.As(err, &pe) {
		return err
	}
	return o.fatal(h, err)
}

// ValidatePowerState turns a CPU_SUSPEND power_state parameter into the
// requested state of every level. A power down request powers down every
// level up to the one given, a standby request is only valid for the core.
// The system level is never suspended this way, see
// GetSysSuspendPowerState.
func (o *Ops) ValidatePowerState(pstate uint32) (psci.PowerState, error) {
	var req psci.PowerState
	if !o.enter(HookValidatePowerState) {
		return req, psci.NotSupported
	}
	p, err := psci.ParsePowerState(pstate)
	if err != nil {
		return req, err
	}
	if p.Level > o.topo.MaxLevel {
		return req, psci.InvalidParams
	}
	if p.Type == psci.Standby {
		if p.Level != 0 {
			return req, psci.InvalidParams
		}
		req.Level[0] = psci.Retention
	} else {
		for l := uint(0); l <= p.Level; l++ {
			req.Level[l] = psci.Off
		}
	}
	if p.ID != 0 {
		return req, psci.InvalidParams
	}
	req.Level[o.topo.SystemLevel] = psci.Run
	return req, nil
}

// PwrDomainSuspend suspends core. A core in retention stays under local
// control and is not reported to the SCP.
func (o *Ops) PwrDomainSuspend(core int, target psci.PowerState) error {
	if !o.enter(HookPwrDomainSuspend) {
		return psci.NotSupported
	}
	if target.Level[0] == psci.Retention {
		return nil
	}
	return o.check(HookPwrDomainSuspend, o.c.Suspend(core, target))
}

// PwrDomainOff powers down core and the parents target selects.
func (o *Ops) PwrDomainOff(core int, target psci.PowerState) error {
	if !o.enter(HookPwrDomainOff) {
		return psci.NotSupported
	}
	return o.check(HookPwrDomainOff, o.c.Off(core, target))
}

// PwrDomainOn powers up the CPU identified by mpidr.
func (o *Ops) PwrDomainOn(mpidr psci.MPIDR) error {
	if !o.enter(HookPwrDomainOn) {
		return psci.NotSupported
	}
	if _, ok := o.topo.CorePos(mpidr); !ok {
		return psci.InvalidParams
	}
	return o.check(HookPwrDomainOn, o.c.On(mpidr))
}

// GetNodeHwState reports the power state of the domain at level above the
// CPU identified by mpidr.
func (o *Ops) GetNodeHwState(mpidr psci.MPIDR, level uint) (psci.HwState, error) {
	if !o.enter(HookGetNodeHwState) {
		return 0, psci.NotSupported
	}
	s, err := o.c.GetPowerState(mpidr, level)
	return s, o.check(HookGetNodeHwState, err)
}

// GetSysSuspendPowerState returns the state SYSTEM_SUSPEND requests:
// every level off.
func (o *Ops) GetSysSuspendPowerState() (psci.PowerState, error) {
	var req psci.PowerState
	if !o.enter(HookGetSysSuspendPowerState) {
		return req, psci.NotSupported
	}
	for l := uint(0); l <= o.topo.MaxLevel; l++ {
		req.Level[l] = psci.Off
	}
	return req, nil
}

// systemRequest runs a system power request and waits for power to go
// away. It only returns if the halter does.
func (o *Ops) systemRequest(h Hook, req func() error) error {
	if err := req(); err != nil {
		return o.fatal(h, err)
	}
	o.halt.Wait()
	return o.fatal(h, errNotHandled)
}

// SystemOff powers the system off.
func (o *Ops) SystemOff() error {
	if !o.enter(HookSystemOff) {
		return psci.NotSupported
	}
	return o.systemRequest(HookSystemOff, o.c.Shutdown)
}

// SystemReset cold resets the system.
func (o *Ops) SystemReset() error {
	if !o.enter(HookSystemReset) {
		return psci.NotSupported
	}
	return o.systemRequest(HookSystemReset, o.c.Reboot)
}

// SystemReset2 implements the architectural warm reset. Vendor reset
// types are not supported. cookie is ignored.
func (o *Ops) SystemReset2(isVendor bool, t psci.ResetType, cookie uint64) error {
	if !o.enter(HookSystemReset2) {
		return psci.NotSupported
	}
	if isVendor || t.IsVendor() || t != psci.SystemWarmReset {
		return psci.InvalidParams
	}
	return o.systemRequest(HookSystemReset2, o.c.WarmReset)
}
