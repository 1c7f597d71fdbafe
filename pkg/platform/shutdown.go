// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmhodges/clock"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/scmi"
)

// SystemRequester sends graceful system requests. It is implemented by
// *scp.Client.
type SystemRequester interface {
	RequestSystemState(flags scmi.SystemPowerFlags, state scmi.SystemState) (scmi.Status, error)
	SystemState() (scmi.SystemState, scmi.Status, error)
}

// ShutdownPolicy bounds the graceful phase of a system power request.
type ShutdownPolicy struct {
	// GracefulTimeout is how long the other agents get to complete a
	// graceful request. Zero skips the graceful phase.
	GracefulTimeout time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration
}

const defaultPollInterval = 10 * time.Millisecond

// Manager asks the SCP for a graceful system transition first and falls
// back to the forceful platform hook when the SCP refuses it or the other
// agents take too long.
type Manager struct {
	ops    *Ops
	req    SystemRequester
	clk    clock.Clock
	policy ShutdownPolicy
}

// NewManager returns a Manager. A nil clock selects the wall clock.
func NewManager(ops *Ops, req SystemRequester, clk clock.Clock, policy ShutdownPolicy) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if policy.PollInterval <= 0 {
		policy.PollInterval = defaultPollInterval
	}
	if policy.MaxPollInterval < policy.PollInterval {
		policy.MaxPollInterval = policy.PollInterval
	}
	return &Manager{ops: ops, req: req, clk: clk, policy: policy}
}

// Shutdown powers the system off.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.ops.Supported(HookSystemOff) {
		return psci.NotSupported
	}
	return m.run(ctx, HookSystemOff, scmi.SystemShutdown, m.ops.SystemOff)
}

// Reboot cold resets the system.
func (m *Manager) Reboot(ctx context.Context) error {
	if !m.ops.Supported(HookSystemReset) {
		return psci.NotSupported
	}
	return m.run(ctx, HookSystemReset, scmi.SystemColdReset, m.ops.SystemReset)
}

// WarmReset warm resets the system.
func (m *Manager) WarmReset(ctx context.Context) error {
	if !m.ops.Supported(HookSystemReset2) {
		return psci.NotSupported
	}
	return m.run(ctx, HookSystemReset2, scmi.SystemWarmReset, func() error {
		return m.ops.SystemReset2(false, psci.SystemWarmReset, 0)
	})
}

// run returns only when power was not removed. A completed graceful
// request waits for power removal the same way the forceful hook does.
func (m *Manager) run(ctx context.Context, h Hook, state scmi.SystemState, forceful func() error) error {
	done, err := m.graceful(ctx, state)
	if err != nil {
		return err
	}
	if done {
		m.ops.halt.Wait()
		return m.ops.fatal(h, errNotHandled)
	}
	gracefulFallbacks.Inc()
	log.Warnf("Graceful %v not completed, forcing it", state)
	return forceful()
}

// graceful reports whether the SCP completed a graceful request for state
// within the policy timeout. Only context errors are returned.
func (m *Manager) graceful(ctx context.Context, state scmi.SystemState) (bool, error) {
	if m.policy.GracefulTimeout <= 0 {
		return false, nil
	}
	st, err := m.req.RequestSystemState(scmi.Graceful, state)
	if err != nil || st != scmi.Success {
		log.Warnf("Graceful %v refused: status %v, error %v", state, st, err)
		return false, nil
	}

	start := m.clk.Now()
	defer func() { gracefulTime.Update(m.clk.Now().Sub(start).Seconds()) }()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.policy.PollInterval
	b.MaxInterval = m.policy.MaxPollInterval
	b.MaxElapsedTime = m.policy.GracefulTimeout
	b.Clock = m.clk
	b.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		s, st, err := m.req.SystemState()
		if err == nil && st == scmi.Success && s == state {
			log.Infof("Graceful %v completed", state)
			return true, nil
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return false, nil
		}
		m.clk.Sleep(d)
	}
}
