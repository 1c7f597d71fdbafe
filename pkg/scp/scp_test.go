// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/pwrstate"
	"github.com/u-root/u-pwrc/pkg/scmi"
	"go.uber.org/zap"
)

type call struct {
	Msg    string
	Domain uint32
	Word   pwrstate.Word
	Flags  scmi.SystemPowerFlags
	State  scmi.SystemState
}

type msgKey struct {
	p scmi.ProtocolID
	m scmi.MessageID
}

type fakeTransport struct {
	calls []call

	status   scmi.Status
	err      error
	word     pwrstate.Word
	version  uint32
	attrs    map[msgKey]uint32
	notFound map[msgKey]bool
}

func newFake() *fakeTransport {
	return &fakeTransport{
		version:  scmi.MakeVersion(1, 0),
		attrs:    map[msgKey]uint32{},
		notFound: map[msgKey]bool{},
	}
}

func (f *fakeTransport) ProtocolVersion(p scmi.ProtocolID) (uint32, scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "version"})
	return f.version, scmi.Success, f.err
}

func (f *fakeTransport) ProtocolMessageAttributes(p scmi.ProtocolID, m scmi.MessageID) (uint32, scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "attributes"})
	k := msgKey{p, m}
	if f.notFound[k] {
		return 0, scmi.NotFound, f.err
	}
	return f.attrs[k], scmi.Success, f.err
}

func (f *fakeTransport) PowerStateSet(domain uint32, w pwrstate.Word) (scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "set", Domain: domain, Word: w})
	return f.status, f.err
}

func (f *fakeTransport) PowerStateGet(domain uint32) (pwrstate.Word, scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "get", Domain: domain})
	return f.word, f.status, f.err
}

func (f *fakeTransport) SystemPowerStateSet(flags scmi.SystemPowerFlags, s scmi.SystemState) (scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "system set", Flags: flags, State: s})
	return f.status, f.err
}

func (f *fakeTransport) SystemPowerStateGet() (scmi.SystemState, scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "system get"})
	return scmi.SystemPowerUp, f.status, f.err
}

func (f *fakeTransport) APCoreResetAddrSet(addr uint64, attr uint32) (scmi.Status, error) {
	f.calls = append(f.calls, call{Msg: "reset addr", Word: pwrstate.Word(attr)})
	return f.status, f.err
}

// junoConfig has a 2+4 core layout with the system at level 2.
var junoConfig = Config{
	Topology:    psci.Topology{CoresPerCluster: []int{2, 4}, MaxLevel: 2, SystemLevel: 2},
	CoreDomains: []uint32{2, 3, 4, 5, 6, 7},
}

func newClient(t *testing.T, f *fakeTransport, cfg Config) *Client {
	t.Helper()
	c, err := New(f, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func expectPanic(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", what)
		}
	}()
	f()
}

func TestNewValidates(t *testing.T) {
	cfg := junoConfig
	cfg.CoreDomains = cfg.CoreDomains[:5]
	if _, err := New(newFake(), cfg, zap.NewNop()); err == nil {
		t.Errorf("New accepted a short core domain table")
	}
}

func TestSuspend(t *testing.T) {
	cases := []struct {
		name   string
		core   int
		target psci.PowerState
		want   call
	}{
		{"core", 1, psci.States(psci.Off, psci.Run, psci.Run), call{Msg: "set", Domain: 3, Word: 0x00000002}},
		{"cluster", 4, psci.States(psci.Off, psci.Off, psci.Run), call{Msg: "set", Domain: 6, Word: 0x00010002}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFake()
			if err := newClient(t, f, junoConfig).Suspend(c.core, c.target); err != nil {
				t.Fatalf("Suspend: %v", err)
			}
			if diff := cmp.Diff([]call{c.want}, f.calls); diff != "" {
				t.Errorf("Suspend commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSuspendSystemSendsOneSystemCommand(t *testing.T) {
	for _, l1 := range []psci.LocalState{psci.Run, psci.Retention, psci.Off} {
		f := newFake()
		err := newClient(t, f, junoConfig).Suspend(0, psci.States(psci.Off, l1, psci.Off))
		if err != nil {
			t.Fatalf("Suspend: %v", err)
		}
		want := []call{{Msg: "system set", Flags: scmi.Forceful, State: scmi.SystemSuspend}}
		if diff := cmp.Diff(want, f.calls); diff != "" {
			t.Errorf("Suspend with level 1 %v mismatch (-want +got):\n%s", l1, diff)
		}
	}
}

func TestSuspendIsFatalOnAnyFailure(t *testing.T) {
	for _, st := range scmi.AllStatuses() {
		for _, target := range []psci.PowerState{
			psci.States(psci.Off, psci.Off, psci.Run),
			psci.States(psci.Off, psci.Off, psci.Off),
		} {
			f := newFake()
			f.status = st
			err := newClient(t, f, junoConfig).Suspend(0, target)
			var ce *CommandError
			if st == scmi.Success {
				if err != nil {
					t.Errorf("Suspend(%v) with SUCCESS: %v", target, err)
				}
				continue
			}
			if !errors.As(err, &ce) || ce.Status != st {
				t.Errorf("Suspend(%v) with %v returned %v, expected a CommandError", target, st, err)
			}
		}
	}
}

func TestSuspendAsserts(t *testing.T) {
	c := newClient(t, newFake(), junoConfig)
	expectPanic(t, "Suspend with running core", func() { c.Suspend(0, psci.States(psci.Run)) })
	expectPanic(t, "Suspend with retained system", func() {
		c.Suspend(0, psci.States(psci.Off, psci.Off, psci.Retention))
	})
	expectPanic(t, "Suspend of unknown core", func() { c.Suspend(6, psci.States(psci.Off)) })
}

func TestOff(t *testing.T) {
	f := newFake()
	c := newClient(t, f, junoConfig)
	if err := c.Off(2, psci.States(psci.Off)); err != nil {
		t.Fatalf("Off: %v", err)
	}
	if err := c.Off(3, psci.States(psci.Off, psci.Off)); err != nil {
		t.Fatalf("Off: %v", err)
	}
	want := []call{
		{Msg: "set", Domain: 4, Word: 0x00000000},
		{Msg: "set", Domain: 5, Word: 0x00010000},
	}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("Off commands mismatch (-want +got):\n%s", diff)
	}
}

func TestOffAcceptsSuccessAndQueuedOnly(t *testing.T) {
	for _, st := range scmi.AllStatuses() {
		f := newFake()
		f.status = st
		err := newClient(t, f, junoConfig).Off(0, psci.States(psci.Off, psci.Off))
		ok := st == scmi.Success || st == scmi.Queued
		var ce *CommandError
		switch {
		case ok && err != nil:
			t.Errorf("Off with %v failed: %v", st, err)
		case !ok && !errors.As(err, &ce):
			t.Errorf("Off with %v returned %v, expected a CommandError", st, err)
		case !ok && ce.Domain != 2:
			t.Errorf("CommandError for %v names domain %d", st, ce.Domain)
		}
	}
}

func TestOffTransportError(t *testing.T) {
	f := newFake()
	f.err = scmi.ErrChannelError
	err := newClient(t, f, junoConfig).Off(0, psci.States(psci.Off))
	if !errors.Is(err, scmi.ErrChannelError) {
		t.Errorf("Expected wrapped channel error, got %v", err)
	}
}

func TestOffSystemAsserts(t *testing.T) {
	c := newClient(t, newFake(), junoConfig)
	expectPanic(t, "Off of the system", func() { c.Off(0, psci.States(psci.Off, psci.Off, psci.Off)) })
}

func TestOn(t *testing.T) {
	for _, st := range scmi.AllStatuses() {
		f := newFake()
		f.status = st
		err := newClient(t, f, junoConfig).On(psci.MakeMPIDR(1, 3))
		if st == scmi.Success || st == scmi.Queued {
			if err != nil {
				t.Errorf("On with %v: %v", st, err)
			}
			want := []call{{Msg: "set", Domain: 7, Word: 0x00020111}}
			if diff := cmp.Diff(want, f.calls); diff != "" {
				t.Errorf("On commands mismatch (-want +got):\n%s", diff)
			}
		} else if err == nil {
			t.Errorf("On with %v succeeded", st)
		}
	}
	c := newClient(t, newFake(), junoConfig)
	expectPanic(t, "On of unknown MPIDR", func() { c.On(psci.MakeMPIDR(0, 2)) })
}

// deepConfig has a system level above the cluster so that level 2 can be
// queried.
var deepConfig = Config{
	Topology:    psci.Topology{CoresPerCluster: []int{4}, MaxLevel: 3, SystemLevel: 3},
	CoreDomains: []uint32{0, 1, 2, 3},
}

func TestGetPowerStateUndescribedLevelIsOn(t *testing.T) {
	f := newFake()
	f.word = pwrstate.New(pwrstate.Off, pwrstate.Off)
	s, err := newClient(t, f, deepConfig).GetPowerState(psci.MakeMPIDR(0, 1), 2)
	if err != nil {
		t.Fatalf("GetPowerState: %v", err)
	}
	if s != psci.HwOn {
		t.Errorf("Level above max level reported as %v", s)
	}
	if diff := cmp.Diff([]call{{Msg: "get", Domain: 1}}, f.calls); diff != "" {
		t.Errorf("GetPowerState commands mismatch (-want +got):\n%s", diff)
	}
}

func TestGetPowerStateAboveMaxAlwaysOn(t *testing.T) {
	states := []pwrstate.State{pwrstate.Off, pwrstate.On, pwrstate.Sleep}
	c := func(f *fakeTransport) *Client { return newClient(t, f, deepConfig) }
	for max := uint(0); max < 2; max++ {
		for _, s0 := range states {
			for _, s1 := range states {
				f := newFake()
				f.word = pwrstate.Word(0).SetLevel(0, s0).SetLevel(1, s1).SetMaxLevel(max)
				for level := max + 1; level <= 2; level++ {
					s, err := c(f).GetPowerState(0, level)
					if err != nil || s != psci.HwOn {
						t.Errorf("GetPowerState(level %d) for %v = %v, %v", level, f.word, s, err)
					}
				}
			}
		}
	}
}

func TestGetPowerState(t *testing.T) {
	cases := []struct {
		word  pwrstate.Word
		level uint
		want  psci.HwState
	}{
		{pwrstate.New(pwrstate.On, pwrstate.On), 0, psci.HwOn},
		{pwrstate.New(pwrstate.Off, pwrstate.On), 0, psci.HwOff},
		{pwrstate.New(pwrstate.Sleep, pwrstate.On), 0, psci.HwOff},
		{pwrstate.New(pwrstate.Off, pwrstate.Off), 1, psci.HwOff},
		{pwrstate.New(pwrstate.Off, pwrstate.On), 1, psci.HwOn},
	}
	for _, c := range cases {
		f := newFake()
		f.word = c.word
		s, err := newClient(t, f, junoConfig).GetPowerState(psci.MakeMPIDR(1, 0), c.level)
		if err != nil || s != c.want {
			t.Errorf("GetPowerState(%v, %d) = %v, %v, expected %v", c.word, c.level, s, err, c.want)
		}
	}
}

func TestGetPowerStateInvalid(t *testing.T) {
	f := newFake()
	c := newClient(t, f, junoConfig)
	for _, level := range []uint{2, 3} {
		if _, err := c.GetPowerState(0, level); !errors.Is(err, psci.InvalidParams) {
			t.Errorf("GetPowerState(level %d) returned %v", level, err)
		}
	}
	if _, err := c.GetPowerState(psci.MakeMPIDR(3, 0), 0); !errors.Is(err, psci.InvalidParams) {
		t.Errorf("GetPowerState(unknown MPIDR) returned %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Invalid queries reached the SCP: %v", f.calls)
	}
	f.status = scmi.Denied
	if _, err := c.GetPowerState(0, 0); !errors.Is(err, psci.InvalidParams) {
		t.Errorf("GetPowerState with DENIED returned %v", err)
	}
}

func TestGetPowerStateAssertsOnUnknownState(t *testing.T) {
	f := newFake()
	f.word = pwrstate.Word(0).SetLevel(0, 7)
	c := newClient(t, f, junoConfig)
	expectPanic(t, "GetPowerState of state 7", func() { c.GetPowerState(0, 0) })
}

func TestSystemOff(t *testing.T) {
	f := newFake()
	c := newClient(t, f, junoConfig)
	for _, op := range []func() error{c.Shutdown, c.Reboot, c.WarmReset} {
		if err := op(); err != nil {
			t.Fatalf("System request: %v", err)
		}
	}
	want := []call{
		{Msg: "system set", Flags: scmi.Forceful, State: scmi.SystemShutdown},
		{Msg: "system set", Flags: scmi.Forceful, State: scmi.SystemColdReset},
		{Msg: "system set", Flags: scmi.Forceful, State: scmi.SystemWarmReset},
	}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("System commands mismatch (-want +got):\n%s", diff)
	}

	f.status = scmi.NotSupported
	var ce *CommandError
	if err := c.Shutdown(); !errors.As(err, &ce) || ce.Domain != SystemDomain {
		t.Errorf("Shutdown with NOT_SUPPORTED returned %v", err)
	}
}

func TestNegotiate(t *testing.T) {
	sysSet := msgKey{scmi.ProtocolSystemPower, scmi.MsgSystemPowerStateSet}
	pwrGet := msgKey{scmi.ProtocolPowerDomain, scmi.MsgPowerStateGet}
	pwrSet := msgKey{scmi.ProtocolPowerDomain, scmi.MsgPowerStateSet}
	cases := []struct {
		name     string
		notFound []msgKey
		sysAttr  uint32
		want     Capabilities
	}{
		{"all", nil, scmi.SystemPowerSuspendSupported | scmi.SystemPowerWarmResetSupported,
			Capabilities{NodeHwState: true, SystemOff: true, SystemReset: true, SystemSuspend: true, WarmReset: true}},
		{"no get", []msgKey{pwrGet}, scmi.SystemPowerWarmResetSupported,
			Capabilities{SystemOff: true, SystemReset: true, WarmReset: true}},
		{"no suspend", nil, 0,
			Capabilities{NodeHwState: true, SystemOff: true, SystemReset: true}},
		{"no system power", []msgKey{sysSet}, scmi.SystemPowerSuspendSupported,
			Capabilities{NodeHwState: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFake()
			f.attrs[sysSet] = c.sysAttr
			for _, k := range c.notFound {
				f.notFound[k] = true
			}
			cl := newClient(t, f, junoConfig)
			caps, err := cl.Negotiate()
			if err != nil {
				t.Fatalf("Negotiate: %v", err)
			}
			if diff := cmp.Diff(c.want, caps); diff != "" {
				t.Errorf("Capabilities mismatch (-want +got):\n%s", diff)
			}
			if cl.Capabilities() != caps {
				t.Errorf("Capabilities() not updated")
			}
		})
	}

	f := newFake()
	f.notFound[pwrSet] = true
	if _, err := newClient(t, f, junoConfig).Negotiate(); err == nil {
		t.Errorf("Negotiate without POWER_STATE_SET succeeded")
	}
}

func TestAPCore(t *testing.T) {
	f := newFake()
	c := newClient(t, f, junoConfig)
	if err := c.SetupAPCore(); err != nil {
		t.Fatalf("SetupAPCore: %v", err)
	}
	if err := c.ProgramTrustedMailbox(0x04001000); err != nil {
		t.Fatalf("ProgramTrustedMailbox: %v", err)
	}
	f.version = scmi.MakeVersion(2, 0)
	if err := c.SetupAPCore(); err == nil {
		t.Errorf("SetupAPCore accepted version 2.0")
	}
	f.status = scmi.Denied
	var ce *CommandError
	if err := c.ProgramTrustedMailbox(0x04001000); !errors.As(err, &ce) {
		t.Errorf("ProgramTrustedMailbox with DENIED returned %v", err)
	}
}
