// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scmi

import (
	"errors"
	"testing"

	pt "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/u-root/u-pwrc/pkg/hardware/mem/memtest"
	"github.com/u-root/u-pwrc/pkg/pwrstate"
)

const (
	mbx      uintptr = 0x1000
	doorbell uintptr = 0x2000
)

var testInfo = ChannelInfo{
	Base:                 mbx,
	DoorbellAddr:         doorbell,
	DoorbellPreserveMask: 0xfffffff0,
	DoorbellModifyMask:   0x1,
}

// expectRequest queues the accesses of writing a request and ringing the
// doorbell.
func expectRequest(fm *memtest.Fake, hdr uint32, args ...uint32) {
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree)
	fm.ExpectWrite32(mbx+MailboxHeader, hdr)
	fm.ExpectWrite32(mbx+MailboxLength, uint32(4*(1+len(args))))
	fm.ExpectWrite32(mbx+MailboxFlags, FlagRespPoll)
	for i, a := range args {
		fm.ExpectWrite32(mbx+MailboxPayload+uintptr(4*i), a)
	}
	fm.ExpectWrite32(mbx+MailboxStatus, 0)
	fm.FakeRead32(doorbell, 0x100)
	fm.ExpectWrite32(doorbell, 0x101)
}

// fakeResponse queues one busy poll and a response.
func fakeResponse(fm *memtest.Fake, hdr uint32, st Status, payload ...uint32) {
	fm.FakeRead32(mbx+MailboxStatus, 0)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree)
	fm.FakeRead32(mbx+MailboxHeader, hdr)
	fm.FakeRead32(mbx+MailboxLength, uint32(4*(2+len(payload))))
	fm.FakeRead32(mbx+MailboxPayload, uint32(st))
	for i, p := range payload {
		fm.FakeRead32(mbx+MailboxPayload+uintptr(4*(i+1)), p)
	}
}

func TestHeader(t *testing.T) {
	h := MakeHeader(ProtocolPowerDomain, MsgPowerStateSet, 0x3ff)
	if h != 0x0ffc4404 {
		t.Errorf("Header %08x, expected %08x", h, 0x0ffc4404)
	}
	if HeaderProtocol(h) != ProtocolPowerDomain || HeaderMessage(h) != MsgPowerStateSet || HeaderToken(h) != 0x3ff {
		t.Errorf("Header %08x decoded as %v/%v/%d", h, HeaderProtocol(h), HeaderMessage(h), HeaderToken(h))
	}
	// Tokens wrap at 10 bits
	if HeaderToken(MakeHeader(ProtocolBase, 0, 0x400)) != 0 {
		t.Errorf("Token did not wrap")
	}
}

func TestVersionCompatible(t *testing.T) {
	cases := []struct {
		driver, remote uint32
		ok             bool
	}{
		{MakeVersion(1, 0), MakeVersion(1, 0), true},
		{MakeVersion(1, 0), MakeVersion(1, 3), true},
		{MakeVersion(1, 2), MakeVersion(1, 1), false},
		{MakeVersion(1, 0), MakeVersion(2, 0), false},
	}
	for _, c := range cases {
		if VersionCompatible(c.driver, c.remote) != c.ok {
			t.Errorf("VersionCompatible(%#x, %#x) = %v", c.driver, c.remote, !c.ok)
		}
	}
}

func TestPowerStateSet(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	w := pwrstate.New(pwrstate.Sleep, pwrstate.Off, pwrstate.Off)
	hdr := MakeHeader(ProtocolPowerDomain, MsgPowerStateSet, 1)
	expectRequest(fm, hdr, 0, 3, uint32(w))
	fakeResponse(fm, hdr, Success)

	before := pt.ToFloat64(transactions.WithLabelValues("power_domain", "POWER_STATE_SET", "SUCCESS"))
	st, err := c.PowerStateSet(3, w)
	if err != nil {
		t.Fatalf("PowerStateSet: %v", err)
	}
	if st != Success {
		t.Errorf("Expected SUCCESS, got %v", st)
	}
	after := pt.ToFloat64(transactions.WithLabelValues("power_domain", "POWER_STATE_SET", "SUCCESS"))
	if after != before+1 {
		t.Errorf("Expected transaction counter to go from %v to %v, got %v", before, before+1, after)
	}
}

func TestPowerStateGet(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolPowerDomain, MsgPowerStateGet, 1)
	expectRequest(fm, hdr, 5)
	fakeResponse(fm, hdr, Success, 0x00010010)

	w, st, err := c.PowerStateGet(5)
	if err != nil || st != Success {
		t.Fatalf("PowerStateGet: %v %v", st, err)
	}
	if w.MaxLevel() != 1 || w.Level(0) != pwrstate.Off || w.Level(1) != pwrstate.On {
		t.Errorf("Unexpected power state %v", w)
	}
}

func TestErrorOnlyResponse(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolSystemPower, MsgProtocolMessageAttributes, 1)
	expectRequest(fm, hdr, uint32(MsgSystemPowerStateSet))
	fakeResponse(fm, hdr, NotFound)

	_, st, err := c.ProtocolMessageAttributes(ProtocolSystemPower, MsgSystemPowerStateSet)
	if err != nil {
		t.Fatalf("ProtocolMessageAttributes: %v", err)
	}
	if st != NotFound {
		t.Errorf("Expected NOT_FOUND, got %v", st)
	}
}

func TestSystemPowerStateSet(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateSet, 1)
	expectRequest(fm, hdr, uint32(Forceful), uint32(SystemSuspend))
	fakeResponse(fm, hdr, Denied)

	st, err := c.SystemPowerStateSet(Forceful, SystemSuspend)
	if err != nil {
		t.Fatalf("SystemPowerStateSet: %v", err)
	}
	if st != Denied {
		t.Errorf("Expected DENIED, got %v", st)
	}
}

func TestSystemPowerFlagsOnWire(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	for i, f := range []SystemPowerFlags{Forceful, Graceful} {
		hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateSet, uint16(i+1))
		// Bit 0 set means graceful, as SCMI defines it
		expectRequest(fm, hdr, uint32(i), uint32(SystemShutdown))
		fakeResponse(fm, hdr, Success)
		if st, err := c.SystemPowerStateSet(f, SystemShutdown); err != nil || st != Success {
			t.Errorf("SystemPowerStateSet(%d): %v, %v", f, st, err)
		}
	}
}

func TestAPCoreResetAddrSet(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolAPCore, MsgAPCoreResetAddrSet, 1)
	expectRequest(fm, hdr, 0x04001000, 0x8, APCoreLockAttr)
	fakeResponse(fm, hdr, Success)

	st, err := c.APCoreResetAddrSet(0x804001000, APCoreLockAttr)
	if err != nil || st != Success {
		t.Fatalf("APCoreResetAddrSet: %v %v", st, err)
	}
}

func TestChannelBusy(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	fm.FakeRead32(mbx+MailboxStatus, 0)
	_, err := c.PowerStateSet(0, 0)
	if !errors.Is(err, ErrChannelBusy) {
		t.Errorf("Expected ErrChannelBusy, got %v", err)
	}
}

func TestChannelErrorBit(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 1)
	expectRequest(fm, hdr)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree|ChannelError)
	_, _, err := c.SystemPowerStateGet()
	if !errors.Is(err, ErrChannelError) {
		t.Errorf("Expected ErrChannelError, got %v", err)
	}
}

func TestTokenMismatch(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 1)
	expectRequest(fm, hdr)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree)
	fm.FakeRead32(mbx+MailboxHeader, MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 7))
	if _, _, err := c.SystemPowerStateGet(); err == nil {
		t.Errorf("Expected token mismatch to fail")
	}
}

func TestBadLength(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	hdr := MakeHeader(ProtocolPowerDomain, MsgPowerStateGet, 1)
	expectRequest(fm, hdr, 0)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree)
	fm.FakeRead32(mbx+MailboxHeader, hdr)
	fm.FakeRead32(mbx+MailboxLength, 8)
	fm.FakeRead32(mbx+MailboxPayload, uint32(Success))
	if _, _, err := c.PowerStateGet(0); err == nil {
		t.Errorf("Expected short SUCCESS response to fail")
	}
}

func TestTokenAdvances(t *testing.T) {
	fm := memtest.New(t)
	defer fm.Done()
	c := NewChannel(fm, testInfo, nil)
	for tok := uint16(1); tok <= 3; tok++ {
		hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, tok)
		expectRequest(fm, hdr)
		fakeResponse(fm, hdr, Success, uint32(SystemPowerUp))
		s, st, err := c.SystemPowerStateGet()
		if err != nil || st != Success || s != SystemPowerUp {
			t.Fatalf("SystemPowerStateGet #%d: %v %v %v", tok, s, st, err)
		}
	}
}

func TestAllStatuses(t *testing.T) {
	all := AllStatuses()
	if len(all) != 12 {
		t.Fatalf("Expected 12 statuses, got %d", len(all))
	}
	for _, s := range all {
		if _, ok := statusNames[s]; !ok {
			t.Errorf("Status %d has no name", s)
		}
	}
}

func TestFailedTransactionsCounted(t *testing.T) {
	failed := func() float64 {
		return pt.ToFloat64(transactions.WithLabelValues("system_power", "SYSTEM_POWER_STATE_GET", failedLabel))
	}
	before := failed()

	fm := memtest.New(t)
	c := NewChannel(fm, testInfo, nil)
	fm.FakeRead32(mbx+MailboxStatus, 0)
	if _, _, err := c.SystemPowerStateGet(); !errors.Is(err, ErrChannelBusy) {
		t.Fatalf("Expected ErrChannelBusy, got %v", err)
	}

	hdr := MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 1)
	expectRequest(fm, hdr)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree|ChannelError)
	if _, _, err := c.SystemPowerStateGet(); !errors.Is(err, ErrChannelError) {
		t.Fatalf("Expected ErrChannelError, got %v", err)
	}

	hdr = MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 2)
	expectRequest(fm, hdr)
	fm.FakeRead32(mbx+MailboxStatus, ChannelFree)
	fm.FakeRead32(mbx+MailboxHeader, MakeHeader(ProtocolSystemPower, MsgSystemPowerStateGet, 9))
	if _, _, err := c.SystemPowerStateGet(); err == nil {
		t.Fatalf("Expected token mismatch to fail")
	}
	fm.Done()

	if got := failed() - before; got != 3 {
		t.Errorf("Expected 3 failed transactions counted, got %v", got)
	}
}
