// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scmi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/u-root/u-pwrc/pkg/hardware/mem"
	"github.com/u-root/u-pwrc/pkg/logger"
)

var log = logger.LogContainer.GetSimpleLogger()

// Shared memory mailbox layout, relative to ChannelInfo.Base.
const (
	MailboxStatus  uintptr = 0x04
	MailboxFlags   uintptr = 0x10
	MailboxLength  uintptr = 0x14
	MailboxHeader  uintptr = 0x18
	MailboxPayload uintptr = 0x1c

	// MailboxSize is the size of one SMT slot.
	MailboxSize = 0x80
	// MaxPayloadWords is the payload capacity of one slot.
	MaxPayloadWords = int(MailboxSize-MailboxPayload) / 4
)

// Mailbox status and flag bits.
const (
	ChannelFree  uint32 = 1 << 0
	ChannelError uint32 = 1 << 1

	// FlagRespPoll asks the platform not to raise a completion interrupt,
	// the agent polls the free bit instead.
	FlagRespPoll uint32 = 0
)

var (
	ErrChannelBusy  = errors.New("scmi: channel is not free")
	ErrChannelError = errors.New("scmi: platform reported a channel error")
)

// ChannelInfo describes the mailbox memory and the doorbell that tells the
// platform a message is waiting.
type ChannelInfo struct {
	Base                 uintptr
	DoorbellAddr         uintptr
	DoorbellPreserveMask uint32
	DoorbellModifyMask   uint32
}

// Channel is one SMT mailbox shared by every CPU. The lock is held across
// the whole round trip so at most one transaction is in flight.
type Channel struct {
	mem   mem.Provider
	info  ChannelInfo
	lock  sync.Locker
	token uint16

	// PollMin and PollMax pace the busy wait on the free bit. There is no
	// upper bound on the wait, the platform is assumed to always answer.
	PollMin time.Duration
	PollMax time.Duration
}

// NewChannel wraps a mailbox without talking to the platform. A nil lock
// gets a private mutex.
func NewChannel(m mem.Provider, info ChannelInfo, lock sync.Locker) *Channel {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Channel{
		mem:     m,
		info:    info,
		lock:    lock,
		PollMin: time.Microsecond,
		PollMax: time.Millisecond,
	}
}

// Open wraps a mailbox and checks that the platform implements compatible
// power domain and system power protocols.
func Open(m mem.Provider, info ChannelInfo, lock sync.Locker) (*Channel, error) {
	c := NewChannel(m, info, lock)
	if err := c.checkVersion(ProtocolPowerDomain, PowerDomainVersion); err != nil {
		return nil, err
	}
	if err := c.checkVersion(ProtocolSystemPower, SystemPowerVersion); err != nil {
		return nil, err
	}
	log.Infof("SCMI driver initialized on mailbox %#x", info.Base)
	return c, nil
}

func (c *Channel) checkVersion(p ProtocolID, driver uint32) error {
	v, st, err := c.ProtocolVersion(p)
	if err != nil {
		return fmt.Errorf("%v protocol version: %w", p, err)
	}
	if st != Success {
		return fmt.Errorf("%v protocol version message returned %v", p, st)
	}
	if !VersionCompatible(driver, v) {
		return fmt.Errorf("%v protocol version %#x incompatible with driver version %#x", p, v, driver)
	}
	log.Debugf("SCMI %v protocol version %#x detected", p, v)
	return nil
}

// Info returns the channel description.
func (c *Channel) Info() ChannelInfo {
	return c.info
}

func (c *Channel) nextToken() uint16 {
	c.token = (c.token + 1) & headerTokenMask
	return c.token
}

func (c *Channel) read(off uintptr) uint32 {
	return c.mem.MustRead32(c.info.Base + off)
}

func (c *Channel) write(off uintptr, v uint32) {
	c.mem.MustWrite32(c.info.Base+off, v)
}

func (c *Channel) ringDoorbell() {
	v := c.mem.MustRead32(c.info.DoorbellAddr)
	c.mem.MustWrite32(c.info.DoorbellAddr, v&c.info.DoorbellPreserveMask|c.info.DoorbellModifyMask)
}

func (c *Channel) waitFree() uint32 {
	b := &backoff.Backoff{Min: c.PollMin, Max: c.PollMax, Factor: 2}
	for {
		s := c.read(MailboxStatus)
		if s&ChannelFree != 0 {
			return s
		}
		time.Sleep(b.Duration())
	}
}

// Send performs one synchronous command. args is the request payload and
// respWords the number of response payload words expected after the
// status. Error responses that carry only a status are accepted.
func (c *Channel) Send(p ProtocolID, m MessageID, args []uint32, respWords int) (Status, []uint32, error) {
	if len(args) > MaxPayloadWords || respWords+1 > MaxPayloadWords {
		panic(fmt.Sprintf("%s payload does not fit the mailbox", MessageName(p, m)))
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	start := time.Now()
	st, resp, err := c.transact(p, m, args, respWords)
	label := st.String()
	if err != nil {
		label = failedLabel
	}
	observe(p, m, label, time.Since(start))
	return st, resp, err
}

// transact runs one round trip. The caller holds the lock.
func (c *Channel) transact(p ProtocolID, m MessageID, args []uint32, respWords int) (Status, []uint32, error) {
	if c.read(MailboxStatus)&ChannelFree == 0 {
		return 0, nil, ErrChannelBusy
	}

	token := c.nextToken()
	c.write(MailboxHeader, MakeHeader(p, m, token))
	c.write(MailboxLength, uint32(4*(1+len(args))))
	c.write(MailboxFlags, FlagRespPoll)
	for i, a := range args {
		c.write(MailboxPayload+uintptr(4*i), a)
	}

	// Hand the slot to the platform
	c.write(MailboxStatus, 0)
	c.ringDoorbell()
	s := c.waitFree()

	if s&ChannelError != 0 {
		return 0, nil, ErrChannelError
	}
	h := c.read(MailboxHeader)
	if HeaderToken(h) != token {
		return 0, nil, fmt.Errorf("scmi: %s response token %d, expected %d", MessageName(p, m), HeaderToken(h), token)
	}
	n := c.read(MailboxLength)
	st := Status(int32(c.read(MailboxPayload)))
	var resp []uint32
	switch {
	case n == uint32(4*(2+respWords)):
		resp = make([]uint32, respWords)
		for i := range resp {
			resp[i] = c.read(MailboxPayload + uintptr(4*(i+1)))
		}
	case n == 8 && st != Success:
	default:
		return 0, nil, fmt.Errorf("scmi: %s response length %d, expected %d", MessageName(p, m), n, 4*(2+respWords))
	}
	return st, resp, nil
}
