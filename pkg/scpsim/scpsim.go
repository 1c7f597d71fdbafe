// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scpsim simulates a System Control Processor serving SCMI over a
// shared memory mailbox.
//
// The simulator owns the mailbox and doorbell memory. An agent rings the
// doorbell, Run picks up the message, executes it against a small model of
// the cores, clusters and the system and hands the slot back.
package scpsim

import (
	"context"
	"sync"

	"github.com/u-root/u-pwrc/pkg/hardware/mem"
	"github.com/u-root/u-pwrc/pkg/logger"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/pwrstate"
	"github.com/u-root/u-pwrc/pkg/scmi"
)

var log = logger.LogContainer.GetSimpleLogger()

// Config describes the simulated platform.
type Config struct {
	Channel     scmi.ChannelInfo
	Topology    psci.Topology
	CoreDomains []uint32
	// SystemPowerAttributes is what PROTOCOL_MESSAGE_ATTRIBUTES reports
	// for SYSTEM_POWER_STATE_SET.
	SystemPowerAttributes uint32
	// GracefulPolls is the number of SYSTEM_POWER_STATE_GET requests
	// answered before a graceful request takes effect. Negative values
	// keep graceful requests pending forever.
	GracefulPolls int
}

// Request is one message served by the simulator.
type Request struct {
	Protocol scmi.ProtocolID
	Message  scmi.MessageID
	Token    uint16
	Args     []uint32
	Status   scmi.Status
}

type msgKey struct {
	p scmi.ProtocolID
	m scmi.MessageID
}

// Sim is a simulated SCP.
type Sim struct {
	cfg     Config
	mailbox *mem.Region
	bus     mem.Bus
	kick    chan struct{}

	mu          sync.Mutex
	versions    map[scmi.ProtocolID]uint32
	cores       []pwrstate.State
	clusters    []pwrstate.State
	pendingOff  []bool
	domainCore  map[uint32]int
	system      scmi.SystemState
	graceful    *scmi.SystemState
	polls       int
	resetAddr   uint64
	resetAttr   uint32
	inject      map[msgKey]scmi.Status
	unsupported map[msgKey]bool
	requests    []Request
}

// New returns a simulator with every core and cluster on.
func New(cfg Config) *Sim {
	s := &Sim{
		cfg:     cfg,
		mailbox: mem.NewRegion(cfg.Channel.Base, scmi.MailboxSize),
		kick:    make(chan struct{}, 1),
		versions: map[scmi.ProtocolID]uint32{
			scmi.ProtocolBase:        scmi.MakeVersion(2, 0),
			scmi.ProtocolPowerDomain: scmi.PowerDomainVersion,
			scmi.ProtocolSystemPower: scmi.SystemPowerVersion,
			scmi.ProtocolAPCore:      scmi.APCoreVersion,
		},
		cores:       make([]pwrstate.State, cfg.Topology.CoreCount()),
		clusters:    make([]pwrstate.State, cfg.Topology.Clusters()),
		pendingOff:  make([]bool, cfg.Topology.Clusters()),
		domainCore:  make(map[uint32]int),
		system:      scmi.SystemPowerUp,
		inject:      make(map[msgKey]scmi.Status),
		unsupported: make(map[msgKey]bool),
	}
	for i := range s.cores {
		s.cores[i] = pwrstate.On
	}
	for i := range s.clusters {
		s.clusters[i] = pwrstate.On
	}
	for pos, d := range cfg.CoreDomains {
		s.domainCore[d] = pos
	}

	doorbell := mem.NewRegion(cfg.Channel.DoorbellAddr, 4)
	doorbell.OnWrite(cfg.Channel.DoorbellAddr, func(v uint32) {
		if v&cfg.Channel.DoorbellModifyMask == 0 {
			return
		}
		select {
		case s.kick <- struct{}{}:
		default:
		}
	})
	s.bus = mem.Bus{s.mailbox, doorbell}
	s.mailbox.MustWrite32(cfg.Channel.Base+scmi.MailboxStatus, scmi.ChannelFree)
	return s
}

// Memory returns the mailbox and doorbell as seen by the agent.
func (s *Sim) Memory() mem.Provider {
	return s.bus
}

// Run serves messages until ctx is done.
func (s *Sim) Run(ctx context.Context) error {
	log.Infof("SCP simulator serving mailbox %#x", s.cfg.Channel.Base)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.kick:
			s.serve()
		}
	}
}

func (s *Sim) read(off uintptr) uint32 {
	return s.mailbox.MustRead32(s.cfg.Channel.Base + off)
}

func (s *Sim) write(off uintptr, v uint32) {
	s.mailbox.MustWrite32(s.cfg.Channel.Base+off, v)
}

func (s *Sim) serve() {
	db := s.cfg.Channel.DoorbellAddr
	s.bus.MustWrite32(db, s.bus.MustRead32(db)&^s.cfg.Channel.DoorbellModifyMask)

	if s.read(scmi.MailboxStatus)&scmi.ChannelFree != 0 {
		log.Warnf("Doorbell rung on a free channel")
		return
	}
	h := s.read(scmi.MailboxHeader)
	n := int(s.read(scmi.MailboxLength))/4 - 1
	if n < 0 || n > scmi.MaxPayloadWords {
		s.write(scmi.MailboxStatus, scmi.ChannelFree|scmi.ChannelError)
		return
	}
	args := make([]uint32, n)
	for i := range args {
		args[i] = s.read(scmi.MailboxPayload + uintptr(4*i))
	}

	p, m := scmi.HeaderProtocol(h), scmi.HeaderMessage(h)
	st, resp := s.execute(h, args)
	log.Debugf("SCP %s(%#x) -> %v", scmi.MessageName(p, m), args, st)

	s.write(scmi.MailboxPayload, uint32(st))
	for i, r := range resp {
		s.write(scmi.MailboxPayload+uintptr(4*(i+1)), r)
	}
	s.write(scmi.MailboxLength, uint32(4*(2+len(resp))))
	s.write(scmi.MailboxStatus, scmi.ChannelFree)
}

func (s *Sim) execute(h uint32, args []uint32) (scmi.Status, []uint32) {
	p, m := scmi.HeaderProtocol(h), scmi.HeaderMessage(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		st   scmi.Status
		resp []uint32
	)
	if inj, ok := s.inject[msgKey{p, m}]; ok {
		st = inj
	} else {
		st, resp = s.handle(p, m, args)
	}
	if st != scmi.Success {
		resp = nil
	}
	s.requests = append(s.requests, Request{Protocol: p, Message: m, Token: scmi.HeaderToken(h), Args: args, Status: st})
	return st, resp
}

// Inject makes every following message m of protocol p return st without
// being executed.
func (s *Sim) Inject(p scmi.ProtocolID, m scmi.MessageID, st scmi.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[msgKey{p, m}] = st
}

// ClearInjections drops every injected status.
func (s *Sim) ClearInjections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject = make(map[msgKey]scmi.Status)
}

// Unsupport hides message m of protocol p from discovery and refuses it.
func (s *Sim) Unsupport(p scmi.ProtocolID, m scmi.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[msgKey{p, m}] = true
}

// SetVersion changes the version reported for protocol p.
func (s *Sim) SetVersion(p scmi.ProtocolID, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[p] = v
}

// Requests returns every message served so far.
func (s *Sim) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := make([]Request, len(s.requests))
	copy(r, s.requests)
	return r
}

// CoreState returns the state of the core at pos.
func (s *Sim) CoreState(pos int) pwrstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cores[pos]
}

// ClusterState returns the state of cluster c.
func (s *Sim) ClusterState(c int) pwrstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clusters[c]
}

// SystemState returns the system state the SCP has applied.
func (s *Sim) SystemState() scmi.SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system
}

// ResetAddress returns the programmed reset address and attributes.
func (s *Sim) ResetAddress() (uint64, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetAddr, s.resetAttr
}
