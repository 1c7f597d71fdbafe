// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scpsim

import (
	"github.com/u-root/u-pwrc/pkg/pwrstate"
	"github.com/u-root/u-pwrc/pkg/scmi"
)

// Messages the simulator implements, per protocol.
var implemented = map[scmi.ProtocolID][]scmi.MessageID{
	scmi.ProtocolBase:        {scmi.MsgProtocolVersion, scmi.MsgProtocolAttributes, scmi.MsgProtocolMessageAttributes},
	scmi.ProtocolPowerDomain: {scmi.MsgProtocolVersion, scmi.MsgProtocolAttributes, scmi.MsgProtocolMessageAttributes, scmi.MsgPowerStateSet, scmi.MsgPowerStateGet},
	scmi.ProtocolSystemPower: {scmi.MsgProtocolVersion, scmi.MsgProtocolAttributes, scmi.MsgProtocolMessageAttributes, scmi.MsgSystemPowerStateSet, scmi.MsgSystemPowerStateGet},
	scmi.ProtocolAPCore:      {scmi.MsgProtocolVersion, scmi.MsgProtocolAttributes, scmi.MsgProtocolMessageAttributes, scmi.MsgAPCoreResetAddrSet, scmi.MsgAPCoreResetAddrGet},
}

func (s *Sim) implements(p scmi.ProtocolID, m scmi.MessageID) bool {
	if s.unsupported[msgKey{p, m}] {
		return false
	}
	for _, i := range implemented[p] {
		if i == m {
			return true
		}
	}
	return false
}

// handle runs one message with s.mu held.
func (s *Sim) handle(p scmi.ProtocolID, m scmi.MessageID, args []uint32) (scmi.Status, []uint32) {
	if _, ok := implemented[p]; !ok {
		return scmi.NotSupported, nil
	}
	if !s.implements(p, m) {
		return scmi.NotFound, nil
	}

	switch m {
	case scmi.MsgProtocolVersion:
		return scmi.Success, []uint32{s.versions[p]}
	case scmi.MsgProtocolAttributes:
		if p == scmi.ProtocolPowerDomain {
			return scmi.Success, []uint32{uint32(len(s.cfg.CoreDomains))}
		}
		return scmi.Success, []uint32{0}
	case scmi.MsgProtocolMessageAttributes:
		if len(args) != 1 {
			return scmi.ProtocolError, nil
		}
		q := scmi.MessageID(args[0])
		if !s.implements(p, q) {
			return scmi.NotFound, nil
		}
		if p == scmi.ProtocolSystemPower && q == scmi.MsgSystemPowerStateSet {
			return scmi.Success, []uint32{s.cfg.SystemPowerAttributes}
		}
		return scmi.Success, []uint32{0}
	}

	switch p {
	case scmi.ProtocolPowerDomain:
		switch m {
		case scmi.MsgPowerStateSet:
			return s.powerStateSet(args)
		case scmi.MsgPowerStateGet:
			return s.powerStateGet(args)
		}
	case scmi.ProtocolSystemPower:
		switch m {
		case scmi.MsgSystemPowerStateSet:
			return s.systemPowerStateSet(args)
		case scmi.MsgSystemPowerStateGet:
			return s.systemPowerStateGet(args)
		}
	case scmi.ProtocolAPCore:
		switch m {
		case scmi.MsgAPCoreResetAddrSet:
			return s.resetAddrSet(args)
		case scmi.MsgAPCoreResetAddrGet:
			return scmi.Success, []uint32{uint32(s.resetAddr), uint32(s.resetAddr >> 32), s.resetAttr}
		}
	}
	return scmi.NotFound, nil
}

func (s *Sim) cluster(pos int) int {
	return int(s.cfg.Topology.MPIDR(pos).Aff1())
}

func (s *Sim) siblingRunning(pos int) bool {
	for _, sib := range s.cfg.Topology.Siblings(pos) {
		if s.cores[sib] == pwrstate.On {
			return true
		}
	}
	return false
}

// powerStateSet applies a request for a core and, through level 1, its
// cluster. A cluster cannot go down while another of its cores runs: the
// request is queued and applied when the last core goes down.
func (s *Sim) powerStateSet(args []uint32) (scmi.Status, []uint32) {
	if len(args) != 3 {
		return scmi.ProtocolError, nil
	}
	if args[0] != 0 {
		// Asynchronous requests would need delayed responses
		return scmi.NotSupported, nil
	}
	pos, ok := s.domainCore[args[1]]
	if !ok {
		return scmi.NotFound, nil
	}
	w := pwrstate.Word(args[2])
	if w&^0xfffff != 0 || w.MaxLevel() > s.cfg.Topology.MaxLevel {
		return scmi.InvalidParameters, nil
	}
	for l := uint(0); l <= w.MaxLevel(); l++ {
		if !w.Level(l).Valid() {
			return scmi.InvalidParameters, nil
		}
	}
	// The system domain is only managed through the system power protocol
	if sl := s.cfg.Topology.SystemLevel; w.MaxLevel() >= sl && w.Level(sl) != pwrstate.On {
		return scmi.InvalidParameters, nil
	}

	c := s.cluster(pos)
	s.cores[pos] = w.Level(0)
	if w.MaxLevel() < 1 {
		if s.pendingOff[c] && !s.siblingRunning(pos) && s.cores[pos] != pwrstate.On {
			s.clusters[c] = pwrstate.Off
			s.pendingOff[c] = false
		}
		return scmi.Success, nil
	}

	switch w.Level(1) {
	case pwrstate.On:
		s.clusters[c] = pwrstate.On
		s.pendingOff[c] = false
	default:
		if s.siblingRunning(pos) {
			s.pendingOff[c] = true
			return scmi.Queued, nil
		}
		s.clusters[c] = w.Level(1)
		s.pendingOff[c] = false
	}
	return scmi.Success, nil
}

// powerStateGet reports the core and its cluster. Levels above the
// cluster are not described.
func (s *Sim) powerStateGet(args []uint32) (scmi.Status, []uint32) {
	if len(args) != 1 {
		return scmi.ProtocolError, nil
	}
	pos, ok := s.domainCore[args[0]]
	if !ok {
		return scmi.NotFound, nil
	}
	return scmi.Success, []uint32{uint32(pwrstate.New(s.cores[pos], s.clusters[s.cluster(pos)]))}
}

func (s *Sim) systemPowerStateSet(args []uint32) (scmi.Status, []uint32) {
	if len(args) != 2 {
		return scmi.ProtocolError, nil
	}
	flags, state := scmi.SystemPowerFlags(args[0]), scmi.SystemState(args[1])
	switch state {
	case scmi.SystemShutdown, scmi.SystemColdReset:
	case scmi.SystemWarmReset:
		if s.cfg.SystemPowerAttributes&scmi.SystemPowerWarmResetSupported == 0 {
			return scmi.InvalidParameters, nil
		}
	case scmi.SystemSuspend:
		if s.cfg.SystemPowerAttributes&scmi.SystemPowerSuspendSupported == 0 {
			return scmi.InvalidParameters, nil
		}
	default:
		return scmi.InvalidParameters, nil
	}

	switch flags {
	case scmi.Forceful:
		s.system = state
		s.graceful = nil
	case scmi.Graceful:
		s.graceful = &state
		s.polls = s.cfg.GracefulPolls
		if s.polls == 0 {
			s.system, s.graceful = state, nil
		}
	default:
		return scmi.InvalidParameters, nil
	}
	return scmi.Success, nil
}

func (s *Sim) systemPowerStateGet(args []uint32) (scmi.Status, []uint32) {
	if len(args) != 0 {
		return scmi.ProtocolError, nil
	}
	if s.graceful != nil && s.polls > 0 {
		s.polls--
		if s.polls == 0 {
			s.system, s.graceful = *s.graceful, nil
		}
	}
	return scmi.Success, []uint32{uint32(s.system)}
}

func (s *Sim) resetAddrSet(args []uint32) (scmi.Status, []uint32) {
	if len(args) != 3 {
		return scmi.ProtocolError, nil
	}
	if s.resetAttr&scmi.APCoreLockAttr != 0 {
		return scmi.Denied, nil
	}
	s.resetAddr = uint64(args[1])<<32 | uint64(args[0])
	s.resetAttr = args[2]
	return scmi.Success, nil
}
