// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scmi implements the agent side of the ARM System Control and
// Management Interface over a shared memory mailbox (SMT) with a doorbell.
//
// Only the messages needed for CPU and system power management are
// implemented: the protocol discovery messages, POWER_STATE_SET/GET of the
// power domain protocol, SYSTEM_POWER_STATE_SET/GET of the system power
// protocol and the reset address message of the AP core protocol.
package scmi

import "fmt"

// ProtocolID identifies an SCMI protocol.
type ProtocolID uint8

const (
	ProtocolBase        ProtocolID = 0x10
	ProtocolPowerDomain ProtocolID = 0x11
	ProtocolSystemPower ProtocolID = 0x12
	ProtocolAPCore      ProtocolID = 0x90
)

func (p ProtocolID) String() string {
	switch p {
	case ProtocolBase:
		return "base"
	case ProtocolPowerDomain:
		return "power_domain"
	case ProtocolSystemPower:
		return "system_power"
	case ProtocolAPCore:
		return "ap_core"
	}
	return fmt.Sprintf("protocol_%#x", uint8(p))
}

// MessageID identifies a message within a protocol.
type MessageID uint8

// Messages common to all protocols.
const (
	MsgProtocolVersion           MessageID = 0x0
	MsgProtocolAttributes        MessageID = 0x1
	MsgProtocolMessageAttributes MessageID = 0x2
)

// Power domain protocol messages.
const (
	MsgPowerStateSet MessageID = 0x4
	MsgPowerStateGet MessageID = 0x5
)

// System power protocol messages.
const (
	MsgSystemPowerStateSet MessageID = 0x3
	MsgSystemPowerStateGet MessageID = 0x4
)

// AP core protocol messages.
const (
	MsgAPCoreResetAddrSet MessageID = 0x3
	MsgAPCoreResetAddrGet MessageID = 0x4
)

var messageNames = map[ProtocolID]map[MessageID]string{
	ProtocolPowerDomain: {
		MsgPowerStateSet: "POWER_STATE_SET",
		MsgPowerStateGet: "POWER_STATE_GET",
	},
	ProtocolSystemPower: {
		MsgSystemPowerStateSet: "SYSTEM_POWER_STATE_SET",
		MsgSystemPowerStateGet: "SYSTEM_POWER_STATE_GET",
	},
	ProtocolAPCore: {
		MsgAPCoreResetAddrSet: "RESET_ADDRESS_SET",
		MsgAPCoreResetAddrGet: "RESET_ADDRESS_GET",
	},
}

// MessageName returns the SCMI name of message m of protocol p.
func MessageName(p ProtocolID, m MessageID) string {
	switch m {
	case MsgProtocolVersion:
		return "PROTOCOL_VERSION"
	case MsgProtocolAttributes:
		return "PROTOCOL_ATTRIBUTES"
	case MsgProtocolMessageAttributes:
		return "PROTOCOL_MESSAGE_ATTRIBUTES"
	}
	if n, ok := messageNames[p][m]; ok {
		return n
	}
	return fmt.Sprintf("MESSAGE_%#x", uint8(m))
}

// Message header layout.
const (
	headerMsgIDMask    = 0xff
	headerMsgTypeShift = 8
	headerMsgTypeMask  = 0x3
	headerProtoShift   = 10
	headerProtoMask    = 0xff
	headerTokenShift   = 18
	headerTokenMask    = 0x3ff

	msgTypeCommand = 0
)

// MakeHeader builds the header of a synchronous command.
func MakeHeader(p ProtocolID, m MessageID, token uint16) uint32 {
	return uint32(m)&headerMsgIDMask |
		msgTypeCommand<<headerMsgTypeShift |
		(uint32(p)&headerProtoMask)<<headerProtoShift |
		(uint32(token)&headerTokenMask)<<headerTokenShift
}

// HeaderMessage returns the message id of header h.
func HeaderMessage(h uint32) MessageID {
	return MessageID(h & headerMsgIDMask)
}

// HeaderProtocol returns the protocol id of header h.
func HeaderProtocol(h uint32) ProtocolID {
	return ProtocolID(h >> headerProtoShift & headerProtoMask)
}

// HeaderToken returns the sequence token of header h.
func HeaderToken(h uint32) uint16 {
	return uint16(h >> headerTokenShift & headerTokenMask)
}

// MakeVersion packs a protocol version the way PROTOCOL_VERSION reports it.
func MakeVersion(major, minor uint16) uint32 {
	return uint32(major)<<16 | uint32(minor)
}

// VersionCompatible reports whether a remote protocol version can be used
// by a driver written against version driver.
func VersionCompatible(driver, remote uint32) bool {
	return driver>>16 == remote>>16 && driver&0xffff <= remote&0xffff
}

// Protocol versions this driver is written against.
var (
	PowerDomainVersion = MakeVersion(1, 0)
	SystemPowerVersion = MakeVersion(1, 0)
	APCoreVersion      = MakeVersion(1, 0)
)
