// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psci

import "fmt"

// PstateType selects between standby and power down in a power_state
// parameter.
type PstateType uint8

const (
	Standby   PstateType = 0
	PowerDown PstateType = 1
)

func (t PstateType) String() string {
	if t == Standby {
		return "standby"
	}
	return "powerdown"
}

// power_state parameter layout, original format.
const (
	pstateIDMask      = 0xffff
	pstateTypeShift   = 16
	pstateTypeMask    = 0x1
	pstateLevelShift  = 24
	pstateLevelMask   = 0x3
	pstateInvalidBits = 0xfcfe0000
)

// Pstate is a decoded power_state parameter of CPU_SUSPEND.
type Pstate struct {
	ID    uint16
	Type  PstateType
	Level uint
}

// ParsePowerState decodes a power_state parameter. Reserved bits must be
// zero.
func ParsePowerState(v uint32) (Pstate, error) {
	if v&pstateInvalidBits != 0 {
		return Pstate{}, InvalidParams
	}
	return Pstate{
		ID:    uint16(v & pstateIDMask),
		Type:  PstateType(v >> pstateTypeShift & pstateTypeMask),
		Level: uint(v >> pstateLevelShift & pstateLevelMask),
	}, nil
}

// Encode returns p as a power_state parameter.
func (p Pstate) Encode() uint32 {
	return uint32(p.ID)&pstateIDMask |
		(uint32(p.Type)&pstateTypeMask)<<pstateTypeShift |
		(uint32(p.Level)&pstateLevelMask)<<pstateLevelShift
}

func (p Pstate) String() string {
	return fmt.Sprintf("%v@L%d id=%#x", p.Type, p.Level, p.ID)
}
