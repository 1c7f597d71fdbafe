// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psci

import (
	"fmt"
	"strings"
)

// MaxLevels is the number of power levels a PowerState can describe.
const MaxLevels = 4

// LocalState is the platform local state of one power level.
type LocalState uint8

const (
	Run       LocalState = 0
	Retention LocalState = 1
	Off       LocalState = 2
)

func (s LocalState) String() string {
	switch s {
	case Run:
		return "RUN"
	case Retention:
		return "RET"
	case Off:
		return "OFF"
	}
	return fmt.Sprintf("LOCAL(%d)", uint8(s))
}

// PowerState is the requested state of every power level above a CPU,
// level 0 being the CPU itself.
type PowerState struct {
	Level [MaxLevels]LocalState
}

// States builds a PowerState from the states of levels 0 and up. Levels
// that are not given are left running.
func States(s ...LocalState) PowerState {
	if len(s) > MaxLevels {
		panic(fmt.Sprintf("%d power levels requested, at most %d supported", len(s), MaxLevels))
	}
	var p PowerState
	copy(p.Level[:], s)
	return p
}

func (p PowerState) String() string {
	s := make([]string, len(p.Level))
	for i, l := range p.Level {
		s[i] = l.String()
	}
	return "[" + strings.Join(s, " ") + "]"
}

// HwState is the state reported by NODE_HW_STATE.
type HwState int32

const (
	HwOn      HwState = 0
	HwOff     HwState = 1
	HwStandby HwState = 2
)

func (h HwState) String() string {
	switch h {
	case HwOn:
		return "HW_ON"
	case HwOff:
		return "HW_OFF"
	case HwStandby:
		return "HW_STANDBY"
	}
	return fmt.Sprintf("HW_STATE(%d)", int32(h))
}

// ResetType is the reset_type argument of SYSTEM_RESET2.
type ResetType uint32

const (
	// Vendor marks vendor specific reset types.
	Vendor          ResetType = 1 << 31
	SystemWarmReset ResetType = 0
)

// IsVendor reports whether the vendor bit of r is set.
func (r ResetType) IsVendor() bool {
	return r&Vendor != 0
}
