// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import "fmt"

// Hook names one PSCI platform hook.
type Hook int

const (
	HookValidatePowerState Hook = iota
	HookPwrDomainSuspend
	HookPwrDomainOff
	HookPwrDomainOn
	HookGetNodeHwState
	HookGetSysSuspendPowerState
	HookSystemOff
	HookSystemReset
	HookSystemReset2
	hookCount
)

var hookNames = [...]string{
	HookValidatePowerState:      "validate_power_state",
	HookPwrDomainSuspend:        "pwr_domain_suspend",
	HookPwrDomainOff:            "pwr_domain_off",
	HookPwrDomainOn:             "pwr_domain_on",
	HookGetNodeHwState:          "get_node_hw_state",
	HookGetSysSuspendPowerState: "get_sys_suspend_power_state",
	HookSystemOff:               "system_off",
	HookSystemReset:             "system_reset",
	HookSystemReset2:            "system_reset2",
}

func (h Hook) String() string {
	if h >= 0 && h < hookCount {
		return hookNames[h]
	}
	return fmt.Sprintf("hook(%d)", int(h))
}

// Hooks returns every hook.
func Hooks() []Hook {
	h := make([]Hook, hookCount)
	for i := range h {
		h[i] = Hook(i)
	}
	return h
}
