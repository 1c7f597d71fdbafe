// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package psci holds the types shared between the PSCI generic layer and
// a platform's power management hooks.
package psci

import (
	"errors"
	"fmt"
)

// Error is a negative PSCI return code.
type Error int32

const (
	NotSupported   Error = -1
	InvalidParams  Error = -2
	Denied         Error = -3
	AlreadyOn      Error = -4
	OnPending      Error = -5
	InternFail     Error = -6
	NotPresent     Error = -7
	Disabled       Error = -8
	InvalidAddress Error = -9
)

var errorNames = map[Error]string{
	NotSupported:   "NOT_SUPPORTED",
	InvalidParams:  "INVALID_PARAMETERS",
	Denied:         "DENIED",
	AlreadyOn:      "ALREADY_ON",
	OnPending:      "ON_PENDING",
	InternFail:     "INTERNAL_FAILURE",
	NotPresent:     "NOT_PRESENT",
	Disabled:       "DISABLED",
	InvalidAddress: "INVALID_ADDRESS",
}

func (e Error) Error() string {
	if n, ok := errorNames[e]; ok {
		return "psci: " + n
	}
	return fmt.Sprintf("psci: error %d", int32(e))
}

// Code returns the value a PSCI call returns for err. Errors that are not
// PSCI errors are reported as internal failures.
func Code(err error) int32 {
	if err == nil {
		return 0
	}
	var e Error
	if errors.As(err, &e) {
		return int32(e)
	}
	return int32(InternFail)
}
