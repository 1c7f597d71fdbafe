// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scp

import (
	"fmt"

	"github.com/u-root/u-pwrc/pkg/scmi"
)

// SystemDomain is the Domain of a CommandError raised by a system power
// request.
const SystemDomain = -1

// CommandError is returned when the SCP refuses a request that cannot be
// rolled back. The state shared with the SCP is unknown afterwards.
type CommandError struct {
	Op     string
	Domain int64
	Status scmi.Status
	// Err is the transport error, if the command never completed.
	Err error
}

func (e *CommandError) Error() string {
	target := "system"
	if e.Domain != SystemDomain {
		target = fmt.Sprintf("domain %d", e.Domain)
	}
	if e.Err != nil {
		return fmt.Sprintf("SCMI %s command on %s failed: %v", e.Op, target, e.Err)
	}
	return fmt.Sprintf("SCMI %s command on %s returned unexpected %v (%d)", e.Op, target, e.Status, int32(e.Status))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
