// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scmi

import "fmt"

// Status is the first word of every SCMI response.
type Status int32

const (
	Success Status = 0
	// Queued means the request was accepted and will be applied once the
	// operations it depends on have completed.
	Queued            Status = 1
	NotSupported      Status = -1
	InvalidParameters Status = -2
	Denied            Status = -3
	NotFound          Status = -4
	OutOfRange        Status = -5
	Busy              Status = -6
	CommsError        Status = -7
	GenericError      Status = -8
	HardwareError     Status = -9
	ProtocolError     Status = -10
)

var statusNames = map[Status]string{
	Success:           "SUCCESS",
	Queued:            "QUEUED",
	NotSupported:      "NOT_SUPPORTED",
	InvalidParameters: "INVALID_PARAMETERS",
	Denied:            "DENIED",
	NotFound:          "NOT_FOUND",
	OutOfRange:        "OUT_OF_RANGE",
	Busy:              "BUSY",
	CommsError:        "COMMS_ERROR",
	GenericError:      "GENERIC_ERROR",
	HardwareError:     "HARDWARE_ERROR",
	ProtocolError:     "PROTOCOL_ERROR",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("STATUS(%d)", int32(s))
}

// AllStatuses returns every status code defined by SCMI, in numeric order.
func AllStatuses() []Status {
	s := []Status{}
	for v := ProtocolError; v <= Queued; v++ {
		s = append(s, v)
	}
	return s
}
