// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package mem

import "errors"

// OpenHost is only available on Linux.
func OpenHost(windows ...Window) (Provider, error) {
	return nil, errors.New("physical memory access is only supported on linux")
}
