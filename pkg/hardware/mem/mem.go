// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mem provides 32-bit register and shared-memory access.
//
// The SCMI mailbox and the MHU doorbell are both plain memory mapped words,
// so everything in u-pwrc talks to hardware through a Provider. On a real
// system that is a /dev/mem mapping, in simulation it is a Region and in
// tests it is a memtest.Fake that checks every access in order.
package mem

import "fmt"

// Provider is a 32-bit wide view of an address space. Accesses that fall
// outside what the provider can reach panic, same as a bus fault would.
type Provider interface {
	MustRead32(uintptr) uint32
	MustWrite32(uintptr, uint32)
	Close() error
}

// Window is a physical address range to make available through a Provider.
type Window struct {
	Base uintptr
	Size int
	// Direct windows are not kept mapped. Every access goes to /dev/mem on
	// its own, which suits registers touched once per transaction such as
	// a doorbell.
	Direct bool
}

// split separates the windows to map from the ones accessed directly.
func split(windows []Window) (mapped, direct []Window) {
	for _, w := range windows {
		if w.Direct {
			direct = append(direct, w)
		} else {
			mapped = append(mapped, w)
		}
	}
	return mapped, direct
}

func inAny(windows []Window, a uintptr) bool {
	for _, w := range windows {
		if w.contains(a) {
			return true
		}
	}
	return false
}

func (w Window) contains(a uintptr) bool {
	return a >= w.Base && a+4 <= w.Base+uintptr(w.Size)
}

func (w Window) String() string {
	return fmt.Sprintf("[%#x-%#x)", w.Base, w.Base+uintptr(w.Size))
}
