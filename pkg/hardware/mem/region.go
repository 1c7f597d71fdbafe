// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mem

import (
	"fmt"
	"sync"
)

// Region is plain memory shared between goroutines. It stands in for the
// SRAM and doorbell registers that an AP and its SCP share.
type Region struct {
	w     Window
	m     sync.Mutex
	words []uint32
	hooks map[uintptr]func(uint32)
}

// NewRegion allocates a zeroed region of size bytes starting at base.
func NewRegion(base uintptr, size int) *Region {
	return &Region{
		w:     Window{Base: base, Size: size},
		words: make([]uint32, size/4),
		hooks: make(map[uintptr]func(uint32)),
	}
}

// OnWrite registers f to be called after every write to address. The hook
// runs outside the region lock so it may access the region itself.
func (r *Region) OnWrite(address uintptr, f func(uint32)) {
	r.index(address)
	r.m.Lock()
	defer r.m.Unlock()
	r.hooks[address] = f
}

func (r *Region) index(address uintptr) int {
	if address&3 != 0 {
		panic(fmt.Sprintf("unaligned 32 bit access at %#x", address))
	}
	if !r.w.contains(address) {
		panic(fmt.Sprintf("address %#x outside region %v", address, r.w))
	}
	return int(address-r.w.Base) / 4
}

func (r *Region) MustRead32(address uintptr) uint32 {
	i := r.index(address)
	r.m.Lock()
	defer r.m.Unlock()
	return r.words[i]
}

func (r *Region) MustWrite32(address uintptr, data uint32) {
	i := r.index(address)
	r.m.Lock()
	r.words[i] = data
	f := r.hooks[address]
	r.m.Unlock()
	if f != nil {
		f(data)
	}
}

func (r *Region) Close() error {
	return nil
}

// Window returns the address range of the region.
func (r *Region) Window() Window {
	return r.w
}

// Bus routes every access to the region containing it.
type Bus []*Region

func (b Bus) region(address uintptr) *Region {
	for _, r := range b {
		if r.w.contains(address) {
			return r
		}
	}
	panic(fmt.Sprintf("address %#x not mapped", address))
}

func (b Bus) MustRead32(address uintptr) uint32 {
	return b.region(address).MustRead32(address)
}

func (b Bus) MustWrite32(address uintptr, data uint32) {
	b.region(address).MustWrite32(address, data)
}

func (b Bus) Close() error {
	return nil
}
