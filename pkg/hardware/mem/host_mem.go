// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package mem

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/u-root/u-root/pkg/memio"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

type mapping struct {
	w    Window
	page uintptr
	mem  []byte
}

type hostMem struct {
	f      *os.File
	maps   []mapping
	direct []Window
}

// OpenHost maps the given physical windows of /dev/mem. Unlike mapping a
// page per access, the windows stay mapped until Close, which matters for
// the mailbox poll loop. Direct windows go through memio instead.
func OpenHost(windows ...Window) (Provider, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0600)
	if err != nil {
		return nil, err
	}
	mapped, direct := split(windows)
	m := &hostMem{f: f, direct: direct}
	ps := uintptr(unix.Getpagesize())
	for _, w := range mapped {
		page := w.Base &^ (ps - 1)
		length := (w.Base - page + uintptr(w.Size) + ps - 1) &^ (ps - 1)
		b, err := unix.Mmap(int(f.Fd()), int64(page), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("mmap %v: %w", w, err), m.Close())
		}
		m.maps = append(m.maps, mapping{w: w, page: page, mem: b})
	}
	return m, nil
}

// word returns the mapped word at address, or nil if address lies in a
// direct window.
func (m *hostMem) word(address uintptr) *uint32 {
	if address&3 != 0 {
		panic(fmt.Sprintf("unaligned 32 bit access at %#x", address))
	}
	for _, mp := range m.maps {
		if mp.w.contains(address) {
			return (*uint32)(unsafe.Pointer(&mp.mem[address-mp.page]))
		}
	}
	if inAny(m.direct, address) {
		return nil
	}
	panic(fmt.Sprintf("address %#x is not mapped", address))
}

func (m *hostMem) MustRead32(address uintptr) uint32 {
	if p := m.word(address); p != nil {
		return atomic.LoadUint32(p)
	}
	v := memio.Uint32(0)
	if err := memio.Read(int64(address), &v); err != nil {
		panic(fmt.Sprintf("read %#x: %v", address, err))
	}
	return uint32(v)
}

func (m *hostMem) MustWrite32(address uintptr, data uint32) {
	if p := m.word(address); p != nil {
		atomic.StoreUint32(p, data)
		return
	}
	v := memio.Uint32(data)
	if err := memio.Write(int64(address), &v); err != nil {
		panic(fmt.Sprintf("write %#x: %v", address, err))
	}
}

func (m *hostMem) Close() error {
	var err error
	for _, mp := range m.maps {
		err = multierr.Append(err, unix.Munmap(mp.mem))
	}
	m.maps = nil
	return multierr.Append(err, m.f.Close())
}
