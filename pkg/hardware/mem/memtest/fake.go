// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memtest provides a mem.Provider that verifies an exact sequence
// of register accesses.
package memtest

import (
	"fmt"
	"testing"
)

type op struct {
	write   bool
	address uintptr
	data    uint32
}

func (o *op) String() string {
	t := "read"
	if o.write {
		t = "write"
	}
	return fmt.Sprintf("{%s @ %08x = %08x}", t, o.address, o.data)
}

// Fake replays queued reads and checks queued writes in order.
type Fake struct {
	t   testing.TB
	ops []op
}

// New returns an empty Fake reporting mismatches to t.
func New(t testing.TB) *Fake {
	return &Fake{t: t}
}

func (m *Fake) next() (op, bool) {
	if len(m.ops) == 0 {
		return op{}, false
	}
	o := m.ops[0]
	m.ops = m.ops[1:]
	return o, true
}

func (m *Fake) MustRead32(a uintptr) uint32 {
	o, ok := m.next()
	if !ok {
		m.t.Fatalf("Unexpected 32 bit read on %08x, no more operations queued", a)
	}
	if o.write || o.address != a {
		m.t.Errorf("Expected %s, got 32 bit read on %08x", o.String(), a)
	}
	return o.data
}

func (m *Fake) MustWrite32(a uintptr, d uint32) {
	o, ok := m.next()
	if !ok {
		m.t.Fatalf("Unexpected 32 bit write of %08x on %08x, no more operations queued", d, a)
	}
	if !o.write || o.address != a || o.data != d {
		m.t.Errorf("Expected %s, got 32 bit write of %08x on %08x", o.String(), d, a)
	}
}

// ExpectWrite32 queues a write that the code under test must perform.
func (m *Fake) ExpectWrite32(a uintptr, d uint32) {
	m.ops = append(m.ops, op{true, a, d})
}

// FakeRead32 queues a read and the value it returns.
func (m *Fake) FakeRead32(a uintptr, d uint32) {
	m.ops = append(m.ops, op{false, a, d})
}

// Done reports queued operations that never happened.
func (m *Fake) Done() {
	for _, o := range m.ops {
		m.t.Errorf("Expected %s, never happened", o.String())
	}
	m.ops = nil
}

func (m *Fake) Close() error {
	return nil
}
