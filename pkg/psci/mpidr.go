// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psci

import "fmt"

// MPIDR is the multiprocessor affinity register value identifying a CPU.
type MPIDR uint64

// Affinity fields of an MPIDR.
const (
	affinityMask = 0xff
	aff1Shift    = 8
	aff2Shift    = 16
	aff3Shift    = 32
)

// MakeMPIDR returns the MPIDR of core in cluster.
func MakeMPIDR(cluster, core uint8) MPIDR {
	return MPIDR(cluster)<<aff1Shift | MPIDR(core)
}

func (m MPIDR) Aff0() uint8 { return uint8(m & affinityMask) }
func (m MPIDR) Aff1() uint8 { return uint8(m >> aff1Shift & affinityMask) }
func (m MPIDR) Aff2() uint8 { return uint8(m >> aff2Shift & affinityMask) }
func (m MPIDR) Aff3() uint8 { return uint8(m >> aff3Shift & affinityMask) }

func (m MPIDR) String() string {
	return fmt.Sprintf("%#x", uint64(m))
}

// Topology describes a two level cluster/core hierarchy with an optional
// system level above it.
type Topology struct {
	// CoresPerCluster holds the number of cores of every cluster, indexed
	// by affinity level 1.
	CoresPerCluster []int
	// MaxLevel is the highest power level managed for a CPU.
	MaxLevel uint
	// SystemLevel is the level of the system power domain.
	SystemLevel uint
}

// Clusters returns the number of clusters.
func (t Topology) Clusters() int {
	return len(t.CoresPerCluster)
}

// CoreCount returns the number of cores of the platform.
func (t Topology) CoreCount() int {
	n := 0
	for _, c := range t.CoresPerCluster {
		n += c
	}
	return n
}

// CorePos returns the linear index of the CPU identified by m, cluster
// after cluster. It reports false for MPIDRs that name no CPU.
func (t Topology) CorePos(m MPIDR) (int, bool) {
	if m.Aff2() != 0 || m.Aff3() != 0 {
		return 0, false
	}
	cluster, core := int(m.Aff1()), int(m.Aff0())
	if cluster >= len(t.CoresPerCluster) || core >= t.CoresPerCluster[cluster] {
		return 0, false
	}
	pos := core
	for _, c := range t.CoresPerCluster[:cluster] {
		pos += c
	}
	return pos, true
}

// MPIDR returns the MPIDR of the CPU at linear index pos. It panics if pos
// is out of range.
func (t Topology) MPIDR(pos int) MPIDR {
	if pos >= 0 {
		for cluster, c := range t.CoresPerCluster {
			if pos < c {
				return MakeMPIDR(uint8(cluster), uint8(pos))
			}
			pos -= c
		}
	}
	panic(fmt.Sprintf("core position out of range for %d cores", t.CoreCount()))
}

// Siblings returns the positions of the cores sharing a cluster with pos.
func (t Topology) Siblings(pos int) []int {
	m := t.MPIDR(pos)
	first, _ := t.CorePos(MakeMPIDR(m.Aff1(), 0))
	var s []int
	for i := 0; i < t.CoresPerCluster[m.Aff1()]; i++ {
		if first+i != pos {
			s = append(s, first+i)
		}
	}
	return s
}

// Validate checks that the topology can be described by a PowerState.
func (t Topology) Validate() error {
	if len(t.CoresPerCluster) == 0 {
		return fmt.Errorf("topology has no clusters")
	}
	if len(t.CoresPerCluster) > affinityMask+1 {
		return fmt.Errorf("topology has %d clusters, at most %d supported", len(t.CoresPerCluster), affinityMask+1)
	}
	for i, c := range t.CoresPerCluster {
		if c <= 0 || c > affinityMask+1 {
			return fmt.Errorf("cluster %d has %d cores", i, c)
		}
	}
	if t.MaxLevel >= MaxLevels {
		return fmt.Errorf("max power level %d, at most %d supported", t.MaxLevel, MaxLevels-1)
	}
	if t.SystemLevel == 0 {
		return fmt.Errorf("system level cannot be the core level")
	}
	if t.SystemLevel > t.MaxLevel {
		return fmt.Errorf("system level %d above max power level %d", t.SystemLevel, t.MaxLevel)
	}
	return nil
}
