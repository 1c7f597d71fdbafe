// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"github.com/u-root/u-pwrc/config"
)

type platform struct{}

func (p *platform) Name() string {
	return "juno"
}

// Configure sets up the Juno r2 big.LITTLE layout: cluster 0 holds the
// two Cortex-A72, cluster 1 the four Cortex-A53.
func (p *platform) Configure(c *config.Config) {
	c.Platform = p.Name()
	c.Channel = config.Channel{
		Base:         0x04000080,
		Doorbell:     0x2b1f0020,
		PreserveMask: 0xfffffffe,
		ModifyMask:   0x1,
	}
	c.Topology = config.Topology{
		CoresPerCluster: []int{2, 4},
		MaxLevel:        2,
		SystemLevel:     2,
	}
	c.CoreDomains = []uint32{0, 1, 2, 3, 4, 5}
	c.TrustedMailbox = 0x04000000
}

func Platform() *platform {
	return &platform{}
}
