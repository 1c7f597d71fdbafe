// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"github.com/u-root/u-pwrc/config"
	"github.com/u-root/u-pwrc/pkg/scmi"
)

const (
	clusters        = 2
	coresPerCluster = 4
)

type platform struct{}

func (p *platform) Name() string {
	return "sgi575"
}

func (p *platform) Configure(c *config.Config) {
	c.Platform = p.Name()
	c.Channel = config.Channel{
		Base:         0x45400000,
		Doorbell:     0x45000020,
		PreserveMask: 0x0,
		ModifyMask:   0x1,
	}
	c.Topology = config.Topology{
		MaxLevel:    2,
		SystemLevel: 2,
	}
	c.CoreDomains = nil
	for i := 0; i < clusters; i++ {
		c.Topology.CoresPerCluster = append(c.Topology.CoresPerCluster, coresPerCluster)
	}
	for d := 0; d < clusters*coresPerCluster; d++ {
		c.CoreDomains = append(c.CoreDomains, uint32(d))
	}
	c.TrustedMailbox = 0x04000000
	c.Simulate.SystemPowerAttributes = scmi.SystemPowerWarmResetSupported
}

func Platform() *platform {
	return &platform{}
}
