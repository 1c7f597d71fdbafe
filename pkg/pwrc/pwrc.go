// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pwrc brings up the power controller: the SCMI channel, the SCP
// client, the PSCI hooks and the services exposing them.
package pwrc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/afero"
	"github.com/u-root/u-pwrc/config"
	"github.com/u-root/u-pwrc/pkg/hardware/mem"
	"github.com/u-root/u-pwrc/pkg/logger"
	"github.com/u-root/u-pwrc/pkg/metric"
	"github.com/u-root/u-pwrc/pkg/network/web"
	"github.com/u-root/u-pwrc/pkg/platform"
	"github.com/u-root/u-pwrc/pkg/scmi"
	"github.com/u-root/u-pwrc/pkg/scp"
	"github.com/u-root/u-pwrc/pkg/scpsim"
	"github.com/u-root/u-pwrc/pkg/service/grpc"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

const banner = `
██╗   ██╗      ██████╗ ██╗    ██╗██████╗  ██████╗
██║   ██║      ██╔══██╗██║    ██║██╔══██╗██╔════╝
██║   ██║█████╗██████╔╝██║ █╗ ██║██████╔╝██║
██║   ██║╚════╝██╔═══╝ ██║███╗██║██╔══██╗██║
╚██████╔╝      ██║     ╚███╔███╔╝██║  ██║╚██████╗
 ╚═════╝       ╚═╝      ╚══╝╚══╝ ╚═╝  ╚═╝ ╚═════╝
`

var log = logger.LogContainer.GetSimpleLogger()

// Platform is a board the controller runs on.
type Platform interface {
	// Name is matched against the platform named in the config file.
	Name() string
	// Configure applies the board defaults to c.
	Configure(c *config.Config)
}

// LoadConfig returns the configuration of p, overridden by the YAML file
// at path if path is not empty.
func LoadConfig(fs afero.Fs, p Platform, path string) (*config.Config, error) {
	c := config.DefaultConfig.Clone()
	p.Configure(c)
	if path == "" {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := config.Load(fs, path, c)
	if err != nil {
		return nil, err
	}
	if c.Platform != p.Name() {
		log.Warnf("Config file is for platform %q, running on %q", c.Platform, p.Name())
	}
	return c, nil
}

// Daemon is a running power controller.
type Daemon struct {
	Config  *config.Config
	Client  *scp.Client
	Ops     *platform.Ops
	Manager *platform.Manager
	// Sim is the simulated SCP, nil on hardware.
	Sim *scpsim.Sim

	mem     mem.Provider
	g       *errgroup.Group
	cancel  context.CancelFunc
	web     *web.WebServer
	grpcLis net.Listener
}

func (d *Daemon) openMemory(ctx context.Context) error {
	c := d.Config
	if c.Simulate.Enabled {
		d.Sim = scpsim.New(scpsim.Config{
			Channel:               c.ChannelInfo(),
			Topology:              c.PsciTopology(),
			CoreDomains:           c.CoreDomains,
			SystemPowerAttributes: c.Simulate.SystemPowerAttributes,
			GracefulPolls:         c.Simulate.GracefulPolls,
		})
		d.g.Go(func() error { return d.Sim.Run(ctx) })
		d.mem = d.Sim.Memory()
		log.Warnf("Running against the SCP simulator")
		return nil
	}
	m, err := mem.OpenHost(
		mem.Window{Base: uintptr(c.Channel.Base), Size: scmi.MailboxSize},
		mem.Window{Base: uintptr(c.Channel.Doorbell), Size: 4, Direct: true},
	)
	if err != nil {
		return fmt.Errorf("map SCMI mailbox: %w", err)
	}
	d.mem = m
	return nil
}

func (d *Daemon) setupSCP() error {
	c := d.Config
	ch, err := scmi.Open(d.mem, c.ChannelInfo(), nil)
	if err != nil {
		return err
	}
	d.Client, err = scp.New(ch, c.SCP(), logger.LogContainer.GetLogger())
	if err != nil {
		return err
	}
	if _, err := d.Client.Negotiate(); err != nil {
		return err
	}
	if c.TrustedMailbox == 0 {
		return nil
	}
	if err := d.Client.SetupAPCore(); err != nil {
		return err
	}
	if err := d.Client.ProgramTrustedMailbox(c.TrustedMailbox); err != nil {
		return err
	}
	log.Infof("CPU reset address locked to %#x", c.TrustedMailbox)
	return nil
}

func (d *Daemon) listen() error {
	c := d.Config
	var err error
	d.grpcLis, err = net.Listen("tcp", c.Listen.GRPC)
	if err != nil {
		return fmt.Errorf("could not listen: %v", err)
	}
	if c.Listen.MaxConnections > 0 {
		d.grpcLis = netutil.LimitListener(d.grpcLis, c.Listen.MaxConnections)
	}
	if c.Listen.Metrics == "" {
		return nil
	}
	d.web = web.NewWebserver()
	metric.StartMetrics(d.web.Mux)
	return d.web.Listen(c.Listen.Metrics)
}

// Start brings up the controller described by c. Fatal SCP errors are
// handed to h. The daemon stops when ctx is done, see Wait.
func Start(ctx context.Context, c *config.Config, h platform.Halter) (*Daemon, error) {
	if err := logger.LogContainer.SetLevel(c.LogLevel); err != nil {
		return nil, err
	}
	if c.LogFile != "" {
		if err := logger.LogContainer.SetLogFile(c.LogFile); err != nil {
			return nil, err
		}
	}
	log.Info(banner)
	log.Infof("Version %s (%s) on %s", c.Version.Version, c.Version.GitHash, c.Platform)

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	d := &Daemon{Config: c, g: g, cancel: cancel}
	fail := func(err error) (*Daemon, error) {
		cancel()
		g.Wait()
		if d.mem != nil {
			d.mem.Close()
		}
		return nil, err
	}

	if err := d.openMemory(ctx); err != nil {
		return fail(err)
	}
	if err := d.setupSCP(); err != nil {
		return fail(err)
	}
	d.Ops = platform.NewOps(d.Client, d.Client.Capabilities(), h, nil)
	d.Manager = platform.NewManager(d.Ops, d.Client, nil, platform.ShutdownPolicy{
		GracefulTimeout: c.Shutdown.GracefulTimeout,
		PollInterval:    c.Shutdown.PollInterval,
		MaxPollInterval: c.Shutdown.MaxPollInterval,
	})
	if err := d.listen(); err != nil {
		return fail(err)
	}

	srv := grpc.NewServer(d.Ops, d.Manager, &c.Version)
	g.Go(func() error { return grpc.Serve(ctx, d.grpcLis, srv) })
	if d.web != nil {
		g.Go(d.web.Serve)
		g.Go(func() error {
			<-ctx.Done()
			return d.web.Shutdown(context.Background())
		})
	}
	return d, nil
}

// GRPCAddr is the address the power service listens on.
func (d *Daemon) GRPCAddr() string {
	return d.grpcLis.Addr().String()
}

// MetricsAddr is the address of the metrics endpoint, empty if disabled.
func (d *Daemon) MetricsAddr() string {
	if d.web == nil {
		return ""
	}
	return d.web.Addr()
}

// Stop shuts the daemon down.
func (d *Daemon) Stop() {
	d.cancel()
}

// Wait blocks until the daemon stopped and returns the first error that
// stopped it. Stopping through the context is not an error.
func (d *Daemon) Wait() error {
	err := d.g.Wait()
	d.cancel()
	if cerr := d.mem.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
