// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pwrd is the power controller daemon. It drives the SCP of the selected
// board over SCMI and serves the PSCI hooks over gRPC.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/u-root/u-pwrc/pkg/logger"
	"github.com/u-root/u-pwrc/pkg/platform"
	"github.com/u-root/u-pwrc/pkg/pwrc"
	juno "github.com/u-root/u-pwrc/platform/juno/pkg/platform"
	sgi575 "github.com/u-root/u-pwrc/platform/sgi575/pkg/platform"
	"golang.org/x/sys/unix"
)

var (
	log = logger.LogContainer.GetSimpleLogger()

	platforms = map[string]pwrc.Platform{
		"juno":   juno.Platform(),
		"sgi575": sgi575.Platform(),
	}

	board      = flag.String("platform", "juno", "Board to run on: "+names())
	configFile = flag.String("config", "", "YAML file overriding the board defaults")
	simulate   = flag.Bool("simulate", false, "Talk to an in-process SCP simulator instead of /dev/mem")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	haltMode   = flag.String("halt", "exit", "What a fatal error or accepted system request does: exit or forever")
)

func names() string {
	n := make([]string, 0, len(platforms))
	for k := range platforms {
		n = append(n, k)
	}
	sort.Strings(n)
	return strings.Join(n, ", ")
}

func main() {
	flag.Parse()

	halt, err := platform.NewHalter(*haltMode)
	if err != nil {
		log.Fatalf("%v", err)
	}
	p, ok := platforms[*board]
	if !ok {
		log.Fatalf("Unknown platform %q, known: %s", *board, names())
	}
	c, err := pwrc.LoadConfig(afero.NewOsFs(), p, *configFile)
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}
	if *simulate {
		c.Simulate.Enabled = true
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	d, err := pwrc.Start(ctx, c, halt)
	if err != nil {
		log.Fatalf("Starting power controller: %v", err)
	}
	log.Infof("Serving gRPC on %s, metrics on %s", d.GRPCAddr(), d.MetricsAddr())
	if err := d.Wait(); err != nil {
		log.Fatalf("Power controller stopped: %v", err)
	}
	log.Info("Power controller stopped")
}
