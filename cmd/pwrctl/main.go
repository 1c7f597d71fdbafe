// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pwrctl talks to pwrd.
//
//	pwrctl [-host addr] caps
//	pwrctl on <mpidr>
//	pwrctl state <mpidr> <level>
//	pwrctl off
//	pwrctl reset [warm]
//	pwrctl decode <power_state>
//	pwrctl services
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/u-root/u-pwrc/pkg/logger"
)

var (
	log     = logger.LogContainer.GetSimpleLogger()
	host    = flag.String("host", "localhost:7575", "Which pwrd to connect to")
	timeout = flag.Duration("timeout", 30*time.Second, "How long to wait for an answer")
	asJSON  = flag.Bool("json", false, "Print responses as JSON")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] caps|on|state|off|reset|decode|services [args]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	conn := newConnection(*host)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if flag.Arg(0) == "services" {
		fmt.Println("Found following services:")
		for _, s := range listServices(ctx, conn) {
			fmt.Println(s)
		}
		return
	}
	if err := callRPC(ctx, newClient(conn), flag.Args()); err != nil {
		log.Fatal(err)
	}
}
