// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform implements the PSCI platform power management hooks on
// top of an SCP client. It is the only place where refused power requests
// turn into a halt.
package platform

import (
	"fmt"
	"os"

	"github.com/u-root/u-pwrc/pkg/logger"
)

var log = logger.LogContainer.GetSimpleLogger()

// Halter stops the CPU for good.
type Halter interface {
	// Halt is called on a fatal error. It does not return on hardware.
	Halt(err error)
	// Wait idles after a system power request was accepted, waiting for
	// power to be removed.
	Wait()
}

// HaltForever logs and then blocks the calling goroutine forever.
type HaltForever struct{}

func (HaltForever) Halt(err error) {
	log.Errorf("Halting: %v", err)
	select {}
}

func (HaltForever) Wait() {
	select {}
}

// ExitHalter ends the process instead. Fatal errors exit with status 1, an
// accepted system power request exits with status 0.
type ExitHalter struct {
	// Exit defaults to os.Exit.
	Exit func(code int)
}

func (h ExitHalter) exit(code int) {
	if h.Exit == nil {
		os.Exit(code)
	}
	h.Exit(code)
}

func (h ExitHalter) Halt(err error) {
	log.Errorf("Halting: %v", err)
	_ = log.Sync()
	h.exit(1)
}

func (h ExitHalter) Wait() {
	log.Infof("System power request accepted, exiting")
	_ = log.Sync()
	h.exit(0)
}

// NewHalter returns the halter called name: "forever" idles the process
// like a core would, "exit" ends it.
func NewHalter(name string) (Halter, error) {
	switch name {
	case "forever":
		return HaltForever{}, nil
	case "exit", "":
		return ExitHalter{}, nil
	}
	return nil, fmt.Errorf("unknown halt mode %q", name)
}
