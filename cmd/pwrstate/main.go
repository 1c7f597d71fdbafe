// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pwrstate converts power state words.
//
//	pwrstate decode 0x00020022       SCMI power state word
//	pwrstate encode OFF OFF ON       level 0 first
//	pwrstate psci 0x01010000         CPU_SUSPEND power_state parameter
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/pwrstate"
)

var states = map[string]pwrstate.State{
	"OFF":   pwrstate.Off,
	"ON":    pwrstate.On,
	"SLEEP": pwrstate.Sleep,
}

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("not a 32 bit word: %s", s)
	}
	return uint32(v), nil
}

func run(w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pwrstate decode|encode|psci args")
	}
	switch args[0] {
	case "decode":
		v, err := parseWord(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, pwrstate.Word(v))
	case "encode":
		if len(args)-1 > pwrstate.MaxDescribedLevel+1 {
			return fmt.Errorf("at most %d levels", pwrstate.MaxDescribedLevel+1)
		}
		var ss []pwrstate.State
		for _, a := range args[1:] {
			s, ok := states[strings.ToUpper(a)]
			if !ok {
				return fmt.Errorf("unknown state %q", a)
			}
			ss = append(ss, s)
		}
		fmt.Fprintln(w, pwrstate.New(ss...))
	case "psci":
		v, err := parseWord(args[1])
		if err != nil {
			return err
		}
		p, err := psci.ParsePowerState(v)
		if err != nil {
			return fmt.Errorf("%#08x: %v", v, err)
		}
		fmt.Fprintln(w, p)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(os.Stdout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
