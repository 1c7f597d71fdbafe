// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"encode", "sleep", "off", "off"}, "0x00020002 [SLEEP OFF OFF]\n"},
		{[]string{"decode", "0x00020002"}, "0x00020002 [SLEEP OFF OFF]\n"},
		{[]string{"psci", "0x01010000"}, "powerdown@L1 id=0x0\n"},
	} {
		var b bytes.Buffer
		if err := run(&b, tc.args); err != nil {
			t.Errorf("run(%v): %v", tc.args, err)
			continue
		}
		if b.String() != tc.want {
			t.Errorf("run(%v) = %q, want %q", tc.args, b.String(), tc.want)
		}
	}
}

func TestRunErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"decode", "zz"},
		{"encode", "ON", "BRIGHT"},
		{"encode", "ON", "ON", "ON", "ON", "ON"},
		{"psci", "0x80000000"},
		{"flip", "1"},
	} {
		if err := run(&bytes.Buffer{}, args); err == nil {
			t.Errorf("run(%v) succeeded", args)
		} else if strings.TrimSpace(err.Error()) == "" {
			t.Errorf("run(%v) returned an empty error", args)
		}
	}
}
