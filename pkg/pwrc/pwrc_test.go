// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwrc

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/u-root/u-pwrc/config"
	"github.com/u-root/u-pwrc/pkg/scmi"
	"github.com/u-root/u-pwrc/pkg/service/grpc"
	ggrpc "google.golang.org/grpc"
)

type testPlatform struct{}

func (testPlatform) Name() string { return "test" }

func (testPlatform) Configure(c *config.Config) {
	c.Platform = "test"
	c.Simulate.Enabled = true
	c.Listen.GRPC = "localhost:0"
	c.Listen.Metrics = "localhost:0"
	c.TrustedMailbox = 0x80000000
}

// unlistenedPlatform leaves the gRPC listen address empty.
type unlistenedPlatform struct{ testPlatform }

func (unlistenedPlatform) Configure(c *config.Config) {
	testPlatform{}.Configure(c)
	c.Listen.GRPC = ""
}

type testHalter struct{ halts int }

func (h *testHalter) Halt(error) { h.halts++ }
func (h *testHalter) Wait()      {}

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/pwrd.yaml", []byte("platform: other\nlog_level: debug\n"), 0o644)

	c, err := LoadConfig(fs, testPlatform{}, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Platform != "test" || !c.Simulate.Enabled {
		t.Errorf("Board defaults not applied: %+v", c)
	}

	c, err = LoadConfig(fs, testPlatform{}, "/pwrd.yaml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Platform != "other" || c.LogLevel != "debug" || c.Listen.GRPC != "localhost:0" {
		t.Errorf("Config file not layered over board defaults: %+v", c)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	c, err := LoadConfig(afero.NewMemMapFs(), unlistenedPlatform{}, "")
	if err == nil || !strings.Contains(err.Error(), "gRPC listen address") {
		t.Errorf("Expected a listen address error, got %v", err)
	}
	if c != nil {
		t.Errorf("Invalid config returned: %+v", c)
	}
}

func TestStartSimulated(t *testing.T) {
	c, err := LoadConfig(afero.NewMemMapFs(), testPlatform{}, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	h := &testHalter{}
	d, err := Start(context.Background(), c, h)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if addr, attr := d.Sim.ResetAddress(); addr != 0x80000000 || attr&scmi.APCoreLockAttr == 0 {
		t.Errorf("Reset address %#x attributes %#x", addr, attr)
	}

	conn, err := ggrpc.Dial(d.GRPCAddr(), ggrpc.WithInsecure())
	if err != nil {
		t.Fatalf("grpc.Dial: %v", err)
	}
	defer conn.Close()
	r, err := grpc.NewClient(conn).GetCapabilities(context.Background())
	if err != nil {
		t.Fatalf("GetCapabilities: %v", err)
	}
	if !r.GetFields()["system_off"].GetBoolValue() {
		t.Errorf("System off not negotiated: %v", r)
	}

	resp, err := http.Get("http://" + d.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, m := range []string{
		`upwrc_psci_calls_total{hook="pwr_domain_on"}`,
		`upwrc_psci_hook_supported{hook="system_off"} 1`,
		"scmi_channel_transactions_total",
		"grpc_server_handled_total",
	} {
		if !strings.Contains(string(b), m) {
			t.Errorf("Metric %s not exported", m)
		}
	}

	d.Stop()
	if err := d.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if h.halts != 0 {
		t.Errorf("Daemon halted %d times", h.halts)
	}
}
