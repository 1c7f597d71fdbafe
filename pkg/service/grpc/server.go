// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grpc serves the power controller over gRPC.
package grpc

import (
	"context"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/u-root/u-pwrc/config"
	"github.com/u-root/u-pwrc/pkg/logger"
	"github.com/u-root/u-pwrc/pkg/platform"
	"github.com/u-root/u-pwrc/pkg/psci"
	"github.com/u-root/u-pwrc/pkg/scp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var log = logger.LogContainer.GetSimpleLogger()

type rpcPowerOps interface {
	Supported(platform.Hook) bool
	Capabilities() scp.Capabilities
	ValidatePowerState(pstate uint32) (psci.PowerState, error)
	PwrDomainOn(mpidr psci.MPIDR) error
	GetNodeHwState(mpidr psci.MPIDR, level uint) (psci.HwState, error)
}

type rpcSystemPower interface {
	Shutdown(context.Context) error
	Reboot(context.Context) error
	WarmReset(context.Context) error
}

type powerServer struct {
	ops     rpcPowerOps
	system  rpcSystemPower
	version *config.Version
}

// NewServer returns the power service backed by ops and system.
func NewServer(ops rpcPowerOps, system rpcSystemPower, v *config.Version) PowerServiceServer {
	return &powerServer{ops: ops, system: system, version: v}
}

func number(in *structpb.Struct, name string) (float64, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %q", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue != float64(uint64(n.NumberValue)) {
		return 0, status.Errorf(codes.InvalidArgument, "field %q is not a non-negative integer", name)
	}
	return n.NumberValue, nil
}

func result(err error, fields map[string]interface{}) (*structpb.Struct, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = float64(psci.Code(err))
	if err != nil {
		fields["error"] = err.Error()
	}
	return structpb.NewStruct(fields)
}

func (s *powerServer) GetCapabilities(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	caps := s.ops.Capabilities()
	var hooks []interface{}
	for _, h := range platform.Hooks() {
		if s.ops.Supported(h) {
			hooks = append(hooks, h.String())
		}
	}
	fields := map[string]interface{}{
		"node_hw_state":  caps.NodeHwState,
		"system_off":     caps.SystemOff,
		"system_reset":   caps.SystemReset,
		"system_suspend": caps.SystemSuspend,
		"warm_reset":     caps.WarmReset,
		"hooks":          hooks,
	}
	if s.version != nil {
		fields["version"] = s.version.Version
		fields["git_hash"] = s.version.GitHash
	}
	return structpb.NewStruct(fields)
}

func (s *powerServer) CpuOn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m, err := number(in, "mpidr")
	if err != nil {
		return nil, err
	}
	mpidr := psci.MPIDR(uint64(m))
	log.Infof("CPU_ON %v", mpidr)
	return result(s.ops.PwrDomainOn(mpidr), nil)
}

func (s *powerServer) NodeHwState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m, err := number(in, "mpidr")
	if err != nil {
		return nil, err
	}
	l, err := number(in, "level")
	if err != nil {
		return nil, err
	}
	st, err := s.ops.GetNodeHwState(psci.MPIDR(uint64(m)), uint(l))
	if err != nil {
		return result(err, nil)
	}
	return result(nil, map[string]interface{}{"state": st.String()})
}

func (s *powerServer) SystemOff(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log.Infof("SYSTEM_OFF requested")
	err := s.system.Shutdown(ctx)
	if ctx.Err() != nil {
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	return result(err, nil)
}

func (s *powerServer) SystemReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	warm := in.GetFields()["warm"].GetBoolValue()
	log.Infof("SYSTEM_RESET requested, warm: %v", warm)
	var err error
	if warm {
		err = s.system.WarmReset(ctx)
	} else {
		err = s.system.Reboot(ctx)
	}
	if ctx.Err() != nil {
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	return result(err, nil)
}

func (s *powerServer) DecodePowerState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	v, err := number(in, "power_state")
	if err != nil {
		return nil, err
	}
	if v > float64(^uint32(0)) {
		return nil, status.Errorf(codes.InvalidArgument, "power state %v does not fit 32 bits", v)
	}
	target, err := s.ops.ValidatePowerState(uint32(v))
	if err != nil {
		return result(err, nil)
	}
	levels := make([]interface{}, len(target.Level))
	for i, l := range target.Level {
		levels[i] = l.String()
	}
	return result(nil, map[string]interface{}{"target": levels})
}

// NewGRPCServer returns a server with the power service, Prometheus
// interceptors and reflection registered.
func NewGRPCServer(srv PowerServiceServer) *grpc.Server {
	g := grpc.NewServer(
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	)
	RegisterPowerServiceServer(g, srv)
	grpc_prometheus.Register(g)
	reflection.Register(g)
	return g
}

// Serve serves srv on l until ctx is done.
func Serve(ctx context.Context, l net.Listener, srv PowerServiceServer) error {
	g := NewGRPCServer(srv)
	go func() {
		<-ctx.Done()
		g.GracefulStop()
	}()
	log.Infof("gRPC listening on %s", l.Addr())
	return g.Serve(l)
}
