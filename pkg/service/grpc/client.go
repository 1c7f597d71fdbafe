// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the client side of upwrc.PowerService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc}
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func request(fields map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		panic(err)
	}
	return s
}

func (c *Client) GetCapabilities(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCapabilities", &emptypb.Empty{}, opts...)
}

func (c *Client) CpuOn(ctx context.Context, mpidr uint64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CpuOn", request(map[string]interface{}{"mpidr": float64(mpidr)}), opts...)
}

func (c *Client) NodeHwState(ctx context.Context, mpidr uint64, level uint, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "NodeHwState", request(map[string]interface{}{
		"mpidr": float64(mpidr),
		"level": float64(level),
	}), opts...)
}

func (c *Client) SystemOff(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SystemOff", &emptypb.Empty{}, opts...)
}

func (c *Client) SystemReset(ctx context.Context, warm bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SystemReset", request(map[string]interface{}{"warm": warm}), opts...)
}

func (c *Client) DecodePowerState(ctx context.Context, pstate uint32, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "DecodePowerState", request(map[string]interface{}{"power_state": float64(pstate)}), opts...)
}

// Status returns the PSCI return code carried by a response.
func Status(resp *structpb.Struct) int32 {
	return int32(resp.GetFields()["status"].GetNumberValue())
}
