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

const serviceName = "upwrc.PowerService"

// PowerServiceServer is the server side of upwrc.PowerService. Requests
// and responses are free-form structs, see the field names in server.go.
type PowerServiceServer interface {
	GetCapabilities(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CpuOn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NodeHwState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SystemOff(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SystemReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DecodePowerState(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPowerServiceServer registers srv with s.
func RegisterPowerServiceServer(s grpc.ServiceRegistrar, srv PowerServiceServer) {
	s.RegisterService(&PowerServiceDesc, srv)
}

func unary(method string, newReq func() interface{}, call func(PowerServiceServer, context.Context, interface{}) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(PowerServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req)
			})
		},
	}
}

func newEmpty() interface{}  { return new(emptypb.Empty) }
func newStruct() interface{} { return new(structpb.Struct) }

// PowerServiceDesc describes upwrc.PowerService.
var PowerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PowerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCapabilities", newEmpty, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.GetCapabilities(ctx, in.(*emptypb.Empty))
		}),
		unary("CpuOn", newStruct, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.CpuOn(ctx, in.(*structpb.Struct))
		}),
		unary("NodeHwState", newStruct, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.NodeHwState(ctx, in.(*structpb.Struct))
		}),
		unary("SystemOff", newEmpty, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.SystemOff(ctx, in.(*emptypb.Empty))
		}),
		unary("SystemReset", newStruct, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.SystemReset(ctx, in.(*structpb.Struct))
		}),
		unary("DecodePowerState", newStruct, func(s PowerServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
			return s.DecodePowerState(ctx, in.(*structpb.Struct))
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "upwrc/power.proto",
}
