// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/u-root/u-pwrc/pkg/psci"
	pgrpc "github.com/u-root/u-pwrc/pkg/service/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	reflect "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func defaultOpts() []grpc.CallOption {
	return []grpc.CallOption{
		grpc.WaitForReady(false),
	}
}

func newConnection(addr string) *grpc.ClientConn {
	opts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithInsecure(),
	}
	conn, err := grpc.DialContext(context.Background(), addr, opts...)
	if err != nil {
		log.Fatalf("Could not open connection: %v", err)
	}
	return conn
}

func newClient(conn *grpc.ClientConn) *pgrpc.Client {
	return pgrpc.NewClient(conn)
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("not a valid number: %s", s)
	}
	return v, nil
}

func needArgs(args []string, n int) error {
	if len(args) < n+1 {
		return fmt.Errorf("%s needs %d arguments", args[0], n)
	}
	return nil
}

func callRPC(ctx context.Context, client *pgrpc.Client, args []string) error {
	var (
		resp *structpb.Struct
		err  error
	)
	switch args[0] {
	case "caps":
		resp, err = client.GetCapabilities(ctx, defaultOpts()...)
	case "on":
		if err := needArgs(args, 1); err != nil {
			return err
		}
		mpidr, err := parseUint(args[1], 64)
		if err != nil {
			return err
		}
		resp, err = client.CpuOn(ctx, mpidr, defaultOpts()...)
		if err != nil {
			return err
		}
	case "state":
		if err := needArgs(args, 2); err != nil {
			return err
		}
		mpidr, err := parseUint(args[1], 64)
		if err != nil {
			return err
		}
		level, err := parseUint(args[2], 8)
		if err != nil {
			return err
		}
		resp, err = client.NodeHwState(ctx, mpidr, uint(level), defaultOpts()...)
		if err != nil {
			return err
		}
	case "off":
		resp, err = client.SystemOff(ctx, defaultOpts()...)
	case "reset":
		resp, err = client.SystemReset(ctx, len(args) > 1 && args[1] == "warm", defaultOpts()...)
	case "decode":
		if err := needArgs(args, 1); err != nil {
			return err
		}
		v, err := parseUint(args[1], 32)
		if err != nil {
			return err
		}
		resp, err = client.DecodePowerState(ctx, uint32(v), defaultOpts()...)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed getting response: %v", err)
	}
	printResponse(resp)
	return nil
}

func printResponse(resp *structpb.Struct) {
	if *asJSON {
		b, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
		if err != nil {
			log.Fatalf("Failed to encode response: %v", err)
		}
		fmt.Println(string(b))
		return
	}
	m := resp.AsMap()
	if _, ok := m["status"]; ok {
		st := pgrpc.Status(resp)
		if st != 0 {
			fmt.Printf("status: %d (%v)\n", st, psci.Error(st))
		} else {
			fmt.Println("status: 0 (SUCCESS)")
		}
		delete(m, "status")
		delete(m, "error")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %v\n", k, m[k])
	}
}

func listServices(ctx context.Context, conn *grpc.ClientConn) []string {
	refClient, err := reflect.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		log.Fatalf("Failed to create reflection client: %v", err)
	}
	err = refClient.Send(&reflect.ServerReflectionRequest{
		MessageRequest: &reflect.ServerReflectionRequest_ListServices{
			ListServices: "*",
		},
	})
	if err != nil {
		log.Fatalf("Failed sending request: %v", err)
	}

	resp, err := refClient.Recv()
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		log.Fatalf("Got error response code: %d %s", codes.Code(errResp.ErrorCode), errResp.ErrorMessage)
	}

	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		log.Warn("No remote services found!")
		return nil
	}
	names := make([]string, len(listResp.Service))
	for i, s := range listResp.Service {
		names[i] = s.Name
	}
	return names
}
