// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// WebServer serves a http.ServeMux on a single listener.
type WebServer struct {
	Mux      *http.ServeMux
	Serv     *http.Server
	Listener net.Listener
}

// NewWebserver returns a WebServer with an empty http.ServeMux.
func NewWebserver() *WebServer {
	return &WebServer{
		Mux: http.NewServeMux(),
	}
}

// Listen binds addr. A port of 0 picks a free one, see Addr.
func (w *WebServer) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	w.Listener = l
	w.Serv = &http.Server{
		Handler:           w.Mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Addr is the address the server listens on.
func (w *WebServer) Addr() string {
	return w.Listener.Addr().String()
}

// Serve blocks until the server is shut down. A clean shutdown is not an
// error.
func (w *WebServer) Serve() error {
	err := w.Serv.Serve(w.Listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active ones.
func (w *WebServer) Shutdown(ctx context.Context) error {
	return w.Serv.Shutdown(ctx)
}
