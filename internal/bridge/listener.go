package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/pifleet/wifibridge/internal/domain"
)

// ResultSink receives the result of each finished session.
type ResultSink func(domain.SessionResult)

// Listener accepts provisioning connections one at a time. Sessions are
// handled strictly sequentially: the wireless interface is a single shared
// resource and NetworkManager cannot usefully overlap connection changes on
// it, so there is no per-connection fan-out.
type Listener struct {
	addr    string
	handler *Handler
	logger  *slog.Logger
	sink    ResultSink
}

// NewListener creates a listener for the given address. sink may be nil.
func NewListener(addr string, handler *Handler, sink ResultSink, logger *slog.Logger) *Listener {
	return &Listener{addr: addr, handler: handler, logger: logger, sink: sink}
}

// Run binds the listen address and serves sessions until ctx is cancelled.
// A bind failure is returned immediately; the caller treats it as fatal.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", l.addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve runs the accept loop on an already-bound listener.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.logger.Info("listening for provisioning requests", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info("listener stopped")
				return nil
			}
			l.logger.Warn("accept failed", "err", err)
			continue
		}

		l.logger.Info("connection accepted", "remote", conn.RemoteAddr().String())
		result := l.handler.Handle(ctx, conn)
		if err := conn.Close(); err != nil {
			l.logger.Debug("connection close failed", "err", err)
		}
		if l.sink != nil {
			l.sink(result)
		}
	}
}
