// Package client implements the controller-side retry driver: one blocking
// request/response exchange per attempt, with the whole exchange retried on
// transport failure.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pifleet/wifibridge/internal/domain"
)

// ExitStatus is the fixed result vocabulary of the driver. It deliberately
// separates "nothing changed on the target" (general failure) from "the
// target was reconfigured but the link never came up", because the latter
// leaves the device in a different state than before the request.
type ExitStatus int

const (
	StatusOK             ExitStatus = 0
	StatusGeneralFailure ExitStatus = 1
	StatusBadPassword    ExitStatus = 100
	StatusLinkNotUp      ExitStatus = 101
)

// Dialer opens one connection to the agent. Injectable for tests.
type Dialer func(addr string, timeout time.Duration) (net.Conn, error)

// Driver performs provisioning exchanges against a bridge agent.
type Driver struct {
	logger    *slog.Logger
	dial      Dialer
	ioTimeout time.Duration
}

// New creates a driver using real TCP dialing and a 10s per-exchange timeout.
func New(logger *slog.Logger) *Driver {
	return &Driver{
		logger: logger,
		dial: func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		},
		ioTimeout: 10 * time.Second,
	}
}

// SetDialer replaces the connection factory (for tests).
func (d *Driver) SetDialer(dial Dialer) {
	d.dial = dial
}

// Send performs the exchange, retrying the whole thing on any transport
// failure after delay, up to maxAttempts. A received response, success or
// not, ends the retries; only transport failures are retried.
func (d *Driver) Send(ctx context.Context, host string, port int, req domain.ProvisionRequest, maxAttempts int, delay time.Duration) ExitStatus {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return StatusGeneralFailure
		}

		resp, err := d.exchange(addr, req)
		if err == nil {
			d.logger.Info("received response", "attempt", attempt, "response", resp)
			return statusForResponse(resp)
		}

		d.logger.Warn("exchange failed", "attempt", attempt, "addr", addr, "err", err)
		if attempt < maxAttempts {
			d.logger.Info("retrying", "delay", delay)
			select {
			case <-ctx.Done():
				return StatusGeneralFailure
			case <-time.After(delay):
			}
		}
	}

	d.logger.Error("all attempts failed", "attempts", maxAttempts, "addr", addr)
	return StatusGeneralFailure
}

// exchange opens a fresh connection, sends the request line and reads one
// response. A connection from a failed attempt is never reused.
func (d *Driver) exchange(addr string, req domain.ProvisionRequest) (string, error) {
	conn, err := d.dial(addr, d.ioTimeout)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(d.ioTimeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	d.logger.Info("sending request", "ssid", req.SSID, "profile", req.ProfileName)
	if _, err := conn.Write([]byte(req.FormatRequest())); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	buf := make([]byte, domain.MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

// statusForResponse maps agent response text to an exit status. The profile
// has already been rewritten on the target for the bad-password and timeout
// responses; everything else collapses to the general failure.
func statusForResponse(resp string) ExitStatus {
	switch {
	case resp == domain.RespSuccess:
		return StatusOK
	case strings.Contains(resp, domain.RespBadPassword):
		return StatusBadPassword
	case strings.Contains(resp, domain.RespTimeout):
		return StatusLinkNotUp
	default:
		return StatusGeneralFailure
	}
}
